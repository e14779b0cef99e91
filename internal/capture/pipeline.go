package capture

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// BuildSourceURL embeds credentials into the URL's authority component when a
// username/password pair is supplied. Without credentials the URL is returned
// unmodified.
func BuildSourceURL(raw, username, password string) (string, error) {
	if username == "" || password == "" {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse source url: %w", err)
	}
	u.User = url.UserPassword(username, password)
	return u.String(), nil
}

// Pipeline builds the gst-launch argument list for recording sourceURL into
// outputDir. With segmentSeconds > 0 the sink rotates time-bounded
// segment_<NNNNN>.mp4 files for later concatenation; otherwise a single
// timestamped Matroska file is written.
//
// Shape: source -> decode -> convert -> encode (low latency, fastest preset,
// fixed bitrate) -> parse -> mux -> sink.
func Pipeline(sourceURL, outputDir string, segmentSeconds int) []string {
	args := []string{
		fmt.Sprintf("rtspsrc location=%s", sourceURL),
		"! decodebin",
		"! videoconvert",
		"! video/x-raw",
		"! x264enc tune=zerolatency speed-preset=ultrafast bitrate=2048",
		"! h264parse",
	}
	if segmentSeconds > 0 {
		location := filepath.Join(outputDir, "segment_%05d.mp4")
		args = append(args,
			fmt.Sprintf("! splitmuxsink location=%s max-size-time=%d", location, int64(segmentSeconds)*int64(time.Second)),
		)
	} else {
		location := filepath.Join(outputDir, OutputFileName(time.Now()))
		args = append(args,
			"! matroskamux",
			fmt.Sprintf("! filesink location=%s sync=1 async=1", location),
		)
	}
	return strings.Fields(strings.Join(args, " "))
}

// OutputFileName derives the single-file recording name from a timestamp.
func OutputFileName(t time.Time) string {
	return fmt.Sprintf("recording_%s.mkv", t.Format("2006-01-02_15-04-05"))
}
