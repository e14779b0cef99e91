package server

import "strings"

// sanitizeBase normalizes a base path to "" or "/prefix" without a trailing slash.
func sanitizeBase(basePath string) string {
	bp := strings.TrimSpace(basePath)
	if bp == "" || bp == "/" {
		return ""
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	return strings.TrimRight(bp, "/")
}

// isSafeName reports whether name is a plain identifier usable in file paths:
// [A-Za-z0-9._-] only, no path separators, no "..".
func isSafeName(name string) bool {
	if name == "" || strings.Contains(name, "..") {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}
