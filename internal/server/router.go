package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"streamrec/internal/merge"
	"streamrec/internal/recorder"
	"streamrec/internal/registry"
)

// Router provides embeddable HTTP handlers for the recording daemon.
// Endpoints:
//
//	POST   {basePath}/record/start   query: name=...
//	POST   {basePath}/record/stop    query: name=...
//	GET    {basePath}/status         query: name=... (single) or none (all)
//	GET    {basePath}/streams        registry catalog passthrough
//	PUT    {basePath}/streams        query: name=...&src=... (add + record)
//	DELETE {basePath}/streams        query: name=... (delete + stop)
//	GET    {basePath}/healthz
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	mgr      *recorder.Manager
	reg      *registry.Client
	basePath string
}

// NewRouter constructs a Router. reg may be nil when no stream registry is
// configured; the /streams endpoints then answer 503.
func NewRouter(mgr *recorder.Manager, reg *registry.Client, basePath string) *Router {
	return &Router{mgr: mgr, reg: reg, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.POST("/record/start", r.handleStart)
	group.POST("/record/stop", r.handleStop)
	group.GET("/status", r.handleStatus)
	group.GET("/streams", r.handleListStreams)
	group.PUT("/streams", r.handleAddStream)
	group.DELETE("/streams", r.handleDeleteStream)
	group.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, okResp{OK: true}) })
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, mgr *recorder.Manager, reg *registry.Client) (*http.Server, error) {
	r := NewRouter(mgr, reg, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK     bool   `json:"ok"`
	Merged string `json:"merged,omitempty"`
}

func (r *Router) handleStart(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, errorResp{Error: "name query param required"})
		return
	}
	if !isSafeName(name) {
		c.JSON(http.StatusBadRequest, errorResp{Error: "invalid name: allowed [A-Za-z0-9._-] and no '..' or path separators"})
		return
	}
	if err := r.mgr.StartRecording(name); err != nil {
		c.JSON(http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true})
}

func (r *Router) handleStop(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, errorResp{Error: "name query param required"})
		return
	}
	merged, err := r.mgr.StopRecording(name)
	if err != nil {
		if errors.Is(err, merge.ErrNoSegments) {
			// recording stopped, nothing to concatenate
			c.JSON(http.StatusOK, okResp{OK: true})
			return
		}
		c.JSON(http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true, Merged: merged})
}

func (r *Router) handleStatus(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusOK, r.mgr.StatusAll())
		return
	}
	st, err := r.mgr.Status(name)
	if err != nil {
		c.JSON(http.StatusNotFound, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (r *Router) handleListStreams(c *gin.Context) {
	if r.reg == nil {
		c.JSON(http.StatusServiceUnavailable, errorResp{Error: "no stream registry configured"})
		return
	}
	streams, err := r.reg.ListStreams(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, streams)
}

func (r *Router) handleAddStream(c *gin.Context) {
	if r.reg == nil {
		c.JSON(http.StatusServiceUnavailable, errorResp{Error: "no stream registry configured"})
		return
	}
	name := c.Query("name")
	src := c.Query("src")
	if name == "" || src == "" {
		c.JSON(http.StatusBadRequest, errorResp{Error: "name and src query params required"})
		return
	}
	if !isSafeName(name) {
		c.JSON(http.StatusBadRequest, errorResp{Error: "invalid name: allowed [A-Za-z0-9._-] and no '..' or path separators"})
		return
	}
	if err := r.reg.AddStream(c.Request.Context(), name, src); err != nil {
		c.JSON(http.StatusBadGateway, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true})
}

func (r *Router) handleDeleteStream(c *gin.Context) {
	if r.reg == nil {
		c.JSON(http.StatusServiceUnavailable, errorResp{Error: "no stream registry configured"})
		return
	}
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, errorResp{Error: "name query param required"})
		return
	}
	if err := r.reg.DeleteStream(c.Request.Context(), name); err != nil {
		c.JSON(http.StatusBadGateway, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true})
}
