package api

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/llmodel/internal/inference"
	"github.com/samcharles93/llmodel/internal/logger"
	"github.com/samcharles93/llmodel/pkg/llmodel"
)

// ModelInfo describes the served model. The server fills in the live fields.
type ModelInfo struct {
	Path          string `json:"path"`
	ModelType     string `json:"model_type"`
	Backend       string `json:"backend"`
	Loaded        bool   `json:"loaded"`
	ContextLength int32  `json:"context_length"`
	Threads       int32  `json:"threads"`
	UsingGPU      bool   `json:"using_gpu"`
}

type Config struct {
	Model llmodel.LLModel
	Info  ModelInfo

	// Defaults seeds the PromptContext of new sessions.
	Defaults *llmodel.PromptContext

	// Snapshots keeps an engine snapshot per session so switching sessions
	// restores state instead of re-evaluating history.
	Snapshots bool

	Log logger.Logger
}

// Server serializes all model access on one mutex; the model has a single
// engine context shared by every session.
type Server struct {
	model     llmodel.LLModel
	info      ModelInfo
	defaults  llmodel.PromptContext
	snapshots bool
	log       logger.Logger

	mu       sync.Mutex
	active   string
	sessions *SessionStore
	metrics  *Metrics
	clock    func() time.Time
}

func NewServer(cfg Config) *Server {
	s := &Server{
		model:     cfg.Model,
		info:      cfg.Info,
		snapshots: cfg.Snapshots,
		log:       cfg.Log,
		sessions:  NewSessionStore(),
		clock:     time.Now,
	}
	if cfg.Defaults != nil {
		s.defaults = *cfg.Defaults
	} else {
		s.defaults = *llmodel.NewPromptContext()
	}
	if s.log == nil {
		s.log = logger.Default()
	}
	s.log = s.log.With("component", "api")
	s.metrics = NewMetrics(s.sessions.Len)
	return s
}

func (s *Server) Metrics() *Metrics { return s.metrics }

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/completions", s.handleCompletion)
	e.GET("/v1/sessions/:id", s.handleGetSession)
	e.DELETE("/v1/sessions/:id", s.handleDeleteSession)
	e.GET("/v1/devices", s.handleDevices)
	e.GET("/v1/model", s.handleModel)
	e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
}

// activate makes sess the owner of the engine context. The caller holds s.mu.
func (s *Server) activate(ctx context.Context, sess *Session) error {
	if s.active == sess.ID {
		return nil
	}
	s.active = ""
	pc := sess.Context
	if len(pc.Tokens) == 0 {
		pc.Reset()
		s.active = sess.ID
		return nil
	}
	if sess.State != nil && s.model.RestoreState(sess.State) == len(sess.State) {
		s.active = sess.ID
		return nil
	}
	s.log.Debug("replaying session history", "session", sess.ID, "tokens", len(pc.Tokens))
	g := inference.NewGenerator(s.model, pc)
	g.Log = s.log
	if err := g.Replay(ctx); err != nil {
		return err
	}
	s.active = sess.ID
	return nil
}

// snapshot records the engine state for sess. The caller holds s.mu.
func (s *Server) snapshot(sess *Session) {
	if !s.snapshots {
		return
	}
	size := s.model.StateSize()
	if size == 0 {
		return
	}
	buf := slices.Grow(sess.State[:0], size)[:size]
	n := s.model.SaveState(buf)
	if n == 0 {
		s.log.Warn("session snapshot failed", "session", sess.ID)
		sess.State = nil
		return
	}
	sess.State = buf[:n]
}

type SessionInfo struct {
	ID       string `json:"id"`
	NPast    int32  `json:"n_past"`
	Tokens   int    `json:"tokens"`
	Created  int64  `json:"created"`
	LastUsed int64  `json:"last_used"`
	Snapshot int    `json:"snapshot_bytes"`
}

func (s *Server) handleGetSession(c *echo.Context) error {
	sess, ok := s.sessions.Get(c.Param("id"))
	if !ok {
		return writeError(c, notFound("session not found"))
	}
	s.mu.Lock()
	info := SessionInfo{
		ID:       sess.ID,
		NPast:    sess.Context.NPast,
		Tokens:   len(sess.Context.Tokens),
		Created:  sess.Created.Unix(),
		LastUsed: sess.LastUsed.Unix(),
		Snapshot: len(sess.State),
	}
	s.mu.Unlock()
	return c.JSON(http.StatusOK, info)
}

func (s *Server) handleDeleteSession(c *echo.Context) error {
	id := c.Param("id")
	s.mu.Lock()
	deleted := s.sessions.Delete(id)
	if deleted && s.active == id {
		s.active = ""
	}
	s.mu.Unlock()
	if !deleted {
		return writeError(c, notFound("session not found"))
	}
	return c.JSON(http.StatusOK, map[string]any{
		"id":      id,
		"object":  "session.deleted",
		"deleted": true,
	})
}

func (s *Server) handleDevices(c *echo.Context) error {
	var required uint64
	if raw := c.QueryParam("memory"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return writeError(c, invalid("memory must be a non-negative integer"))
		}
		required = n
	}
	s.mu.Lock()
	devices := s.model.AvailableGPUDevices(required)
	s.mu.Unlock()
	return c.JSON(http.StatusOK, map[string]any{
		"object": "list",
		"data":   devices,
	})
}

func (s *Server) handleModel(c *echo.Context) error {
	s.mu.Lock()
	info := s.info
	info.ModelType = s.model.ModelType()
	info.Loaded = s.model.IsModelLoaded()
	info.ContextLength = s.model.ContextLength()
	info.Threads = s.model.ThreadCount()
	info.UsingGPU = s.model.UsingGPUDevice()
	s.mu.Unlock()
	return c.JSON(http.StatusOK, info)
}
