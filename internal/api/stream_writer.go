package api

import (
	"bytes"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
)

var sseDone = []byte("data: [DONE]\n\n")

// sseWriter frames JSON payloads as server-sent events and flushes after
// each one so tokens reach the client as they are sampled.
type sseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func newSSEWriter(c *echo.Context) (*sseWriter, error) {
	w := c.Response()
	rc := http.NewResponseController(w)
	h := w.Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return nil, err
	}
	return &sseWriter{w: w, rc: rc}, nil
}

func (s *sseWriter) send(payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var frame bytes.Buffer
	frame.Grow(len(b) + 8)
	frame.WriteString("data: ")
	frame.Write(b)
	frame.WriteString("\n\n")
	return s.write(frame.Bytes())
}

func (s *sseWriter) done() error { return s.write(sseDone) }

func (s *sseWriter) write(p []byte) error {
	if _, err := s.w.Write(p); err != nil {
		return err
	}
	return s.rc.Flush()
}
