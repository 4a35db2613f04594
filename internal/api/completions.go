package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/llmodel/internal/inference"
	"github.com/samcharles93/llmodel/pkg/llmodel"
)

type CompletionRequest struct {
	Prompt        string   `json:"prompt"`
	SessionID     string   `json:"session_id,omitempty"`
	MaxTokens     *int     `json:"max_tokens,omitempty"`
	Temperature   *float32 `json:"temperature,omitempty"`
	TopK          *int32   `json:"top_k,omitempty"`
	TopP          *float32 `json:"top_p,omitempty"`
	RepeatPenalty *float32 `json:"repeat_penalty,omitempty"`
	RepeatLastN   *int32   `json:"repeat_last_n,omitempty"`
	Stop          []string `json:"stop,omitempty"`
	Stream        bool     `json:"stream,omitempty"`
}

type CompletionResponse struct {
	ID           string `json:"id"`
	Object       string `json:"object"`
	Created      int64  `json:"created"`
	SessionID    string `json:"session_id"`
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason"`
	Usage        Usage  `json:"usage"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (r *CompletionRequest) validate() error {
	var msg string
	switch {
	case r.Prompt == "":
		msg = "prompt is required"
	case r.MaxTokens != nil && *r.MaxTokens < 0:
		msg = "max_tokens must be >= 0"
	case r.Temperature != nil && *r.Temperature < 0:
		msg = "temperature must be >= 0"
	case r.TopK != nil && *r.TopK < 0:
		msg = "top_k must be >= 0"
	case r.TopP != nil && (*r.TopP <= 0 || *r.TopP > 1):
		msg = "top_p must be in (0, 1]"
	case r.RepeatPenalty != nil && *r.RepeatPenalty <= 0:
		msg = "repeat_penalty must be > 0"
	case r.RepeatLastN != nil && *r.RepeatLastN < 0:
		msg = "repeat_last_n must be >= 0"
	default:
		return nil
	}
	return invalid(msg)
}

// apply copies the sampling overrides into pc. They stay in effect for
// later turns of the session.
func (r *CompletionRequest) apply(pc *llmodel.PromptContext) {
	if r.Temperature != nil {
		pc.Temp = *r.Temperature
	}
	if r.TopK != nil {
		pc.TopK = *r.TopK
	}
	if r.TopP != nil {
		pc.TopP = *r.TopP
	}
	if r.RepeatPenalty != nil {
		pc.RepeatPenalty = *r.RepeatPenalty
	}
	if r.RepeatLastN != nil {
		pc.RepeatLastN = *r.RepeatLastN
	}
}

func finishReason(r inference.StopReason) string {
	switch r {
	case inference.StopEndToken, inference.StopSequence:
		return "stop"
	case inference.StopLength:
		return "length"
	case inference.StopCanceled:
		return "canceled"
	default:
		return ""
	}
}

func (s *Server) handleCompletion(c *echo.Context) error {
	req, err := decodeJSON[CompletionRequest](c.Request().Body)
	if err == nil {
		err = req.validate()
	}
	if err != nil {
		return writeError(c, err)
	}

	var sess *Session
	if req.SessionID != "" {
		var ok bool
		if sess, ok = s.sessions.Get(req.SessionID); !ok {
			return writeError(c, notFound("session not found"))
		}
	} else {
		sess = s.sessions.Create(s.defaults, s.clock())
	}

	resp := CompletionResponse{
		ID:        "cmpl-" + uuid.NewString(),
		Object:    "text_completion",
		Created:   s.clock().Unix(),
		SessionID: sess.ID,
	}

	if req.Stream {
		return s.streamCompletion(c, &req, sess, resp)
	}

	res, err := s.generate(c.Request().Context(), &req, sess, nil)
	if err != nil {
		return writeError(c, err)
	}
	resp.Text = res.Text
	resp.FinishReason = finishReason(res.StopReason)
	resp.Usage = usage(res)
	return c.JSON(http.StatusOK, resp)
}

// generate runs one turn for sess while holding the model.
func (s *Server) generate(ctx context.Context, req *CompletionRequest, sess *Session, stream inference.StreamFunc) (*inference.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.model.IsModelLoaded() {
		return nil, inference.ErrNotLoaded
	}
	if err := s.activate(ctx, sess); err != nil {
		s.metrics.observe(nil, errors.Is(err, inference.ErrEval))
		return nil, fmt.Errorf("restore session: %w", err)
	}
	req.apply(sess.Context)
	sess.LastUsed = s.clock()

	g := inference.NewGenerator(s.model, sess.Context)
	g.Log = s.log
	inferReq := &inference.Request{Prompt: req.Prompt, Stop: req.Stop}
	if req.MaxTokens != nil {
		inferReq.MaxTokens = *req.MaxTokens
	}
	res, err := g.Run(ctx, inferReq, stream)
	s.metrics.observe(res, errors.Is(err, inference.ErrEval))
	if err != nil {
		s.log.Warn("generation failed", "session", sess.ID, "error", err)
		// The history may have moved past the last snapshot; the next
		// activation has to replay it.
		sess.State = nil
		if errors.Is(err, inference.ErrEval) {
			s.active = ""
		}
		return res, err
	}
	s.snapshot(sess)
	return res, nil
}

func usage(res *inference.Result) Usage {
	return Usage{
		PromptTokens:     res.Stats.PromptTokens,
		CompletionTokens: res.Stats.TokensGenerated,
		TotalTokens:      res.Stats.PromptTokens + res.Stats.TokensGenerated,
	}
}

func (s *Server) streamCompletion(c *echo.Context, req *CompletionRequest, sess *Session, resp CompletionResponse) error {
	w, err := newSSEWriter(c)
	if err != nil {
		return writeError(c, invalid(err.Error()))
	}
	res, err := s.generate(c.Request().Context(), req, sess, func(tok string) {
		chunk := resp
		chunk.Object = "text_completion.chunk"
		chunk.Text = tok
		_ = w.send(chunk)
	})
	if err != nil {
		_ = w.send(map[string]*Error{"error": asError(err)})
		return w.done()
	}
	final := resp
	final.Object = "text_completion.chunk"
	final.FinishReason = finishReason(res.StopReason)
	final.Usage = usage(res)
	if err := w.send(final); err != nil {
		return err
	}
	return w.done()
}
