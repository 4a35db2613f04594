package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/llmodel/internal/inference"
)

// Error is the body of every non-2xx response, wrapped as {"error": ...}.
type Error struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

func (e *Error) Error() string { return e.Message }

func invalid(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Type: "invalid_request_error", Message: msg}
}

func notFound(msg string) *Error {
	return &Error{Status: http.StatusNotFound, Type: "not_found_error", Message: msg}
}

// asError classifies err. Errors that already carry a status pass through;
// generation failures are mapped onto the status a client can act on.
func asError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	out := &Error{Status: http.StatusInternalServerError, Type: "server_error", Message: err.Error()}
	switch {
	case errors.Is(err, inference.ErrPromptTooLong):
		out.Status, out.Type, out.Code = http.StatusBadRequest, "invalid_request_error", "context_length_exceeded"
	case errors.Is(err, inference.ErrNotLoaded):
		out.Status, out.Code = http.StatusServiceUnavailable, "model_not_loaded"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		out.Status, out.Code = http.StatusRequestTimeout, "canceled"
	}
	return out
}

func writeError(c *echo.Context, err error) error {
	e := asError(err)
	return c.JSON(e.Status, map[string]*Error{"error": e})
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return out, invalid("invalid JSON body: " + err.Error())
	}
	return out, nil
}
