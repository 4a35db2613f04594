package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/llmodel/internal/engine"
	"github.com/samcharles93/llmodel/internal/engine/toy"
	"github.com/samcharles93/llmodel/internal/gpu"
	"github.com/samcharles93/llmodel/internal/llamamodel"
)

var toyDevices = []gpu.Device{{Index: 0, Name: "Toy GPU", Vendor: "toy", HeapSize: 1 << 30}}

func newTestServer(t *testing.T, snapshots bool) (*echo.Echo, *llamamodel.Model) {
	t.Helper()
	e, _, m := newTestAPI(t, snapshots)
	return e, m
}

func newTestAPI(t *testing.T, snapshots bool) (*echo.Echo, *Server, *llamamodel.Model) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "toy.gguf")
	if err := toy.DefaultSpec().Write(path); err != nil {
		t.Fatal(err)
	}
	eng, err := engine.Lookup(toy.Name)
	if err != nil {
		t.Fatal(err)
	}
	m := llamamodel.New(
		llamamodel.WithEngine(eng),
		llamamodel.WithGPU(gpu.NewManager(&gpu.Static{List: toyDevices}, nil)),
		llamamodel.WithSeed(3),
	)
	if !m.LoadModel(path) {
		t.Fatal("LoadModel failed")
	}
	t.Cleanup(m.Close)

	srv := NewServer(Config{
		Model:     m,
		Info:      ModelInfo{Path: path, Backend: "cpu"},
		Snapshots: snapshots,
	})
	e := echo.New()
	srv.Register(e)
	return e, srv, m
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func complete(t *testing.T, e *echo.Echo, body string) CompletionResponse {
	t.Helper()
	rec := doJSON(t, e, http.MethodPost, "/v1/completions", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("completion status %d body=%s", rec.Code, rec.Body.String())
	}
	var resp CompletionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode completion: %v", err)
	}
	return resp
}

func TestCompletionSessionLifecycle(t *testing.T) {
	e, _ := newTestServer(t, true)

	first := complete(t, e, `{"prompt":"hello world","max_tokens":4}`)
	if first.SessionID == "" || !strings.HasPrefix(first.ID, "cmpl-") {
		t.Fatalf("missing ids: %+v", first)
	}
	if first.Usage.PromptTokens != 3 || first.Usage.TotalTokens != first.Usage.PromptTokens+first.Usage.CompletionTokens {
		t.Fatalf("usage = %+v", first.Usage)
	}
	if first.FinishReason != "stop" && first.FinishReason != "length" {
		t.Fatalf("finish_reason = %q", first.FinishReason)
	}

	second := complete(t, e, `{"prompt":" the cat","max_tokens":2,"session_id":"`+first.SessionID+`"}`)
	if second.SessionID != first.SessionID {
		t.Fatalf("session changed: %s", second.SessionID)
	}

	rec := doJSON(t, e, http.MethodGet, "/v1/sessions/"+first.SessionID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get session status %d", rec.Code)
	}
	var info SessionInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	wantPast := first.Usage.TotalTokens + second.Usage.TotalTokens
	if int(info.NPast) != wantPast || info.Tokens != wantPast {
		t.Fatalf("session n_past=%d tokens=%d, want %d", info.NPast, info.Tokens, wantPast)
	}
	if info.Snapshot == 0 {
		t.Fatal("expected a session snapshot")
	}

	rec = doJSON(t, e, http.MethodDelete, "/v1/sessions/"+first.SessionID, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"deleted":true`) {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		if rec := doJSON(t, e, method, "/v1/sessions/"+first.SessionID, ""); rec.Code != http.StatusNotFound {
			t.Fatalf("%s after delete: %d", method, rec.Code)
		}
	}
}

func TestCompletionValidation(t *testing.T) {
	e, _ := newTestServer(t, false)
	tests := []struct {
		name string
		body string
		code int
	}{
		{"bad json", `{"prompt":`, http.StatusBadRequest},
		{"empty prompt", `{"prompt":""}`, http.StatusBadRequest},
		{"negative temperature", `{"prompt":"a","temperature":-1}`, http.StatusBadRequest},
		{"top_p out of range", `{"prompt":"a","top_p":1.5}`, http.StatusBadRequest},
		{"zero repeat penalty", `{"prompt":"a","repeat_penalty":0}`, http.StatusBadRequest},
		{"unknown session", `{"prompt":"a","session_id":"sess_missing"}`, http.StatusNotFound},
		{"prompt too long", `{"prompt":"` + strings.Repeat("q", 3000) + `"}`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, e, http.MethodPost, "/v1/completions", tc.body)
			if rec.Code != tc.code {
				t.Fatalf("status = %d, want %d body=%s", rec.Code, tc.code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), `"error"`) {
				t.Fatalf("missing error body: %s", rec.Body.String())
			}
		})
	}
}

// Interleaving another session must not change what a session generates.
func TestSessionSwitching(t *testing.T) {
	for _, snapshots := range []bool{true, false} {
		temp := `"temperature":0.8`
		if !snapshots {
			temp = `"temperature":0`
		}
		turn := func(e *echo.Echo, session, prompt string) CompletionResponse {
			body := `{"prompt":"` + prompt + `","max_tokens":5,` + temp
			if session != "" {
				body += `,"session_id":"` + session + `"`
			}
			return complete(t, e, body+"}")
		}

		solo, _ := newTestServer(t, snapshots)
		a1 := turn(solo, "", "hello")
		want := turn(solo, a1.SessionID, " the dog")

		mixed, _ := newTestServer(t, snapshots)
		b1 := turn(mixed, "", "hello")
		turn(mixed, "", "the cat sat")
		got := turn(mixed, b1.SessionID, " the dog")

		if got.Text != want.Text {
			t.Fatalf("snapshots=%v: interleaved %q, solo %q", snapshots, got.Text, want.Text)
		}
	}
}

func TestStreamingCompletion(t *testing.T) {
	e, _ := newTestServer(t, true)
	rec := doJSON(t, e, http.MethodPost, "/v1/completions", `{"prompt":"hello","max_tokens":3,"stream":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Fatalf("stream not terminated: %q", body)
	}
	if !strings.Contains(body, `"finish_reason":"`) || !strings.Contains(body, `"text_completion.chunk"`) {
		t.Fatalf("missing final chunk: %q", body)
	}
}

func TestModelAndDevices(t *testing.T) {
	e, _ := newTestServer(t, false)

	rec := doJSON(t, e, http.MethodGet, "/v1/model", "")
	var info ModelInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if !info.Loaded || info.ModelType != "LLaMA" || info.ContextLength != 2048 || info.Backend != "cpu" {
		t.Fatalf("model info = %+v", info)
	}

	rec = doJSON(t, e, http.MethodGet, "/v1/devices?memory=1024", "")
	var list struct {
		Data []gpu.Device `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Data) != 1 || list.Data[0].Name != "Toy GPU" {
		t.Fatalf("devices = %+v", list.Data)
	}
	if rec := doJSON(t, e, http.MethodGet, "/v1/devices?memory=lots", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad memory param: %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	e, _ := newTestServer(t, false)
	complete(t, e, `{"prompt":"hello","max_tokens":2}`)

	rec := doJSON(t, e, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status %d", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{
		"llmodel_tokens_evaluated_total",
		"llmodel_tokens_sampled_total",
		"llmodel_eval_failures_total",
		"llmodel_generate_duration_seconds",
		"llmodel_sessions 1",
	} {
		if !strings.Contains(body, name) {
			t.Fatalf("metrics missing %s", name)
		}
	}
}

func TestCanceledTurnThenSessionSwitch(t *testing.T) {
	for _, snapshots := range []bool{true, false} {
		e, srv, _ := newTestAPI(t, snapshots)
		body := func(session, prompt string) string {
			b := `{"prompt":"` + prompt + `","max_tokens":6,"temperature":0`
			if session != "" {
				b += `,"session_id":"` + session + `"`
			}
			return b + "}"
		}
		a := complete(t, e, body("", "hello"))
		sessA, ok := srv.sessions.Get(a.SessionID)
		if !ok {
			t.Fatal("session A missing")
		}

		ctx, cancel := context.WithCancel(context.Background())
		pieces := 0
		maxTokens := 6
		req := &CompletionRequest{Prompt: " the cat", MaxTokens: &maxTokens}
		_, err := srv.generate(ctx, req, sessA, func(string) {
			if pieces++; pieces == 1 {
				cancel()
			}
		})
		cancel()
		if err == nil {
			t.Fatalf("snapshots=%v: canceled turn returned no error", snapshots)
		}
		if sessA.State != nil {
			t.Fatalf("snapshots=%v: stale snapshot kept after a failed turn", snapshots)
		}

		complete(t, e, body("", "the dog ran"))
		again := complete(t, e, body(a.SessionID, " away"))
		if again.SessionID != a.SessionID {
			t.Fatalf("snapshots=%v: session id %q", snapshots, again.SessionID)
		}
		if int(sessA.Context.NPast) != len(sessA.Context.Tokens) {
			t.Fatalf("snapshots=%v: n_past %d, history %d", snapshots, sessA.Context.NPast, len(sessA.Context.Tokens))
		}
	}
}
