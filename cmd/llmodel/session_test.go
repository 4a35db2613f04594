package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/samcharles93/llmodel/internal/engine/toy"
	"github.com/samcharles93/llmodel/internal/inference"
	"github.com/samcharles93/llmodel/internal/logger"
	"github.com/samcharles93/llmodel/pkg/llmodel"
)

// useToyEngine points the shared model flags at the toy engine for one test.
func useToyEngine(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "toy.gguf")
	if err := toy.DefaultSpec().Write(path); err != nil {
		t.Fatal(err)
	}
	prevEngine, prevVariant, prevSeed, prevDevice, prevThreads := engineName, variant, seed, device, threads
	t.Cleanup(func() {
		engineName, variant, seed, device, threads = prevEngine, prevVariant, prevSeed, prevDevice, prevThreads
	})
	engineName, variant, seed, device, threads = toy.Name, "auto", 1, "", 0
	return path
}

func testContext() context.Context {
	return logger.WithContext(context.Background(), logger.Discard())
}

func greedyContext() *llmodel.PromptContext {
	pc := llmodel.NewPromptContext()
	pc.Temp = 0
	return pc
}

func turn(t *testing.T, m llmodel.LLModel, pc *llmodel.PromptContext, prompt string) string {
	t.Helper()
	g := inference.NewGenerator(m, pc)
	g.Log = logger.Discard()
	res, err := g.Run(context.Background(), &inference.Request{Prompt: prompt, MaxTokens: 6}, nil)
	if err != nil {
		t.Fatalf("Run(%q): %v", prompt, err)
	}
	return res.Text
}

func TestSessionRoundTrip(t *testing.T) {
	path := useToyEngine(t)
	ctx := testContext()

	ref, err := loadModel(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer ref.Close()
	refPC := greedyContext()
	turn(t, ref, refPC, "hello")

	file := filepath.Join(t.TempDir(), "session.json")
	if err := saveSession(file, ref, path, refPC); err != nil {
		t.Fatalf("saveSession: %v", err)
	}
	want := turn(t, ref, refPC, " the cat")

	for _, tc := range []struct {
		name      string
		dropState bool
	}{
		{"snapshot", false},
		{"replay", true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			src := file
			if tc.dropState {
				src = stripState(t, file)
			}
			m, err := loadModel(ctx, path)
			if err != nil {
				t.Fatal(err)
			}
			defer m.Close()

			pc := greedyContext()
			if err := loadSession(ctx, src, m, path, pc); err != nil {
				t.Fatalf("loadSession: %v", err)
			}
			if got := turn(t, m, pc, " the cat"); got != want {
				t.Fatalf("continued text = %q, want %q", got, want)
			}
			if len(pc.Tokens) != len(refPC.Tokens) {
				t.Fatalf("history length %d, want %d", len(pc.Tokens), len(refPC.Tokens))
			}
		})
	}
}

func stripState(t *testing.T, file string) string {
	t.Helper()
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		t.Fatal(err)
	}
	if len(sf.State) == 0 {
		t.Fatal("saved session has no snapshot")
	}
	sf.State = nil
	out := filepath.Join(t.TempDir(), "nostate.json")
	data, err = json.Marshal(sf)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestLoadSessionRejectsBadFiles(t *testing.T) {
	path := useToyEngine(t)
	ctx := testContext()
	m, err := loadModel(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	dir := t.TempDir()
	for name, body := range map[string]string{
		"garbage.json": "not json",
		"future.json":  `{"version": 99, "context": {}}`,
		"empty.json":   `{"version": 1}`,
	} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := loadSession(ctx, p, m, path, llmodel.NewPromptContext()); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if err := loadSession(ctx, filepath.Join(dir, "missing.json"), m, path, llmodel.NewPromptContext()); err == nil {
		t.Error("missing file: expected error")
	}
}

func TestChatCommands(t *testing.T) {
	path := useToyEngine(t)
	ctx := testContext()
	m, err := loadModel(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	saved := filepath.Join(t.TempDir(), "chat.json")
	input := strings.Join([]string{
		"hello",
		"/save " + saved,
		"/reset",
		"/load " + saved,
		"/bogus",
		"/quit",
		"never read",
	}, "\n")
	var stdout, stderr strings.Builder
	s := &chatSession{
		model:     m,
		modelFile: path,
		pc:        greedyContext(),
		maxTokens: 4,
		editor:    newLineEditor(strings.NewReader(input), &stdout),
		out:       NewStreamWriter(&stdout, StreamInstant, false),
		errOut:    &stderr,
	}
	if err := s.loop(ctx); err != nil {
		t.Fatalf("loop: %v", err)
	}
	if len(s.pc.Tokens) == 0 {
		t.Fatal("history lost after /load")
	}
	log := stderr.String()
	for _, want := range []string{"saved", "conversation reset", "loaded", "unknown command /bogus"} {
		if !strings.Contains(log, want) {
			t.Errorf("stderr missing %q:\n%s", want, log)
		}
	}
}
