package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"

	"github.com/samcharles93/llmodel/internal/gguf"
	"github.com/samcharles93/llmodel/internal/logger"
)

func runApp(t *testing.T, args ...string) error {
	t.Helper()
	t.Cleanup(func() { logger.SetDefault(nil) })
	prev := configFile
	t.Cleanup(func() { configFile = prev })

	cfg := writeConfig(t, "log_level: error\n")
	return newApp().Run(context.Background(), append([]string{"llmodel", "--config", cfg}, args...))
}

func TestCommandNamesUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range newApp().Commands {
		for _, name := range append([]string{c.Name}, c.Aliases...) {
			if seen[name] {
				t.Errorf("duplicate command name %q", name)
			}
			seen[name] = true
		}
	}
}

func TestToyCommandWritesModel(t *testing.T) {
	out := filepath.Join(t.TempDir(), "m.gguf")
	if err := runApp(t, "toy", "--out", out, "--arch", "falcon"); err != nil {
		t.Fatalf("toy: %v", err)
	}
	f, err := gguf.OpenMetadata(out)
	if err != nil {
		t.Fatalf("open written model: %v", err)
	}
	if arch, _ := f.Architecture(); arch != "falcon" {
		t.Fatalf("architecture = %q", arch)
	}
}

func TestRunCommandSavesState(t *testing.T) {
	path := useToyEngine(t)
	state := filepath.Join(t.TempDir(), "state.json")
	err := runApp(t, "run",
		"--engine", "toy", "--model", path,
		"--prompt", "hello", "--steps", "3", "--temp", "0",
		"--stats=false", "--save-state", state)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := os.Stat(state); err != nil {
		t.Fatalf("state file not written: %v", err)
	}

	next := filepath.Join(t.TempDir(), "next.json")
	err = runApp(t, "run",
		"--engine", "toy", "--model", path,
		"--prompt", " the", "--steps", "3", "--temp", "0",
		"--stats=false", "--load-state", state, "--save-state", next)
	if err != nil {
		t.Fatalf("continued run: %v", err)
	}

	first, second := readSession(t, state), readSession(t, next)
	if len(second.Context.Tokens) <= len(first.Context.Tokens) {
		t.Fatalf("continued session did not grow: %d -> %d", len(first.Context.Tokens), len(second.Context.Tokens))
	}
	for i, tok := range first.Context.Tokens {
		if second.Context.Tokens[i] != tok {
			t.Fatalf("history diverged at %d", i)
		}
	}
}

func readSession(t *testing.T, path string) sessionFile {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		t.Fatal(err)
	}
	return sf
}

func TestInspectToyModel(t *testing.T) {
	path := useToyEngine(t)
	r, err := inspectModel(testContext(), path, "auto", true, true)
	if err != nil {
		t.Fatalf("inspectModel: %v", err)
	}
	if r.Format != "gguf" || r.Architecture != "llama" || !r.Supported || !r.MagicMatch {
		t.Fatalf("unexpected report %+v", r)
	}
	if r.Backend == "" {
		t.Fatal("no backend matched")
	}
	if r.RequiredMem != 0 {
		t.Fatalf("GGUF files have no legacy estimate, got %d", r.RequiredMem)
	}
	if _, ok := r.KV[gguf.KeyName]; !ok {
		t.Fatal("metadata missing general.name")
	}
	if r.VocabSize == 0 {
		t.Fatal("vocab size not read")
	}
}

func TestInspectUnknownFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.bin")
	if err := os.WriteFile(path, []byte("plain text, not a model"), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := inspectModel(testContext(), path, "auto", false, false)
	if err != nil {
		t.Fatalf("inspectModel: %v", err)
	}
	if r.Format != "unknown" || r.MagicMatch || r.Backend != "" {
		t.Fatalf("unexpected report %+v", r)
	}
}
