package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func withTTY(t *testing.T, tty bool) {
	t.Helper()
	prev := stdinIsTTY
	stdinIsTTY = func() bool { return tty }
	t.Cleanup(func() { stdinIsTTY = prev })
}

func TestDiscoverModels(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b.gguf", "a.GGUF", "legacy.bin", "notes.txt")
	if err := os.Mkdir(filepath.Join(dir, "sub.gguf"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := discoverModels(dir)
	if err != nil {
		t.Fatalf("discoverModels: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.GGUF"),
		filepath.Join(dir, "b.gguf"),
		filepath.Join(dir, "legacy.bin"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("discoverModels mismatch (-want +got):\n%s", diff)
	}

	if _, err := discoverModels(filepath.Join(dir, "missing")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestResolveModelPath(t *testing.T) {
	t.Run("model flag wins", func(t *testing.T) {
		t.Setenv("LLMODEL_MODELS_DIR", t.TempDir())
		got, err := resolveModelPath(" /tmp/x/../model.gguf ", "", nil, io.Discard)
		if err != nil {
			t.Fatalf("resolveModelPath: %v", err)
		}
		if got != filepath.Clean("/tmp/model.gguf") {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("single model from env dir", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "only.gguf")
		t.Setenv("LLMODEL_MODELS_DIR", dir)
		withTTY(t, false)

		var stderr bytes.Buffer
		got, err := resolveModelPath("", "", nil, &stderr)
		if err != nil {
			t.Fatalf("resolveModelPath: %v", err)
		}
		if got != filepath.Join(dir, "only.gguf") {
			t.Fatalf("got %q", got)
		}
		if !strings.Contains(stderr.String(), "using model") {
			t.Fatalf("expected notice on stderr, got %q", stderr.String())
		}
	})

	t.Run("flag dir overrides env", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "flag.gguf")
		t.Setenv("LLMODEL_MODELS_DIR", t.TempDir())
		got, err := resolveModelPath("", dir, nil, io.Discard)
		if err != nil {
			t.Fatalf("resolveModelPath: %v", err)
		}
		if got != filepath.Join(dir, "flag.gguf") {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("empty dir", func(t *testing.T) {
		if _, err := resolveModelPath("", t.TempDir(), nil, io.Discard); err == nil {
			t.Fatal("expected error for a directory without models")
		}
	})

	t.Run("multiple models need a tty", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "a.gguf", "b.gguf")
		withTTY(t, false)
		if _, err := resolveModelPath("", dir, bytes.NewBufferString("1\n"), io.Discard); err == nil {
			t.Fatal("expected error when stdin is not a tty")
		}
	})

	t.Run("interactive selection", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "b.gguf", "a.gguf")
		withTTY(t, true)

		var stderr bytes.Buffer
		got, err := resolveModelPath("", dir, bytes.NewBufferString("x\n9\n2\n"), &stderr)
		if err != nil {
			t.Fatalf("resolveModelPath: %v", err)
		}
		if got != filepath.Join(dir, "b.gguf") {
			t.Fatalf("got %q", got)
		}
		if strings.Count(stderr.String(), "invalid selection") != 2 {
			t.Fatalf("expected two rejected selections, got %q", stderr.String())
		}
	})

	t.Run("selection hits eof", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "a.gguf", "b.gguf")
		withTTY(t, true)
		if _, err := resolveModelPath("", dir, bytes.NewBufferString(""), io.Discard); err == nil {
			t.Fatal("expected error on empty stdin")
		}
	})
}
