package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/samcharles93/llmodel/internal/envconfig"
)

// modelExtensions are the file suffixes treated as model candidates.
var modelExtensions = []string{".gguf", ".bin"}

// stdinIsTTY is a small seam for tests.
var stdinIsTTY = isTTY

func resolveModelsDir(flag string) string {
	if dir := strings.TrimSpace(flag); dir != "" {
		return dir
	}
	return envconfig.Models()
}

// resolveModelPath returns the --model value, or picks a model from the
// models directory: the only one, or an interactive choice.
func resolveModelPath(modelFlag, modelsFlag string, stdin io.Reader, stderr io.Writer) (string, error) {
	if p := strings.TrimSpace(modelFlag); p != "" {
		return filepath.Clean(p), nil
	}

	dir := resolveModelsDir(modelsFlag)
	if dir == "" {
		return "", errors.New("--model or --models-path is required unless LLMODEL_MODELS_DIR is set")
	}
	models, err := discoverModels(dir)
	if err != nil {
		return "", err
	}
	switch len(models) {
	case 0:
		return "", fmt.Errorf("no models found in %s", dir)
	case 1:
		_, _ = fmt.Fprintf(stderr, "using model %s\n", models[0])
		return models[0], nil
	default:
		if !stdinIsTTY() {
			return "", fmt.Errorf("multiple models found in %s but stdin is not interactive; set --model", dir)
		}
		return selectModelInteractively(dir, models, stdin, stderr)
	}
}

// discoverModels lists model files directly under dir, sorted by path.
func discoverModels(dir string) ([]string, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("models directory is empty")
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var models []string
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if slices.Contains(modelExtensions, ext) {
			models = append(models, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(models)
	return models, nil
}

func selectModelInteractively(dir string, models []string, stdin io.Reader, stderr io.Writer) (string, error) {
	_, _ = fmt.Fprintf(stderr, "select a model from %s\n", dir)
	for i, m := range models {
		_, _ = fmt.Fprintf(stderr, "%d. %s\n", i+1, modelDisplayName(dir, m))
	}

	r := bufio.NewReader(stdin)
	for {
		_, _ = fmt.Fprintf(stderr, "selection [1-%d]: ", len(models))
		line, err := r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		eof := errors.Is(err, io.EOF)
		line = strings.TrimSpace(line)
		if line == "" {
			if eof {
				return "", errors.New("no selection provided on stdin; set --model")
			}
			continue
		}
		idx, convErr := strconv.Atoi(line)
		if convErr == nil && idx >= 1 && idx <= len(models) {
			return models[idx-1], nil
		}
		_, _ = fmt.Fprintf(stderr, "invalid selection %q\n", line)
		if eof {
			return "", errors.New("invalid selection provided on stdin; set --model")
		}
	}
}

func modelDisplayName(dir, path string) string {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." {
		return filepath.Base(path)
	}
	return rel
}

func isTTY() bool {
	st, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return st.Mode()&os.ModeCharDevice != 0
}
