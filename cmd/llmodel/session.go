package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/samcharles93/llmodel/internal/inference"
	"github.com/samcharles93/llmodel/internal/logger"
	"github.com/samcharles93/llmodel/pkg/llmodel"
)

const sessionFileVersion = 1

// sessionFile is what --save-state writes: the conversation history and,
// when the engine supports it, a snapshot of its state.
type sessionFile struct {
	Version int                    `json:"version"`
	Model   string                 `json:"model"`
	Context *llmodel.PromptContext `json:"context"`
	State   []byte                 `json:"state,omitempty"`
}

func saveSession(path string, m llmodel.LLModel, modelFile string, pc *llmodel.PromptContext) error {
	sf := sessionFile{Version: sessionFileVersion, Model: filepath.Base(modelFile), Context: pc}
	if size := m.StateSize(); size > 0 {
		buf := make([]byte, size)
		if n := m.SaveState(buf); n > 0 {
			sf.State = buf[:n]
		}
	}
	data, err := json.Marshal(sf)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// loadSession restores a saved conversation into pc. If the snapshot does
// not apply to the current engine the history is re-evaluated instead.
func loadSession(ctx context.Context, path string, m llmodel.LLModel, modelFile string, pc *llmodel.PromptContext) error {
	log := logger.FromContext(ctx)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("parse session %s: %w", path, err)
	}
	if sf.Version != sessionFileVersion || sf.Context == nil {
		return fmt.Errorf("session %s: unsupported version %d", path, sf.Version)
	}
	if sf.Model != "" && sf.Model != filepath.Base(modelFile) {
		log.Warn("session was saved with a different model", "saved", sf.Model, "model", filepath.Base(modelFile))
	}

	// Sampling settings come from the current flags; only history is restored.
	pc.Tokens = append(pc.Tokens[:0], sf.Context.Tokens...)
	pc.NPast = sf.Context.NPast
	pc.NLastBatchTokens = sf.Context.NLastBatchTokens

	if len(sf.State) > 0 && m.RestoreState(sf.State) == len(sf.State) {
		log.Debug("session restored from snapshot", "tokens", len(pc.Tokens), "bytes", len(sf.State))
		return nil
	}
	if len(pc.Tokens) == 0 {
		pc.Reset()
		return nil
	}
	log.Info("replaying session history", "tokens", len(pc.Tokens))
	g := inference.NewGenerator(m, pc)
	g.Log = log
	return g.Replay(ctx)
}
