package toy

import (
	"fmt"
	"os"

	"github.com/samcharles93/llmodel/internal/gguf"
)

// Spec describes a toy model file.
type Spec struct {
	Arch    string
	Name    string
	Version uint32
	Vocab   []string
	BOS     uint32
	EOS     uint32
	Hidden  uint32
	Seed    uint32
}

// DefaultSpec is a llama-tagged model with a small word vocabulary and a
// complete set of byte fallback tokens.
func DefaultSpec() Spec {
	vocab := []string{"<unk>", "<s>", "</s>"}
	vocab = append(vocab,
		"hello", " world", " the", " cat", " sat", " on", " mat", ".", ",", "!", "?",
		" ", "\n", "the", "a", " a", " is", " was", " and", " dog", " ran", " away",
	)
	for c := 'a'; c <= 'z'; c++ {
		vocab = append(vocab, string(c))
	}
	for b := range 256 {
		vocab = append(vocab, fmt.Sprintf("<0x%02X>", b))
	}
	return Spec{
		Arch:    "llama",
		Name:    "toy-llama",
		Version: 3,
		Vocab:   vocab,
		BOS:     1,
		EOS:     2,
		Hidden:  defaultHidden,
		Seed:    defaultSeed,
	}
}

func (s Spec) KV() []gguf.KV {
	kv := []gguf.KV{
		{Key: gguf.KeyArchitecture, Value: s.Arch},
		{Key: gguf.KeyName, Value: s.Name},
		{Key: gguf.KeyFileType, Value: uint32(1)},
		{Key: gguf.ArchKey(s.Arch, "context_length"), Value: uint32(2048)},
		{Key: gguf.ArchKey(s.Arch, "embedding_length"), Value: s.Hidden},
		{Key: gguf.ArchKey(s.Arch, "block_count"), Value: uint32(1)},
		{Key: KeySeed, Value: s.Seed},
		{Key: "tokenizer.ggml.model", Value: "toy"},
		{Key: "tokenizer.ggml.tokens", Value: s.Vocab},
		{Key: "tokenizer.ggml.bos_token_id", Value: s.BOS},
		{Key: "tokenizer.ggml.eos_token_id", Value: s.EOS},
		{Key: "tokenizer.ggml.unknown_token_id", Value: uint32(0)},
	}
	return kv
}

// Write creates the GGUF file for s at path.
func (s Spec) Write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gguf.Write(f, s.Version, s.KV(), nil); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
