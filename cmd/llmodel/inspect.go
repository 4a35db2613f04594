package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/llmodel/internal/backend"
	"github.com/samcharles93/llmodel/internal/gguf"
	"github.com/samcharles93/llmodel/internal/probe"
)

type legacyReport struct {
	Version uint32        `json:"version"`
	HParams probe.HParams `json:"hparams"`
}

type tensorReport struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Dims     []uint64 `json:"dims"`
	Elements uint64   `json:"elements"`
}

// inspectReport is everything the host can learn about a model file
// without loading it.
type inspectReport struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Format string `json:"format"`

	GGUFVersion   uint32 `json:"gguf_version,omitempty"`
	Architecture  string `json:"architecture,omitempty"`
	Name          string `json:"name,omitempty"`
	ContextLength uint64 `json:"context_length,omitempty"`
	Embedding     uint64 `json:"embedding_length,omitempty"`
	Blocks        uint64 `json:"block_count,omitempty"`
	VocabSize     int    `json:"vocab_size,omitempty"`
	Supported     bool   `json:"supported"`
	Deferred      bool   `json:"deferred,omitempty"`
	Problem       string `json:"problem,omitempty"`

	Legacy      *legacyReport `json:"legacy,omitempty"`
	RequiredMem uint64        `json:"required_mem"`

	MagicMatch bool   `json:"magic_match"`
	Backend    string `json:"backend,omitempty"`

	KV      map[string]any `json:"kv,omitempty"`
	Tensors []tensorReport `json:"tensors,omitempty"`
}

func inspectCmd() *cli.Command {
	var (
		asJSON      bool
		showKV      bool
		showTensors bool
	)
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show what the backend sees in a model file without loading it",
		ArgsUsage: "[MODEL]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "model",
				Aliases:     []string{"m"},
				Usage:       "path to the model file",
				Destination: &modelPath,
			},
			&cli.StringFlag{
				Name:        "backend",
				Usage:       "backend build variant to match (auto, cpu, llamacpp)",
				Value:       "auto",
				Destination: &variant,
			},
			&cli.BoolFlag{Name: "json", Usage: "print JSON", Destination: &asJSON},
			&cli.BoolFlag{Name: "kv", Usage: "include all metadata keys", Destination: &showKV},
			&cli.BoolFlag{Name: "tensors", Usage: "include the tensor table", Destination: &showTensors},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := modelPath
			if path == "" {
				path = cmd.Args().First()
			}
			if path == "" {
				return cli.Exit("error: --model or a path argument is required", 1)
			}
			r, err := inspectModel(ctx, path, variant, showKV, showTensors)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if asJSON {
				return writeJSON(os.Stdout, r)
			}
			printInspect(os.Stdout, r)
			return nil
		},
	}
}

func inspectModel(ctx context.Context, path, variant string, withKV, withTensors bool) (*inspectReport, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	r := &inspectReport{Path: path, Size: st.Size(), Format: "unknown"}

	if h, err := probe.ReadHeader(path); err == nil {
		r.Format = "ggjt"
		r.Legacy = &legacyReport{Version: h.Version, HParams: h.HParams}
	} else if !errors.Is(err, probe.ErrNotLegacy) {
		return nil, err
	}
	r.RequiredMem = probe.RequiredMem(path)

	f, err := gguf.Open(path)
	switch {
	case errors.Is(err, gguf.ErrInvalidMagic):
	case err != nil:
		r.Problem = err.Error()
	default:
		r.Format = "gguf"
		fillGGUF(r, f, withKV, withTensors)
		if c, err := probe.Inspect(path); err != nil {
			r.Problem = err.Error()
		} else {
			r.Supported, r.Deferred = c.Supported, c.Deferred
		}
	}

	r.MagicMatch = probe.MagicMatchContext(ctx, path)
	if impl, err := backend.Find(path, variant); err == nil {
		r.Backend = impl.String()
	} else if !errors.Is(err, backend.ErrNoImplementation) {
		return nil, err
	}
	return r, nil
}

func fillGGUF(r *inspectReport, f *gguf.File, withKV, withTensors bool) {
	r.GGUFVersion = f.Header.Version
	r.Architecture, _ = f.Architecture()
	r.Name, _ = gguf.GetString(f.KV, gguf.KeyName)
	if r.Architecture != "" {
		r.ContextLength, _ = gguf.GetUint64(f.KV, gguf.ArchKey(r.Architecture, "context_length"))
		r.Embedding, _ = gguf.GetUint64(f.KV, gguf.ArchKey(r.Architecture, "embedding_length"))
		r.Blocks, _ = gguf.GetUint64(f.KV, gguf.ArchKey(r.Architecture, "block_count"))
	}
	if toks, ok := gguf.GetArray[string](f.KV, "tokenizer.ggml.tokens"); ok {
		r.VocabSize = len(toks)
	}
	if withKV {
		r.KV = make(map[string]any, len(f.KV))
		for k, v := range f.KV {
			r.KV[k] = summarizeValue(v)
		}
	}
	if withTensors {
		for _, t := range f.Tensors {
			r.Tensors = append(r.Tensors, tensorReport{
				Name:     t.Name,
				Type:     t.Type.String(),
				Dims:     t.Dims,
				Elements: t.Elements(),
			})
		}
	}
}

// summarizeValue keeps scalars and replaces long arrays with their shape.
func summarizeValue(v gguf.Value) any {
	arr, ok := v.Value.(gguf.ArrayValue)
	if !ok {
		return v.Value
	}
	if len(arr.Values) <= 8 {
		return arr.Values
	}
	return fmt.Sprintf("[%d x %s]", len(arr.Values), arr.ElemType)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printInspect(w io.Writer, r *inspectReport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	row := func(k string, v any) { _, _ = fmt.Fprintf(tw, "%s\t%v\n", k, v) }

	row("path", r.Path)
	row("size", formatBytes(uint64(r.Size)))
	row("format", r.Format)
	if r.GGUFVersion != 0 {
		row("gguf version", r.GGUFVersion)
	}
	if r.Architecture != "" {
		row("architecture", r.Architecture)
	}
	if r.Name != "" {
		row("name", r.Name)
	}
	if r.ContextLength != 0 {
		row("context length", r.ContextLength)
	}
	if r.Embedding != 0 {
		row("embedding", r.Embedding)
	}
	if r.Blocks != 0 {
		row("blocks", r.Blocks)
	}
	if r.VocabSize != 0 {
		row("vocab", r.VocabSize)
	}
	if r.Format == "gguf" {
		row("supported", r.Supported)
	}
	if r.Deferred {
		row("deferred", "served by another backend")
	}
	if r.Problem != "" {
		row("problem", r.Problem)
	}
	if l := r.Legacy; l != nil {
		row("ggjt version", l.Version)
		h := l.HParams
		row("hparams", fmt.Sprintf("vocab=%d embd=%d mult=%d head=%d layer=%d rot=%d ftype=%d",
			h.NVocab, h.NEmbd, h.NMult, h.NHead, h.NLayer, h.NRot, h.FType))
	}
	if r.RequiredMem != 0 {
		row("required mem", formatBytes(r.RequiredMem))
	}
	row("magic match", r.MagicMatch)
	backendName := r.Backend
	if backendName == "" {
		backendName = "none"
	}
	row("backend", backendName)
	_ = tw.Flush()

	if len(r.KV) > 0 {
		_, _ = fmt.Fprintln(w, "\nmetadata:")
		keys := make([]string, 0, len(r.KV))
		for k := range r.KV {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			_, _ = fmt.Fprintf(tw, "  %s\t%v\n", k, r.KV[k])
		}
		_ = tw.Flush()
	}
	if len(r.Tensors) > 0 {
		_, _ = fmt.Fprintf(w, "\ntensors (%d):\n", len(r.Tensors))
		for _, t := range r.Tensors {
			dims := make([]string, len(t.Dims))
			for i, d := range t.Dims {
				dims[i] = fmt.Sprint(d)
			}
			_, _ = fmt.Fprintf(tw, "  %s\t%s\t[%s]\n", t.Name, t.Type, strings.Join(dims, " x "))
		}
		_ = tw.Flush()
	}
}

func formatBytes(n uint64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case n >= gb:
		return fmt.Sprintf("%.1f GB", float64(n)/gb)
	case n >= mb:
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	case n >= kb:
		return fmt.Sprintf("%.1f KB", float64(n)/kb)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
