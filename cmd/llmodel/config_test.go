package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigFile(t *testing.T) {
	cfg, err := loadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file: %v", err)
	}
	if cfg.Temperature != nil || cfg.ModelsDir != "" {
		t.Fatalf("missing file should give an empty config, got %+v", cfg)
	}

	path := writeConfig(t, `
models_dir: /srv/models
engine: toy
temperature: 0
top_k: 12
snapshots: false
log_format: json
`)
	cfg, err = loadConfigFile(path)
	if err != nil {
		t.Fatalf("loadConfigFile: %v", err)
	}
	if cfg.ModelsDir != "/srv/models" || cfg.Engine != "toy" || cfg.LogFormat != "json" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Temperature == nil || *cfg.Temperature != 0 {
		t.Fatal("explicit zero temperature should be kept")
	}
	if cfg.TopP != nil {
		t.Fatal("unset top_p should stay nil")
	}
	if cfg.Snapshots == nil || *cfg.Snapshots {
		t.Fatal("snapshots: false not decoded")
	}

	if _, err := loadConfigFile(writeConfig(t, "top_k: [")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestApplySamplingConfigRespectsFlags(t *testing.T) {
	temp, topK, batch := 0.1, int64(7), int64(32)
	cfg := Config{Temperature: &temp, TopK: &topK, Batch: &batch}

	var opts samplingOpts
	cmd := &cli.Command{
		Name:  "t",
		Flags: opts.flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			applySamplingConfig(c, cfg, &opts)
			return nil
		},
	}
	if err := cmd.Run(context.Background(), []string{"t", "--temp", "0.5"}); err != nil {
		t.Fatal(err)
	}
	if opts.temp != 0.5 {
		t.Errorf("flag should win over config, temp = %v", opts.temp)
	}
	if opts.topK != 7 || opts.batch != 32 {
		t.Errorf("config not applied: top_k=%d batch=%d", opts.topK, opts.batch)
	}
	if float32(opts.topP) != 0.9 {
		t.Errorf("default top_p changed to %v", opts.topP)
	}

	pc := opts.promptContext()
	if pc.Temp != 0.5 || pc.TopK != 7 || pc.NBatch != 32 {
		t.Errorf("promptContext = %+v", pc)
	}
}

func TestApplyServeConfig(t *testing.T) {
	off := false
	cfg := Config{ServerAddress: "0.0.0.0:9000", Snapshots: &off}
	var (
		addr      = "127.0.0.1:8080"
		snapshots = true
	)
	cmd := &cli.Command{
		Name: "serve",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Destination: &addr, Value: addr},
			&cli.BoolFlag{Name: "snapshots", Destination: &snapshots, Value: true},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			applyServeConfig(c, cfg, &addr, &snapshots)
			return nil
		},
	}
	if err := cmd.Run(context.Background(), []string{"serve"}); err != nil {
		t.Fatal(err)
	}
	if addr != "0.0.0.0:9000" || snapshots {
		t.Fatalf("addr=%s snapshots=%v", addr, snapshots)
	}
}
