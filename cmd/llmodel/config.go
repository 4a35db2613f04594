package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config is ~/.config/llmodel/config.yaml. Pointer fields distinguish
// "not set" from zero values.
type Config struct {
	ModelsDir string `yaml:"models_dir"`
	Model     string `yaml:"model"`
	Engine    string `yaml:"engine"`
	Backend   string `yaml:"backend"`
	Device    string `yaml:"device"`
	Threads   *int64 `yaml:"threads"`
	Seed      *int64 `yaml:"seed"`

	// Sampling defaults
	Steps         *int64   `yaml:"steps"`
	Temperature   *float64 `yaml:"temperature"`
	TopK          *int64   `yaml:"top_k"`
	TopP          *float64 `yaml:"top_p"`
	RepeatPenalty *float64 `yaml:"repeat_penalty"`
	RepeatLastN   *int64   `yaml:"repeat_last_n"`
	Batch         *int64   `yaml:"batch"`
	ContextErase  *float64 `yaml:"context_erase"`

	// Output
	StreamMode string `yaml:"stream_mode"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
	Snapshots     *bool  `yaml:"snapshots"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "llmodel", "config.yaml")
}

// loadConfigFile reads path. A missing file is an empty config, not an error.
func loadConfigFile(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadConfig reads the --config file, or the default location when the
// flag is empty.
func LoadConfig() (Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return Config{}, err
		}
		return loadConfigFile(configFile)
	}
	return loadConfigFile(configPath())
}

func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyModelConfig fills the shared model flags that were not given on the
// command line.
func applyModelConfig(c *cli.Command, cfg Config) {
	if cfg.Model != "" && !c.IsSet("model") {
		modelPath = cfg.Model
	}
	if cfg.ModelsDir != "" && !c.IsSet("models-path") {
		modelsPath = cfg.ModelsDir
	}
	if cfg.Engine != "" && !c.IsSet("engine") {
		engineName = cfg.Engine
	}
	if cfg.Backend != "" && !c.IsSet("backend") {
		variant = cfg.Backend
	}
	if cfg.Device != "" && !c.IsSet("device") {
		device = cfg.Device
	}
	if cfg.Threads != nil && !c.IsSet("threads") {
		threads = *cfg.Threads
	}
	if cfg.Seed != nil && !c.IsSet("seed") {
		seed = *cfg.Seed
	}
}

func applySamplingConfig(c *cli.Command, cfg Config, o *samplingOpts) {
	if cfg.Steps != nil && !c.IsSet("steps") {
		o.steps = *cfg.Steps
	}
	if cfg.Temperature != nil && !c.IsSet("temp") {
		o.temp = *cfg.Temperature
	}
	if cfg.TopK != nil && !c.IsSet("top-k") {
		o.topK = *cfg.TopK
	}
	if cfg.TopP != nil && !c.IsSet("top-p") {
		o.topP = *cfg.TopP
	}
	if cfg.RepeatPenalty != nil && !c.IsSet("repeat-penalty") {
		o.repeatPenalty = *cfg.RepeatPenalty
	}
	if cfg.RepeatLastN != nil && !c.IsSet("repeat-last-n") {
		o.repeatLastN = *cfg.RepeatLastN
	}
	if cfg.Batch != nil && !c.IsSet("batch") {
		o.batch = *cfg.Batch
	}
	if cfg.ContextErase != nil && !c.IsSet("context-erase") {
		o.contextErase = *cfg.ContextErase
	}
}

func applyStreamConfig(c *cli.Command, cfg Config, streamMode *string) {
	if cfg.StreamMode != "" && !c.IsSet("stream-mode") {
		*streamMode = cfg.StreamMode
	}
}

func applyServeConfig(c *cli.Command, cfg Config, addr *string, snapshots *bool) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.Snapshots != nil && !c.IsSet("snapshots") {
		*snapshots = *cfg.Snapshots
	}
}
