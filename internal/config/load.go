package config

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load builds the configuration from defaults, an optional YAML file, and
// command-line flags, in that priority order. It consumes os.Args via the
// standard flag package.
func Load() (*Config, error) {
	cfg := Default()

	var (
		configPath = flag.String("config", "", "path to a YAML config file")
		workers    = flag.Int("workers", cfg.Engine.Workers, "pipeline worker count (0 = one per CPU)")
		seed       = flag.Int64("seed", cfg.Engine.Seed, "density field seed")
		isolevel   = flag.Float64("isolevel", float64(cfg.Engine.Isolevel), "initial isolevel")
		frames     = flag.Int("frames", cfg.Sim.Frames, "frames to simulate (0 = run until interrupted)")
		logLevel   = flag.String("log-level", cfg.Log.Level, "log level: debug, info, warn, error")
		logFile    = flag.String("log-file", cfg.Log.File, "rotating log file path (empty = console only)")
	)
	flag.Parse()

	path := *configPath
	if path == "" {
		if _, err := os.Stat("./config.yaml"); err == nil {
			path = "./config.yaml"
		}
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	// Flags passed explicitly win over the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workers":
			cfg.Engine.Workers = *workers
		case "seed":
			cfg.Engine.Seed = *seed
		case "isolevel":
			cfg.Engine.Isolevel = float32(*isolevel)
		case "frames":
			cfg.Sim.Frames = *frames
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-file":
			cfg.Log.File = *logFile
		}
	})

	cfg.Clamp()
	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
