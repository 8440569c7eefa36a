package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Engine.ChunkCacheSize != 128 || cfg.Engine.MeshCacheSize != 256 {
		t.Errorf("cache defaults = %d/%d", cfg.Engine.ChunkCacheSize, cfg.Engine.MeshCacheSize)
	}
	if cfg.Engine.Isolevel != 0.5 {
		t.Errorf("isolevel default = %f", cfg.Engine.Isolevel)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level default = %q", cfg.Log.Level)
	}
}

func TestClamp(t *testing.T) {
	cfg := Default()
	cfg.Engine.Workers = -3
	cfg.Engine.ChunkCacheSize = 0
	cfg.Engine.MeshCacheSize = -1
	cfg.Sim.Frames = -10
	cfg.Sim.FrameMillis = 0
	cfg.Clamp()
	if cfg.Engine.Workers != 0 {
		t.Errorf("Workers = %d, want 0", cfg.Engine.Workers)
	}
	if cfg.Engine.ChunkCacheSize != 1 || cfg.Engine.MeshCacheSize != 1 {
		t.Errorf("cache sizes = %d/%d, want 1/1", cfg.Engine.ChunkCacheSize, cfg.Engine.MeshCacheSize)
	}
	if cfg.Sim.Frames != 0 || cfg.Sim.FrameMillis != 1 {
		t.Errorf("sim = %d/%d", cfg.Sim.Frames, cfg.Sim.FrameMillis)
	}

	cfg.Engine.Workers = 500
	cfg.Clamp()
	if cfg.Engine.Workers != 64 {
		t.Errorf("Workers = %d, want 64", cfg.Engine.Workers)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
engine:
  workers: 8
  isolevel: 0.6
  seed: 1234
sim:
  frames: 100
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := Default()
	if err := loadFromFile(cfg, path); err != nil {
		t.Fatal(err)
	}
	if cfg.Engine.Workers != 8 || cfg.Engine.Seed != 1234 {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.Engine.Isolevel != 0.6 {
		t.Errorf("isolevel = %f, want 0.6", cfg.Engine.Isolevel)
	}
	if cfg.Sim.Frames != 100 {
		t.Errorf("frames = %d, want 100", cfg.Sim.Frames)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Sim.FrameMillis != 16 || cfg.Engine.ChunkCacheSize != 128 {
		t.Errorf("defaults overwritten: %+v", cfg)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
}

func TestLoadFromMissingFile(t *testing.T) {
	cfg := Default()
	if err := loadFromFile(cfg, filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
