// Package config holds runtime configuration for the terrain engine and
// the simulation driver. Values load with priority defaults < file < flags.
package config

// Config is the root configuration.
type Config struct {
	Engine EngineConfig `yaml:"engine"`
	Sim    SimConfig    `yaml:"sim"`
	Log    LogConfig    `yaml:"log"`
}

// EngineConfig configures the terrain engine itself.
type EngineConfig struct {
	// Workers is the pipeline worker count. 0 means one per CPU.
	Workers int `yaml:"workers"`
	// ChunkCacheSize bounds the raw chunk cache.
	ChunkCacheSize int `yaml:"chunk_cache_size"`
	// MeshCacheSize bounds the finished mesh cache.
	MeshCacheSize int `yaml:"mesh_cache_size"`
	// Isolevel is the initial density threshold.
	Isolevel float32 `yaml:"isolevel"`
	// Seed drives the density field.
	Seed int64 `yaml:"seed"`
}

// SimConfig configures the headless camera simulation.
type SimConfig struct {
	// Frames to run before exiting; 0 runs until interrupted.
	Frames int `yaml:"frames"`
	// FrameMillis is the delay between simulated frames.
	FrameMillis int `yaml:"frame_millis"`
	// CameraSpeed is world units moved per frame.
	CameraSpeed float64 `yaml:"camera_speed"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Workers:        0,
			ChunkCacheSize: 128,
			MeshCacheSize:  256,
			Isolevel:       0.5,
			Seed:           1,
		},
		Sim: SimConfig{
			Frames:      600,
			FrameMillis: 16,
			CameraSpeed: 1.5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Clamp pulls out-of-range values back to safe bounds.
func (c *Config) Clamp() {
	if c.Engine.Workers < 0 {
		c.Engine.Workers = 0
	}
	if c.Engine.Workers > 64 {
		c.Engine.Workers = 64
	}
	if c.Engine.ChunkCacheSize < 1 {
		c.Engine.ChunkCacheSize = 1
	}
	if c.Engine.MeshCacheSize < 1 {
		c.Engine.MeshCacheSize = 1
	}
	if c.Sim.Frames < 0 {
		c.Sim.Frames = 0
	}
	if c.Sim.FrameMillis < 1 {
		c.Sim.FrameMillis = 1
	}
}
