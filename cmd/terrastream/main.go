// Command terrastream runs the terrain streaming engine headless: a
// simulated camera wanders the world, the engine streams chunks and meshes
// around it, and occupancy is logged every second of simulated time.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"terrastream/internal/compute/cpufield"
	"terrastream/internal/config"
	"terrastream/internal/debugviz"
	"terrastream/internal/logger"
	"terrastream/internal/profiling"
	"terrastream/internal/terrain"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.File); err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend := cpufield.New(cfg.Engine.Seed)
	engine := terrain.New(backend, log, terrain.Options{
		Workers:        cfg.Engine.Workers,
		ChunkCacheSize: cfg.Engine.ChunkCacheSize,
		MeshCacheSize:  cfg.Engine.MeshCacheSize,
		Isolevel:       cfg.Engine.Isolevel,
	})
	defer engine.Close()

	cam := newCamera(cfg.Sim.CameraSpeed)
	frameDelay := time.Duration(cfg.Sim.FrameMillis) * time.Millisecond
	logEvery := int(time.Second / frameDelay)
	if logEvery < 1 {
		logEvery = 1
	}
	// Nudge the isolevel once mid-run to exercise global invalidation.
	isoFrame := cfg.Sim.Frames / 2

	log.Info("simulation starting",
		zap.Int("frames", cfg.Sim.Frames),
		zap.Int64("seed", cfg.Engine.Seed),
	)

	ticker := time.NewTicker(frameDelay)
	defer ticker.Stop()
	for frame := 0; cfg.Sim.Frames == 0 || frame < cfg.Sim.Frames; frame++ {
		select {
		case <-ctx.Done():
			log.Info("interrupted", zap.Int("frame", frame))
			return
		case <-ticker.C:
		}

		profiling.ResetFrame()
		cam.advance(frame)
		bands := cam.visibilityBands()
		engine.UpdateTerrain(cam.position, bands)
		bundles := engine.Render(regionList(bands))

		if isoFrame > 0 && frame == isoFrame {
			engine.SetIsolevel(cfg.Engine.Isolevel + 0.05)
		}
		if frame%logEvery == 0 {
			log.Info("frame",
				zap.Int("n", frame),
				zap.Float32("x", cam.position.X()),
				zap.Float32("y", cam.position.Y()),
				zap.String("state", debugviz.Summary(engine, len(bundles))),
				zap.String("profile", profiling.TopN(4)),
			)
			if log.Core().Enabled(zap.DebugLevel) {
				log.Debug("leaf map\n" + debugviz.LeafMap(engine, cam.position, 1024, 48))
			}
		}
	}
	log.Info("simulation finished")
}
