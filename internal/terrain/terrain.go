// Package terrain implements an adaptive level-of-detail terrain streaming
// engine: a quadtree index over an unbounded 2D world, bounded LRU caches
// for raw chunks and finished meshes, and a resumable generation pipeline
// run by a work-stealing worker pool against a pluggable compute backend.
package terrain

import (
	"runtime"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"terrastream/internal/compute"
	"terrastream/internal/geom"
	"terrastream/internal/profiling"
)

// TerrainRegion pairs a camera visibility band with the subdivision level
// terrain inside it should reach.
type TerrainRegion struct {
	Region geom.Region
	Level  uint32
}

// RenderBundle is one drawable unit selected by Render: the leaf (or
// ancestor fallback) key and its backend resource.
type RenderBundle struct {
	Key      ChunkKey
	Resource compute.ResourceHandle
}

// Options configures a Terrain. Zero fields take defaults.
type Options struct {
	// Workers is the pipeline worker count. Defaults to GOMAXPROCS.
	Workers int
	// ChunkCacheSize bounds the raw chunk cache. Defaults to 128.
	ChunkCacheSize int
	// MeshCacheSize bounds the finished mesh cache. Defaults to 256.
	MeshCacheSize int
	// Isolevel is the initial density threshold. Defaults to 0.5.
	Isolevel float32
}

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.ChunkCacheSize <= 0 {
		opts.ChunkCacheSize = 128
	}
	if opts.MeshCacheSize <= 0 {
		opts.MeshCacheSize = 256
	}
	if opts.Isolevel == 0 {
		opts.Isolevel = 0.5
	}
	return opts
}

// Terrain is the engine facade. UpdateTerrain and Render are called from
// the frame loop; everything else runs on the pool workers.
type Terrain struct {
	data  *terrainData
	sched *Scheduler[task]
	log   *zap.Logger
}

// New creates the engine and starts its workers.
func New(backend compute.Backend, log *zap.Logger, opts Options) *Terrain {
	opts = opts.withDefaults()
	t := &Terrain{
		data: newTerrainData(backend, log,
			opts.ChunkCacheSize, opts.MeshCacheSize, opts.Isolevel),
		sched: NewScheduler[task](opts.Workers),
		log:   log,
	}
	t.sched.Start(t.data.dispatch)
	log.Info("terrain engine started",
		zap.Int("workers", opts.Workers),
		zap.Int("chunk_cache", opts.ChunkCacheSize),
		zap.Int("mesh_cache", opts.MeshCacheSize),
		zap.Float32("isolevel", opts.Isolevel),
	)
	return t
}

// UpdateTerrain applies the frame's visibility bands to the quadtree and
// schedules generation for every leaf the bands touch. Keys are pushed
// nearest-to-camera first (the injector is drained in order) and refreshed
// in the mesh cache so visible meshes survive eviction pressure.
func (t *Terrain) UpdateTerrain(position mgl32.Vec3, regions []TerrainRegion) {
	defer profiling.Track("terrain.UpdateTerrain")()
	d := t.data

	d.treeMu.Lock()
	for i := range regions {
		d.tree.EnsureNodeInRegion(&regions[i].Region)
		d.tree.SetLevelInRegion(&regions[i].Region, regions[i].Level)
	}
	d.tree.RebuildTree()
	d.treeMu.Unlock()

	plain := make([]geom.Region, len(regions))
	for i := range regions {
		plain[i] = regions[i].Region
	}

	d.treeMu.RLock()
	var keys []ChunkKey
	for node := range d.tree.LeavesIntersecting(plain) {
		keys = append(keys, node.Key())
	}
	d.treeMu.RUnlock()

	// Farthest first; the reversed push below hands workers the nearest
	// keys earliest.
	sort.Slice(keys, func(i, j int) bool {
		di := keys[i].Bounds.CenterVec().Sub(position).Len()
		dj := keys[j].Bounds.CenterVec().Sub(position).Len()
		return di > dj
	})
	d.updateLastAccessed(keys)

	for i := len(keys) - 1; i >= 0; i-- {
		key := keys[i]
		if d.markPending(key) {
			t.sched.Push(task{kind: taskGenerateChunk, key: key})
		}
		t.sched.Push(task{kind: taskStitchMesh, key: key, stride: stitchStrideFor(key, keys)})
	}
}

// stitchStrideFor derives the per-face stitch strides of key from its
// neighbors in the current leaf set: a face shared with a coarser leaf is
// quantized to that leaf's resolution (stride 2^level difference, coarsest
// neighbor wins); faces against same-or-finer neighbors stay native, since
// only the finer side of a seam moves.
func stitchStrideFor(key ChunkKey, keys []ChunkKey) StitchStride {
	stride := NoStitch
	kb := key.Bounds
	yOverlap := func(other geom.Box3) bool {
		return (other.Min.Y >= kb.Min.Y && other.Min.Y < kb.Max.Y) ||
			(other.Max.Y <= kb.Max.Y && other.Max.Y > kb.Min.Y)
	}
	xOverlap := func(other geom.Box3) bool {
		return (other.Min.X >= kb.Min.X && other.Min.X < kb.Max.X) ||
			(other.Max.X <= kb.Max.X && other.Max.X > kb.Min.X)
	}
	for _, other := range keys {
		if other == key {
			continue
		}
		s := levelStride(key.Level, other.Level)
		ob := other.Bounds
		if ob.Max.X == kb.Min.X && yOverlap(ob) && s > stride.MinX {
			stride.MinX = s
		}
		if ob.Min.X == kb.Max.X && yOverlap(ob) && s > stride.MaxX {
			stride.MaxX = s
		}
		if ob.Max.Y == kb.Min.Y && xOverlap(ob) && s > stride.MinY {
			stride.MinY = s
		}
		if ob.Min.Y == kb.Max.Y && xOverlap(ob) && s > stride.MaxY {
			stride.MaxY = s
		}
	}
	return stride
}

func levelStride(level, neighbor uint32) uint32 {
	if level <= neighbor {
		return 1
	}
	return 1 << (level - neighbor)
}

// Render walks the tree under the given regions and returns a drawable per
// visible leaf. When a leaf's mesh is not ready yet, the walk falls back
// to the nearest ancestor that has one, so LOD transitions never flash
// holes. Safe to call concurrently with the pipeline; it takes read locks
// only.
func (t *Terrain) Render(regions []geom.Region) []RenderBundle {
	defer profiling.Track("terrain.Render")()
	d := t.data
	d.meshMu.RLock()
	defer d.meshMu.RUnlock()
	d.treeMu.RLock()
	defer d.treeMu.RUnlock()

	readyMesh := func(key ChunkKey) (*ChunkMesh, bool) {
		mesh, ok := d.meshCache.Get(key)
		if !ok || !mesh.HasResource() {
			return nil, false
		}
		return mesh, true
	}

	var bundles []RenderBundle
	var stack []*Node
	for root := range d.tree.RootNodes() {
		if root.intersectsAny(regions) {
			stack = append(stack, root)
		}
	}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node.SubNodes() == nil {
			if mesh, ok := readyMesh(node.Key()); ok {
				bundles = append(bundles, RenderBundle{Key: node.Key(), Resource: mesh.Resource()})
			}
			continue
		}
		var intersecting []*Node
		for _, sub := range node.SubNodes() {
			if sub.intersectsAny(regions) {
				intersecting = append(intersecting, sub)
			}
		}
		allLeaves := true
		for _, sub := range intersecting {
			if sub.SubNodes() != nil {
				allLeaves = false
				break
			}
		}
		if allLeaves {
			incomplete := false
			for _, sub := range intersecting {
				if _, ok := readyMesh(sub.Key()); !ok {
					incomplete = true
					break
				}
			}
			if incomplete {
				if mesh, ok := readyMesh(node.Key()); ok {
					bundles = append(bundles, RenderBundle{Key: node.Key(), Resource: mesh.Resource()})
				}
				continue
			}
		}
		stack = append(stack, intersecting...)
	}
	return bundles
}

// SetIsolevel changes the density threshold and invalidates every cached
// triangle buffer and mesh. Invalidation is asynchronous: it is queued like
// any other pipeline task, so a Render call racing the invalidation worker
// may still see meshes at the old isolevel for a frame. Once it lands,
// Render returns a reduced set until later UpdateTerrain passes regenerate.
func (t *Terrain) SetIsolevel(isolevel float32) {
	t.data.setIsolevel(isolevel)
	t.sched.Push(task{kind: taskInvalidateTriangle})
	t.log.Info("isolevel changed", zap.Float32("isolevel", isolevel))
}

// Isolevel returns the active density threshold.
func (t *Terrain) Isolevel() float32 {
	return t.data.getIsolevel()
}

// LeafInfo is a read-only view of one quadtree leaf for debug overlays.
type LeafInfo struct {
	Bounds    geom.Box3
	Level     uint32
	MeshReady bool
}

// VisitLeaves calls fn for every leaf with its mesh readiness. Read-only;
// used by debug visualization.
func (t *Terrain) VisitLeaves(fn func(LeafInfo)) {
	d := t.data
	d.meshMu.RLock()
	defer d.meshMu.RUnlock()
	d.treeMu.RLock()
	defer d.treeMu.RUnlock()
	for node := range d.tree.Leaves() {
		mesh, ok := d.meshCache.Get(node.Key())
		fn(LeafInfo{
			Bounds:    node.Bounds(),
			Level:     node.Level(),
			MeshReady: ok && mesh.HasResource(),
		})
	}
}

// Stats is a point-in-time snapshot of engine occupancy.
type Stats struct {
	Chunks      int
	Meshes      int
	ReadyMeshes int
	Pending     int
}

// Stats reports cache occupancy and in-flight key count.
func (t *Terrain) Stats() Stats {
	d := t.data
	var s Stats
	d.chunkMu.RLock()
	s.Chunks = d.chunkCache.Len()
	d.chunkMu.RUnlock()
	d.meshMu.RLock()
	s.Meshes = d.meshCache.Len()
	d.meshCache.Each(func(_ ChunkKey, mesh *ChunkMesh) {
		if mesh.HasResource() {
			s.ReadyMeshes++
		}
	})
	d.meshMu.RUnlock()
	s.Pending = d.pendingCount()
	return s
}

// Close stops the workers and releases every cached backend resource.
func (t *Terrain) Close() {
	t.sched.Close()
	d := t.data
	d.chunkMu.Lock()
	d.chunkCache.Each(func(_ ChunkKey, chunk *Chunk) {
		chunk.Release()
	})
	d.chunkCache.Clear()
	d.chunkMu.Unlock()
	d.meshMu.Lock()
	d.meshCache.Each(func(_ ChunkKey, mesh *ChunkMesh) {
		mesh.Release()
	})
	d.meshCache.Clear()
	d.meshMu.Unlock()
	t.log.Info("terrain engine stopped")
}
