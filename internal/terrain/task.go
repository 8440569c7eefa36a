package terrain

import (
	"runtime"
	"sync"

	"go.uber.org/zap"

	"terrastream/internal/compute"
)

type taskKind uint8

const (
	taskGenerateChunk taskKind = iota
	taskWriteChunk
	taskGenerateMesh
	taskWriteMesh
	taskGenerateMeshResources
	taskRegenerateTriangle
	taskInvalidateTriangle
	taskStitchMesh
)

func (k taskKind) String() string {
	switch k {
	case taskGenerateChunk:
		return "generate_chunk"
	case taskWriteChunk:
		return "write_chunk"
	case taskGenerateMesh:
		return "generate_mesh"
	case taskWriteMesh:
		return "write_mesh"
	case taskGenerateMeshResources:
		return "generate_mesh_resources"
	case taskRegenerateTriangle:
		return "regenerate_triangle"
	case taskInvalidateTriangle:
		return "invalidate_triangle"
	case taskStitchMesh:
		return "stitch_mesh"
	}
	return "unknown"
}

// task is one pipeline step. Stage state is never stored on the task
// beyond the payload it carries: every handler re-derives what to do from
// current cache contents, so a task scheduled twice for the same key is
// harmless.
type task struct {
	kind   taskKind
	key    ChunkKey
	chunk  *Chunk
	mesh   *ChunkMesh
	stride StitchStride
}

// terrainData is the shared state behind the pipeline: the quadtree, both
// caches, the active isolevel, and the in-flight key set. Workers touch it
// only through the task handlers.
//
// Writers take cache locks with a non-blocking try-acquire and requeue (or
// spin) on failure, so render-path readers are never starved behind a
// blocked writer.
type terrainData struct {
	backend compute.Backend
	log     *zap.Logger

	treeMu sync.RWMutex
	tree   *Tree

	isolevelMu sync.RWMutex
	isolevel   float32

	chunkMu    sync.RWMutex
	chunkCache *Cache[ChunkKey, *Chunk]

	meshMu    sync.RWMutex
	meshCache *Cache[ChunkKey, *ChunkMesh]

	pendingMu sync.Mutex
	pending   map[ChunkKey]struct{}
}

func newTerrainData(backend compute.Backend, log *zap.Logger, chunkCacheSize, meshCacheSize int, isolevel float32) *terrainData {
	return &terrainData{
		backend:    backend,
		log:        log,
		tree:       NewTree(),
		isolevel:   isolevel,
		chunkCache: NewCache[ChunkKey, *Chunk](chunkCacheSize),
		meshCache:  NewCache[ChunkKey, *ChunkMesh](meshCacheSize),
		pending:    make(map[ChunkKey]struct{}),
	}
}

// dispatch runs one task and returns its in-thread continuation. A chain
// that ends (no continuation) releases the key from in-flight tracking so
// a later terrain update can schedule it again.
func (d *terrainData) dispatch(t task) (task, bool) {
	var next *task
	switch t.kind {
	case taskGenerateChunk:
		next = d.generateChunk(t.key)
	case taskWriteChunk:
		next = d.writeChunk(t.key, t.chunk)
	case taskGenerateMesh:
		next = d.generateMesh(t.key)
	case taskWriteMesh:
		next = d.writeMesh(t.key, t.mesh)
	case taskGenerateMeshResources:
		next = d.generateMeshResources(t.key)
	case taskRegenerateTriangle:
		next = d.regenerateTriangle(t.key)
	case taskInvalidateTriangle:
		next = d.invalidateTriangle()
	case taskStitchMesh:
		next = d.stitchMesh(t.key, t.stride)
	}
	if next == nil {
		switch t.kind {
		case taskGenerateChunk, taskWriteChunk, taskGenerateMesh, taskWriteMesh,
			taskGenerateMeshResources, taskRegenerateTriangle:
			d.clearPending(t.key)
		}
		return task{}, false
	}
	return *next, true
}

// markPending records key as in flight. It reports false when a pipeline
// chain for the key is already running, so the caller skips the push.
func (d *terrainData) markPending(key ChunkKey) bool {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()
	if _, ok := d.pending[key]; ok {
		return false
	}
	d.pending[key] = struct{}{}
	return true
}

func (d *terrainData) clearPending(key ChunkKey) {
	d.pendingMu.Lock()
	delete(d.pending, key)
	d.pendingMu.Unlock()
}

func (d *terrainData) pendingCount() int {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()
	return len(d.pending)
}

func (d *terrainData) getIsolevel() float32 {
	d.isolevelMu.RLock()
	defer d.isolevelMu.RUnlock()
	return d.isolevel
}

func (d *terrainData) setIsolevel(isolevel float32) {
	d.isolevelMu.Lock()
	d.isolevel = isolevel
	d.isolevelMu.Unlock()
}

// failKey converts a backend failure into a recoverable per-key failure:
// the attempt is logged and dropped, the key leaves in-flight tracking
// (via the nil continuation), and a future terrain update retries it.
func (d *terrainData) failKey(key ChunkKey, stage string, err error, chunk *Chunk) *task {
	if chunk != nil {
		chunk.Release()
	}
	d.log.Warn("chunk pipeline stage failed",
		zap.String("stage", stage),
		zap.Stringer("key", key),
		zap.Error(err),
	)
	return nil
}

// generateChunk is the pipeline entry point for a key. It short-circuits
// against both caches before doing any work, which is what makes redundant
// scheduling of a key a no-op.
func (d *terrainData) generateChunk(key ChunkKey) *task {
	d.meshMu.RLock()
	if mesh, ok := d.meshCache.Get(key); ok {
		ready := mesh.HasResource()
		d.meshMu.RUnlock()
		if !ready {
			return &task{kind: taskGenerateMeshResources, key: key}
		}
		return nil
	}
	d.meshMu.RUnlock()

	d.chunkMu.RLock()
	if chunk, ok := d.chunkCache.Get(key); ok {
		hasTriangles := chunk.HasTriangles()
		d.chunkMu.RUnlock()
		if !hasTriangles {
			return &task{kind: taskRegenerateTriangle, key: key}
		}
		return &task{kind: taskGenerateMesh, key: key}
	}
	d.chunkMu.RUnlock()

	chunk := NewChunk(key.Bounds, key.Level, VoxelCountForLevel(key.Level))
	if err := chunk.GenerateVoxels(d.backend, true); err != nil {
		return d.failKey(key, "generate_voxels", err, chunk)
	}
	if err := chunk.GenerateTriangles(d.backend, d.getIsolevel(), true); err != nil {
		return d.failKey(key, "generate_triangles", err, chunk)
	}
	return &task{kind: taskWriteChunk, key: key, chunk: chunk}
}

func (d *terrainData) writeChunk(key ChunkKey, chunk *Chunk) *task {
	for !d.chunkMu.TryLock() {
		runtime.Gosched()
	}
	evicted, ok := d.chunkCache.Insert(key, chunk)
	d.chunkMu.Unlock()
	if ok {
		evicted.Release()
	}
	return &task{kind: taskGenerateMesh, key: key}
}

// generateMesh reads back the chunk's staged buffers and welds the mesh.
// The blocking waits run here, on a worker, never on the frame thread.
func (d *terrainData) generateMesh(key ChunkKey) *task {
	d.meshMu.RLock()
	if mesh, ok := d.meshCache.Get(key); ok {
		ready := mesh.HasResource()
		d.meshMu.RUnlock()
		if !ready {
			return &task{kind: taskGenerateMeshResources, key: key}
		}
		return nil
	}
	d.meshMu.RUnlock()

	if !d.chunkMu.TryLock() {
		return &task{kind: taskGenerateMesh, key: key}
	}
	chunk, ok := d.chunkCache.Get(key)
	if !ok || !chunk.HasTriangles() {
		d.chunkMu.Unlock()
		return &task{kind: taskGenerateChunk, key: key}
	}
	if err := chunk.WaitTriangles(); err != nil {
		d.chunkMu.Unlock()
		return d.failKey(key, "read_triangles", err, nil)
	}
	mesh := MeshFromTriangles(chunk.Triangles())
	if err := chunk.WaitVoxels(); err != nil {
		d.chunkMu.Unlock()
		return d.failKey(key, "read_voxels", err, nil)
	}
	edgeVoxel := EdgeVoxelFromSamples(chunk.Voxels(), chunk.VoxelCount())
	voxelCount := chunk.VoxelCount()
	d.chunkMu.Unlock()

	chunkMesh := NewChunkMesh(key.Bounds, mesh, voxelCount, edgeVoxel)
	return &task{kind: taskWriteMesh, key: key, mesh: chunkMesh}
}

func (d *terrainData) writeMesh(key ChunkKey, mesh *ChunkMesh) *task {
	for !d.meshMu.TryLock() {
		runtime.Gosched()
	}
	evicted, ok := d.meshCache.Insert(key, mesh)
	d.meshMu.Unlock()
	if ok {
		evicted.Release()
	}
	return &task{kind: taskGenerateMeshResources, key: key}
}

func (d *terrainData) generateMeshResources(key ChunkKey) *task {
	if !d.meshMu.TryLock() {
		return &task{kind: taskGenerateMeshResources, key: key}
	}
	mesh, ok := d.meshCache.Get(key)
	if !ok {
		d.meshMu.Unlock()
		return &task{kind: taskGenerateMesh, key: key}
	}
	err := mesh.CreateRenderResources(d.backend)
	d.meshMu.Unlock()
	if err != nil {
		return d.failKey(key, "create_render_resources", err, nil)
	}
	return nil
}

// regenerateTriangle re-runs triangulation over a chunk's existing voxel
// buffer, used after an isolevel change. A missing chunk ends the chain;
// the key will come back through generateChunk if still wanted.
func (d *terrainData) regenerateTriangle(key ChunkKey) *task {
	for !d.chunkMu.TryLock() {
		runtime.Gosched()
	}
	chunk, ok := d.chunkCache.Get(key)
	if !ok {
		d.chunkMu.Unlock()
		return nil
	}
	err := chunk.GenerateTriangles(d.backend, d.getIsolevel(), true)
	d.chunkMu.Unlock()
	if err != nil {
		return d.failKey(key, "regenerate_triangles", err, nil)
	}
	return &task{kind: taskGenerateMesh, key: key}
}

// invalidateTriangle drops every triangle buffer and the whole mesh cache.
// Voxel buffers survive so regeneration only re-runs triangulation.
func (d *terrainData) invalidateTriangle() *task {
	for !d.chunkMu.TryLock() {
		runtime.Gosched()
	}
	d.chunkCache.Each(func(_ ChunkKey, chunk *Chunk) {
		chunk.ClearTriangleBuffer()
	})
	for !d.meshMu.TryLock() {
		runtime.Gosched()
	}
	d.meshCache.Each(func(_ ChunkKey, mesh *ChunkMesh) {
		mesh.Release()
	})
	d.meshCache.Clear()
	d.meshMu.Unlock()
	d.chunkMu.Unlock()
	return nil
}

// stitchMesh re-projects a ready mesh's boundary vertices at the given
// strides. A mesh that is missing or not yet drawable is skipped; the next
// terrain update recomputes strides anyway.
func (d *terrainData) stitchMesh(key ChunkKey, stride StitchStride) *task {
	d.meshMu.RLock()
	mesh, ok := d.meshCache.Get(key)
	if !ok || !mesh.HasResource() {
		d.meshMu.RUnlock()
		return nil
	}
	err := mesh.StitchEdges(d.getIsolevel(), stride)
	d.meshMu.RUnlock()
	if err != nil {
		d.log.Warn("seam stitch failed", zap.Stringer("key", key), zap.Error(err))
	}
	return nil
}

func (d *terrainData) updateLastAccessed(keys []ChunkKey) {
	d.meshMu.Lock()
	for _, key := range keys {
		d.meshCache.UpdateLastAccessed(key)
	}
	d.meshMu.Unlock()
}
