package terrain

import (
	"fmt"

	"terrastream/internal/compute"
	"terrastream/internal/geom"
)

// ChunkKey identifies one terrain unit: the integer bounds of a quadtree
// leaf plus its level. Keys are value types and index both caches.
type ChunkKey struct {
	Bounds geom.Box3
	Level  uint32
}

func (k ChunkKey) String() string {
	return fmt.Sprintf("chunk(%d,%d..%d,%d@%d)",
		k.Bounds.Min.X, k.Bounds.Min.Y, k.Bounds.Max.X, k.Bounds.Max.Y, k.Level)
}

// VoxelCountForLevel returns the density sample resolution used at a given
// subdivision level. The planar resolution is fixed; the vertical sample
// count scales with level so that deep levels resolve the slab's full
// height at matching density.
func VoxelCountForLevel(level uint32) compute.VoxelCount {
	if level < 2 {
		level = 2
	}
	return compute.VoxelCount{Width: 32, Height: 32, Depth: 1 << (level - 2)}
}

// Chunk owns the backend buffers for one terrain unit. It moves through the
// pipeline attached to tasks and ends up in the chunk cache; stages may run
// on different workers, so completion is always observed through the
// buffers, never assumed.
type Chunk struct {
	bounds     geom.Box3
	level      uint32
	voxelCount compute.VoxelCount

	voxelBuffer    compute.VoxelBuffer
	triangleBuffer compute.TriangleBuffer
}

// NewChunk creates a chunk with no buffers generated yet.
func NewChunk(bounds geom.Box3, level uint32, voxelCount compute.VoxelCount) *Chunk {
	return &Chunk{bounds: bounds, level: level, voxelCount: voxelCount}
}

// Bounds returns the chunk's world-space bounds.
func (c *Chunk) Bounds() geom.Box3 { return c.bounds }

// Level returns the chunk's subdivision level.
func (c *Chunk) Level() uint32 { return c.level }

// VoxelCount returns the chunk's density sample resolution.
func (c *Chunk) VoxelCount() compute.VoxelCount { return c.voxelCount }

// GenerateVoxels submits the density job for this chunk. With staging
// enabled the samples can later be read back through WaitVoxels/Voxels.
func (c *Chunk) GenerateVoxels(backend compute.Backend, copyToStaging bool) error {
	buf, err := backend.SubmitVoxelJob(compute.VoxelJob{
		Bounds:        c.bounds,
		Level:         c.level,
		VoxelCount:    c.voxelCount,
		CopyToStaging: copyToStaging,
	})
	if err != nil {
		return err
	}
	if c.voxelBuffer != nil {
		c.voxelBuffer.Release()
	}
	c.voxelBuffer = buf
	return nil
}

// GenerateTriangles submits the triangulation job over the chunk's voxel
// buffer. GenerateVoxels must have been called first.
func (c *Chunk) GenerateTriangles(backend compute.Backend, isolevel float32, copyToStaging bool) error {
	if c.voxelBuffer == nil {
		return fmt.Errorf("chunk %v: triangulation requested before voxel generation", c.bounds)
	}
	buf, err := backend.SubmitTriangleJob(compute.TriangleJob{
		CellCount:     c.voxelCount.CellCount(),
		Isolevel:      isolevel,
		CopyToStaging: copyToStaging,
	}, c.voxelBuffer)
	if err != nil {
		return err
	}
	if c.triangleBuffer != nil {
		c.triangleBuffer.Release()
	}
	c.triangleBuffer = buf
	return nil
}

// WaitVoxels blocks until the density job completes. Never call this on the
// frame thread.
func (c *Chunk) WaitVoxels() error {
	if c.voxelBuffer == nil {
		return fmt.Errorf("chunk %v: no voxel buffer", c.bounds)
	}
	return c.voxelBuffer.Wait()
}

// Voxels returns the staged density samples. Valid only after a successful
// WaitVoxels on a staged buffer.
func (c *Chunk) Voxels() []float32 {
	return c.voxelBuffer.Data()
}

// WaitTriangles blocks until the triangulation job completes. Never call
// this on the frame thread.
func (c *Chunk) WaitTriangles() error {
	if c.triangleBuffer == nil {
		return fmt.Errorf("chunk %v: no triangle buffer", c.bounds)
	}
	return c.triangleBuffer.Wait()
}

// Triangles returns the staged triangle soup. Valid only after a successful
// WaitTriangles on a staged buffer.
func (c *Chunk) Triangles() []compute.Triangle {
	return c.triangleBuffer.Triangles()
}

// HasVoxels reports whether a density job has been submitted.
func (c *Chunk) HasVoxels() bool { return c.voxelBuffer != nil }

// HasTriangles reports whether a triangulation job has been submitted.
func (c *Chunk) HasTriangles() bool { return c.triangleBuffer != nil }

// ClearTriangleBuffer releases the triangle soup once it has been welded
// into a mesh; the voxel buffer stays for later re-triangulation and
// seam stitching.
func (c *Chunk) ClearTriangleBuffer() {
	if c.triangleBuffer != nil {
		c.triangleBuffer.Release()
		c.triangleBuffer = nil
	}
}

// Release frees all backend buffers.
func (c *Chunk) Release() {
	if c.voxelBuffer != nil {
		c.voxelBuffer.Release()
		c.voxelBuffer = nil
	}
	c.ClearTriangleBuffer()
}
