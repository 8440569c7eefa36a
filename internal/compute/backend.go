// Package compute defines the contract between the terrain engine and the
// density/triangulation backend. The engine never computes density values
// itself: it submits jobs describing a chunk's bounds, level and voxel
// count, and consumes staged results through blocking read-back handles.
//
// All Wait calls may block until the backend finishes the job. They are
// safe only on pipeline worker threads, never on the thread issuing
// per-frame render commands.
package compute

import (
	"terrastream/internal/geom"

	"github.com/go-gl/mathgl/mgl32"
)

// VoxelCount is the density sample resolution of one chunk, width x height
// on the terrain plane and depth along the vertical axis.
type VoxelCount struct {
	Width, Height, Depth uint32
}

// Total returns the flat sample count.
func (v VoxelCount) Total() uint32 {
	return v.Width * v.Height * v.Depth
}

// CellCount returns the marching-cell resolution (one less than the sample
// resolution per axis).
func (v VoxelCount) CellCount() VoxelCount {
	return VoxelCount{Width: v.Width - 1, Height: v.Height - 1, Depth: v.Depth - 1}
}

// VoxelJob describes one density-generation request.
type VoxelJob struct {
	Bounds     geom.Box3
	Level      uint32
	VoxelCount VoxelCount
	// CopyToStaging requests that results be staged for CPU read-back.
	// Without it the buffer is device-only and Data must not be called.
	CopyToStaging bool
}

// TriangleJob describes one isosurface-triangulation request over an
// existing voxel buffer.
type TriangleJob struct {
	CellCount     VoxelCount
	Isolevel      float32
	CopyToStaging bool
}

// Triangle is one raw output triangle in chunk-local unit-cube space.
// Each vertex carries a stable identifier packing the two voxel-grid
// indices of the edge the vertex lies on; identical identifiers across
// triangles denote the same welded vertex.
type Triangle struct {
	Position [3]mgl32.Vec3
	ID       [3]uint64
}

// PackEdgeID packs the two flat voxel-grid indices of an edge into a
// stable vertex identifier.
func PackEdgeID(i1, i2 uint32) uint64 {
	return uint64(i1) | uint64(i2)<<32
}

// UnpackEdgeID splits a vertex identifier back into its edge endpoints.
func UnpackEdgeID(id uint64) (i1, i2 uint32) {
	return uint32(id), uint32(id >> 32)
}

// VoxelBuffer is a staged density result. Wait blocks until the backend
// has produced the samples and, when staging was requested, copied them
// for read-back.
type VoxelBuffer interface {
	// Ready reports whether Wait would return without blocking.
	Ready() bool
	// Wait blocks until the job completes. It returns the job's error,
	// if any; the buffer is unusable after an error.
	Wait() error
	// Data returns the density samples in x-major, then y, then z order.
	// Valid only after a successful Wait on a staged buffer.
	Data() []float32
	// Release frees backend resources. The buffer must not be used after.
	Release()
}

// TriangleBuffer is a staged triangulation result.
type TriangleBuffer interface {
	Ready() bool
	Wait() error
	// Triangles returns the raw triangle soup. Valid only after a
	// successful Wait on a staged buffer.
	Triangles() []Triangle
	Release()
}

// VertexUpdate rewrites a single vertex of an uploaded mesh, used by seam
// stitching to re-project boundary vertices in place.
type VertexUpdate struct {
	Index    int
	Position mgl32.Vec3
	Normal   mgl32.Vec3
}

// MeshUpload is a finished chunk mesh handed to the backend for conversion
// into a drawable resource.
type MeshUpload struct {
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	Indices   []uint32
	// Transform maps chunk-local unit-cube space into world space.
	Transform mgl32.Mat4
}

// ResourceHandle is an opaque drawable produced from a MeshUpload.
type ResourceHandle interface {
	// UpdateVertices overwrites individual vertices of the uploaded mesh.
	UpdateVertices(updates []VertexUpdate) error
	Release()
}

// Backend is the density/triangulation/upload collaborator. Submissions
// are asynchronous; completion is observed through the returned buffers.
type Backend interface {
	SubmitVoxelJob(job VoxelJob) (VoxelBuffer, error)
	SubmitTriangleJob(job TriangleJob, voxels VoxelBuffer) (TriangleBuffer, error)
	CreateMeshResource(upload MeshUpload) (ResourceHandle, error)
}
