package cpufield

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"terrastream/internal/compute"
)

// Backend runs density generation and triangulation on goroutines and
// stores mesh uploads in memory. It implements compute.Backend and is the
// default backend for headless runs and tests.
type Backend struct {
	gen *FieldGenerator
}

// New creates a backend over a deterministic field for the given seed.
func New(seed int64) *Backend {
	return &Backend{gen: NewFieldGenerator(seed)}
}

// SubmitVoxelJob samples the density field over the job's bounds on a new
// goroutine. Completion is observed through the returned buffer.
func (b *Backend) SubmitVoxelJob(job compute.VoxelJob) (compute.VoxelBuffer, error) {
	if job.VoxelCount.Width < 1 || job.VoxelCount.Height < 1 || job.VoxelCount.Depth < 1 {
		return nil, fmt.Errorf("cpufield: invalid voxel count %+v", job.VoxelCount)
	}
	buf := &voxelBuffer{
		done:   make(chan struct{}),
		count:  job.VoxelCount,
		staged: job.CopyToStaging,
	}
	go func() {
		defer close(buf.done)
		buf.data = b.sampleField(job)
	}()
	return buf, nil
}

// sampleField evaluates the field at every sample point, x-major, then y,
// then z. Sample (i, j, k) maps linearly onto the job bounds; a one-sample
// axis collapses onto the bounds minimum.
func (b *Backend) sampleField(job compute.VoxelJob) []float32 {
	count := job.VoxelCount
	data := make([]float32, count.Total())
	axis := func(min, max int32, i, n uint32) float64 {
		if n <= 1 {
			return float64(min)
		}
		return float64(min) + float64(max-min)*float64(i)/float64(n-1)
	}
	idx := 0
	for z := uint32(0); z < count.Depth; z++ {
		wz := axis(job.Bounds.Min.Z, job.Bounds.Max.Z, z, count.Depth)
		for y := uint32(0); y < count.Height; y++ {
			wy := axis(job.Bounds.Min.Y, job.Bounds.Max.Y, y, count.Height)
			for x := uint32(0); x < count.Width; x++ {
				wx := axis(job.Bounds.Min.X, job.Bounds.Max.X, x, count.Width)
				data[idx] = b.gen.Density(wx, wy, wz)
				idx++
			}
		}
	}
	return data
}

// SubmitTriangleJob triangulates a voxel buffer once it completes. The
// buffer must have been produced by this backend with staging enabled.
func (b *Backend) SubmitTriangleJob(job compute.TriangleJob, voxels compute.VoxelBuffer) (compute.TriangleBuffer, error) {
	vb, ok := voxels.(*voxelBuffer)
	if !ok {
		return nil, fmt.Errorf("cpufield: foreign voxel buffer %T", voxels)
	}
	if !vb.staged {
		return nil, fmt.Errorf("cpufield: voxel buffer was not staged for read-back")
	}
	want := compute.VoxelCount{
		Width:  job.CellCount.Width + 1,
		Height: job.CellCount.Height + 1,
		Depth:  job.CellCount.Depth + 1,
	}
	if want != vb.count {
		return nil, fmt.Errorf("cpufield: cell count %+v does not match voxel buffer %+v", job.CellCount, vb.count)
	}
	buf := &triangleBuffer{done: make(chan struct{}), staged: job.CopyToStaging}
	go func() {
		defer close(buf.done)
		if err := vb.Wait(); err != nil {
			buf.err = fmt.Errorf("cpufield: voxel dependency failed: %w", err)
			return
		}
		buf.triangles = triangulate(vb.data, vb.count, job.Isolevel)
	}()
	return buf, nil
}

// CreateMeshResource copies the upload into an in-memory resource.
func (b *Backend) CreateMeshResource(upload compute.MeshUpload) (compute.ResourceHandle, error) {
	if len(upload.Positions) != len(upload.Normals) {
		return nil, fmt.Errorf("cpufield: %d positions but %d normals", len(upload.Positions), len(upload.Normals))
	}
	r := &meshResource{
		positions: make([]mgl32.Vec3, len(upload.Positions)),
		normals:   make([]mgl32.Vec3, len(upload.Normals)),
		indices:   make([]uint32, len(upload.Indices)),
		transform: upload.Transform,
	}
	copy(r.positions, upload.Positions)
	copy(r.normals, upload.Normals)
	copy(r.indices, upload.Indices)
	return r, nil
}

type voxelBuffer struct {
	done   chan struct{}
	count  compute.VoxelCount
	data   []float32
	err    error
	staged bool
}

func (v *voxelBuffer) Ready() bool {
	select {
	case <-v.done:
		return true
	default:
		return false
	}
}

func (v *voxelBuffer) Wait() error {
	<-v.done
	return v.err
}

func (v *voxelBuffer) Data() []float32 {
	if !v.staged {
		return nil
	}
	return v.data
}

func (v *voxelBuffer) Release() {}

type triangleBuffer struct {
	done      chan struct{}
	triangles []compute.Triangle
	err       error
	staged    bool
}

func (t *triangleBuffer) Ready() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *triangleBuffer) Wait() error {
	<-t.done
	return t.err
}

func (t *triangleBuffer) Triangles() []compute.Triangle {
	if !t.staged {
		return nil
	}
	return t.triangles
}

func (t *triangleBuffer) Release() {}

// meshResource is the drawable stand-in: the uploaded arrays plus the
// world transform, mutable through UpdateVertices the way a mapped vertex
// buffer would be.
type meshResource struct {
	mu        sync.Mutex
	positions []mgl32.Vec3
	normals   []mgl32.Vec3
	indices   []uint32
	transform mgl32.Mat4
	released  bool
}

func (r *meshResource) UpdateVertices(updates []compute.VertexUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return fmt.Errorf("cpufield: update on released mesh resource")
	}
	for _, u := range updates {
		if u.Index < 0 || u.Index >= len(r.positions) {
			return fmt.Errorf("cpufield: vertex update index %d out of range %d", u.Index, len(r.positions))
		}
		r.positions[u.Index] = u.Position
		r.normals[u.Index] = u.Normal
	}
	return nil
}

func (r *meshResource) Release() {
	r.mu.Lock()
	r.released = true
	r.mu.Unlock()
}

// Positions returns a copy of the resource's current vertex positions.
func (r *meshResource) Positions() []mgl32.Vec3 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]mgl32.Vec3, len(r.positions))
	copy(out, r.positions)
	return out
}

// Indices returns a copy of the resource's index list.
func (r *meshResource) Indices() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint32, len(r.indices))
	copy(out, r.indices)
	return out
}

// Transform returns the resource's world transform.
func (r *meshResource) Transform() mgl32.Mat4 {
	return r.transform
}
