package terrain

import (
	"github.com/go-gl/mathgl/mgl32"

	"terrastream/internal/compute"
	"terrastream/internal/geom"
)

// VoxelFace is one boundary slab of a chunk's density samples, stored as a
// 2D grid in face-local coordinates. It re-evaluates isosurface crossings
// along the face at a coarser stride so a fine chunk can match the vertex
// positions its coarser neighbor produced.
type VoxelFace struct {
	width, height uint32
	voxels        []float32
}

// NewVoxelFace wraps a face-local sample grid.
func NewVoxelFace(width, height uint32, voxels []float32) VoxelFace {
	return VoxelFace{width: width, height: height, voxels: voxels}
}

// Vertex re-interpolates the isosurface crossing on the edge between two
// adjacent face samples, quantized to the given stride. The edge endpoints
// are snapped outward to the stride grid, the density values and positions
// are lerped back onto the original sub-edge, and the crossing is solved on
// that segment. Stride 1 reproduces the chunk's own vertex positions.
func (f *VoxelFace) Vertex(voxel1, voxel2 [2]uint32, isolevel float32, stride uint32) mgl32.Vec2 {
	minV := [2]uint32{min(voxel1[0], voxel2[0]), min(voxel1[1], voxel2[1])}
	maxV := [2]uint32{max(voxel1[0], voxel2[0]), max(voxel1[1], voxel2[1])}
	minStride := [2]uint32{minV[0] / stride * stride, minV[1] / stride * stride}
	// The face extent is rarely a stride multiple, so the last cell of the
	// stride lattice is truncated: the upward snap clamps to the final
	// sample instead of walking off the slab into the next row. A truncated
	// cell degenerates to interpolation at whatever resolution remains.
	maxStride := [2]uint32{
		min((maxV[0]+stride-1)/stride*stride, f.width-1),
		min((maxV[1]+stride-1)/stride*stride, f.height-1),
	}
	pick := func(a, b uint32, lo, hi uint32) uint32 {
		if a < b {
			return lo
		}
		return hi
	}
	stride1 := [2]uint32{
		pick(voxel1[0], voxel2[0], minStride[0], maxStride[0]),
		pick(voxel1[1], voxel2[1], minStride[1], maxStride[1]),
	}
	stride2 := [2]uint32{
		pick(voxel2[0], voxel1[0], minStride[0], maxStride[0]),
		pick(voxel2[1], voxel1[1], minStride[1], maxStride[1]),
	}
	v1 := f.voxels[f.pointToIndex(stride1)]
	v2 := f.voxels[f.pointToIndex(stride2)]
	p1 := f.normalize(stride1)
	p2 := f.normalize(stride2)

	s1 := mgl32.Vec2{float32(stride1[0]), float32(stride1[1])}
	s2 := mgl32.Vec2{float32(stride2[0]), float32(stride2[1])}
	w1 := mgl32.Vec2{float32(voxel1[0]), float32(voxel1[1])}
	w2 := mgl32.Vec2{float32(voxel2[0]), float32(voxel2[1])}
	axis := s2.Sub(s1)
	minFract := w1.Sub(s1).Dot(axis) / axis.Dot(axis)
	maxFract := w2.Sub(s1).Dot(axis) / axis.Dot(axis)

	// The second lerp works from the already-shifted endpoint so the pair
	// stays an exact sub-segment of the stride edge.
	p1 = p1.Add(p2.Sub(p1).Mul(minFract))
	p2 = p1.Add(p2.Sub(p1).Mul(maxFract))
	v1 = v1 + (v2-v1)*minFract
	v2 = v1 + (v2-v1)*maxFract

	iso := mgl32.Clamp(isolevel, minf(v1, v2), maxf(v1, v2))
	return vertexLerp(iso, p1, p2, v1, v2)
}

func (f *VoxelFace) pointToIndex(p [2]uint32) uint32 {
	return p[0] + f.width*p[1]
}

// normalize maps a face sample coordinate into the chunk's unit square.
func (f *VoxelFace) normalize(p [2]uint32) mgl32.Vec2 {
	return mgl32.Vec2{
		mgl32.Clamp(float32(p[0])/float32(f.width-1), 0, 1),
		mgl32.Clamp(float32(p[1])/float32(f.height-1), 0, 1),
	}
}

func vertexLerp(isolevel float32, p1, p2 mgl32.Vec2, v1, v2 float32) mgl32.Vec2 {
	const eps = 0.00001
	if absf(isolevel-v1) < eps {
		return p1
	}
	if absf(isolevel-v2) < eps {
		return p2
	}
	mu := (isolevel - v1) / (v2 - v1)
	return p1.Add(p2.Sub(p1).Mul(mu))
}

// EdgeVoxel captures the four vertical boundary slabs of a chunk's density
// samples. It is extracted once per chunk, when the voxel buffer is read
// back, and outlives the buffer itself so stitching never needs the backend
// again.
type EdgeVoxel struct {
	MinX, MaxX, MinY, MaxY VoxelFace
}

// EdgeVoxelFromSamples copies the boundary slabs out of a full sample grid.
// X faces use (y, z) face coordinates, Y faces use (x, z).
func EdgeVoxelFromSamples(voxels []float32, count compute.VoxelCount) EdgeVoxel {
	xFace := int(count.Height * count.Depth)
	yFace := int(count.Width * count.Depth)
	minX := make([]float32, 0, xFace)
	maxX := make([]float32, 0, xFace)
	minY := make([]float32, 0, yFace)
	maxY := make([]float32, 0, yFace)
	idx := func(x, y, z uint32) uint32 {
		return x + count.Width*(y+count.Height*z)
	}
	for z := uint32(0); z < count.Depth; z++ {
		for y := uint32(0); y < count.Height; y++ {
			minX = append(minX, voxels[idx(0, y, z)])
			maxX = append(maxX, voxels[idx(count.Width-1, y, z)])
		}
	}
	for z := uint32(0); z < count.Depth; z++ {
		for x := uint32(0); x < count.Width; x++ {
			minY = append(minY, voxels[idx(x, 0, z)])
			maxY = append(maxY, voxels[idx(x, count.Height-1, z)])
		}
	}
	return EdgeVoxel{
		MinX: NewVoxelFace(count.Height, count.Depth, minX),
		MaxX: NewVoxelFace(count.Height, count.Depth, maxX),
		MinY: NewVoxelFace(count.Width, count.Depth, minY),
		MaxY: NewVoxelFace(count.Width, count.Depth, maxY),
	}
}

// edgeVertex lists the welded vertex indices sitting on each vertical
// boundary face. A corner vertex belongs to exactly one set; the min faces
// win ties so both neighbors never move the same vertex.
type edgeVertex struct {
	minX, maxX, minY, maxY []int
}

// StitchStride is the per-face quantization applied when stitching: the
// ratio of the neighbor's cell size to this chunk's, or 1 for faces whose
// neighbor is at the same or finer level.
type StitchStride struct {
	MinX, MaxX, MinY, MaxY uint32
}

// NoStitch leaves every face at the chunk's native resolution.
var NoStitch = StitchStride{MinX: 1, MaxX: 1, MinY: 1, MaxY: 1}

// ChunkMesh is a welded chunk mesh plus the boundary data needed to stitch
// it against coarser neighbors. It lives in the mesh cache; the drawable
// resource is created lazily by the pipeline.
type ChunkMesh struct {
	bounds     geom.Box3
	voxelCount compute.VoxelCount
	mesh       *Mesh
	edgeVoxel  EdgeVoxel
	edgeVertex edgeVertex
	resource   compute.ResourceHandle
}

// NewChunkMesh wraps a welded mesh with its chunk bounds and boundary
// samples.
func NewChunkMesh(bounds geom.Box3, mesh *Mesh, voxelCount compute.VoxelCount, edgeVoxel EdgeVoxel) *ChunkMesh {
	return &ChunkMesh{
		bounds:     bounds,
		voxelCount: voxelCount,
		mesh:       mesh,
		edgeVoxel:  edgeVoxel,
	}
}

// Bounds returns the chunk's world-space bounds.
func (cm *ChunkMesh) Bounds() geom.Box3 { return cm.bounds }

// Mesh returns the welded mesh.
func (cm *ChunkMesh) Mesh() *Mesh { return cm.mesh }

// Transform maps the mesh's unit-cube coordinates into world space.
func (cm *ChunkMesh) Transform() mgl32.Mat4 {
	b := cm.bounds
	return mgl32.Translate3D(float32(b.Min.X), float32(b.Min.Y), float32(b.Min.Z)).
		Mul4(mgl32.Scale3D(float32(b.Width()), float32(b.Height()), float32(b.Depth())))
}

// CreateRenderResources classifies the boundary vertices and uploads the
// mesh to the backend. It is idempotent: a mesh that already has a resource
// is left untouched.
func (cm *ChunkMesh) CreateRenderResources(backend compute.Backend) error {
	if cm.resource != nil {
		return nil
	}
	for i, id := range cm.mesh.VertexIDs() {
		i1, i2 := compute.UnpackEdgeID(id)
		p1 := cm.voxelIndexToPoint(i1)
		p2 := cm.voxelIndexToPoint(i2)
		switch {
		case p1[0] == 0 && p2[0] == 0:
			cm.edgeVertex.minX = append(cm.edgeVertex.minX, i)
		case p1[1] == 0 && p2[1] == 0:
			cm.edgeVertex.minY = append(cm.edgeVertex.minY, i)
		case p1[0] == cm.voxelCount.Width-1 && p2[0] == cm.voxelCount.Width-1:
			cm.edgeVertex.maxX = append(cm.edgeVertex.maxX, i)
		case p1[1] == cm.voxelCount.Height-1 && p2[1] == cm.voxelCount.Height-1:
			cm.edgeVertex.maxY = append(cm.edgeVertex.maxY, i)
		}
	}
	resource, err := backend.CreateMeshResource(compute.MeshUpload{
		Positions: cm.mesh.Positions(),
		Normals:   cm.mesh.Normals(),
		Indices:   cm.mesh.Indices(),
		Transform: cm.Transform(),
	})
	if err != nil {
		return err
	}
	cm.resource = resource
	return nil
}

// Resource returns the drawable handle, or nil before CreateRenderResources
// succeeded.
func (cm *ChunkMesh) Resource() compute.ResourceHandle { return cm.resource }

// HasResource reports whether the mesh is drawable.
func (cm *ChunkMesh) HasResource() bool { return cm.resource != nil }

// StitchEdges re-projects every boundary vertex at the given per-face
// strides and writes the new positions into the uploaded resource. The
// in-memory mesh keeps its native positions so a later stitch at different
// strides starts from the same identifiers.
func (cm *ChunkMesh) StitchEdges(isolevel float32, stride StitchStride) error {
	if cm.resource == nil {
		return nil
	}
	updates := make([]compute.VertexUpdate, 0,
		len(cm.edgeVertex.minX)+len(cm.edgeVertex.maxX)+
			len(cm.edgeVertex.minY)+len(cm.edgeVertex.maxY))
	ids := cm.mesh.VertexIDs()
	normals := cm.mesh.Normals()

	appendFace := func(indices []int, face *VoxelFace, s uint32, yz bool, position func(p mgl32.Vec2) mgl32.Vec3) {
		for _, i := range indices {
			i1, i2 := compute.UnpackEdgeID(ids[i])
			g1 := cm.voxelIndexToPoint(i1)
			g2 := cm.voxelIndexToPoint(i2)
			var f1, f2 [2]uint32
			if yz {
				f1 = [2]uint32{g1[1], g1[2]}
				f2 = [2]uint32{g2[1], g2[2]}
			} else {
				f1 = [2]uint32{g1[0], g1[2]}
				f2 = [2]uint32{g2[0], g2[2]}
			}
			p := face.Vertex(f1, f2, isolevel, s)
			updates = append(updates, compute.VertexUpdate{
				Index:    i,
				Position: position(p),
				Normal:   normals[i],
			})
		}
	}

	appendFace(cm.edgeVertex.minX, &cm.edgeVoxel.MinX, stride.MinX, true, func(p mgl32.Vec2) mgl32.Vec3 {
		return mgl32.Vec3{0, p.X(), p.Y()}
	})
	appendFace(cm.edgeVertex.maxX, &cm.edgeVoxel.MaxX, stride.MaxX, true, func(p mgl32.Vec2) mgl32.Vec3 {
		return mgl32.Vec3{1, p.X(), p.Y()}
	})
	appendFace(cm.edgeVertex.minY, &cm.edgeVoxel.MinY, stride.MinY, false, func(p mgl32.Vec2) mgl32.Vec3 {
		return mgl32.Vec3{p.X(), 0, p.Y()}
	})
	appendFace(cm.edgeVertex.maxY, &cm.edgeVoxel.MaxY, stride.MaxY, false, func(p mgl32.Vec2) mgl32.Vec3 {
		return mgl32.Vec3{p.X(), 1, p.Y()}
	})
	return cm.resource.UpdateVertices(updates)
}

// Release frees the drawable resource, if any.
func (cm *ChunkMesh) Release() {
	if cm.resource != nil {
		cm.resource.Release()
		cm.resource = nil
	}
}

// voxelIndexToPoint unflattens a voxel-grid sample index.
func (cm *ChunkMesh) voxelIndexToPoint(i uint32) [3]uint32 {
	return [3]uint32{
		i % cm.voxelCount.Width,
		(i / cm.voxelCount.Width) % cm.voxelCount.Height,
		i / (cm.voxelCount.Width * cm.voxelCount.Height),
	}
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func absf(a float32) float32 {
	if a < 0 {
		return -a
	}
	return a
}
