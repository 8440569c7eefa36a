package terrain

import (
	"github.com/go-gl/mathgl/mgl32"

	"terrastream/internal/compute"
)

// Mesh is an indexed triangle mesh welded from the backend's raw triangle
// soup. Vertices carrying the same edge identifier collapse into one entry;
// first appearance order determines vertex indices, which keeps stitching
// updates stable across regenerations of the same chunk.
type Mesh struct {
	positions []mgl32.Vec3
	normals   []mgl32.Vec3
	indices   []uint32
	vertexIDs []uint64
	idToIndex map[uint64]uint32
}

// MeshFromTriangles welds a triangle soup into an indexed mesh and computes
// smooth per-vertex normals.
func MeshFromTriangles(triangles []compute.Triangle) *Mesh {
	m := &Mesh{
		idToIndex: make(map[uint64]uint32),
	}
	for _, tri := range triangles {
		for v := 0; v < 3; v++ {
			id := tri.ID[v]
			idx, ok := m.idToIndex[id]
			if !ok {
				idx = uint32(len(m.positions))
				m.idToIndex[id] = idx
				m.positions = append(m.positions, tri.Position[v])
				m.vertexIDs = append(m.vertexIDs, id)
			}
			m.indices = append(m.indices, idx)
		}
	}
	m.calculateNormals()
	return m
}

// Positions returns the welded vertex positions.
func (m *Mesh) Positions() []mgl32.Vec3 { return m.positions }

// Normals returns the per-vertex normals, parallel to Positions.
func (m *Mesh) Normals() []mgl32.Vec3 { return m.normals }

// Indices returns the triangle index list.
func (m *Mesh) Indices() []uint32 { return m.indices }

// VertexIDs returns the edge identifier of each welded vertex, parallel to
// Positions.
func (m *Mesh) VertexIDs() []uint64 { return m.vertexIDs }

// VertexIndex returns the welded index of the vertex with the given edge
// identifier.
func (m *Mesh) VertexIndex(id uint64) (uint32, bool) {
	idx, ok := m.idToIndex[id]
	return idx, ok
}

// VertexCount returns the welded vertex count.
func (m *Mesh) VertexCount() int { return len(m.positions) }

// TriangleCount returns the face count.
func (m *Mesh) TriangleCount() int { return len(m.indices) / 3 }

// calculateNormals accumulates the unnormalized face normal of every
// adjacent face onto each vertex, then normalizes. Face area weights the
// sum, which smooths seams between cells of different triangle density.
func (m *Mesh) calculateNormals() {
	m.normals = make([]mgl32.Vec3, len(m.positions))
	for i := 0; i+2 < len(m.indices); i += 3 {
		i0 := m.indices[i]
		i1 := m.indices[i+1]
		i2 := m.indices[i+2]
		p0 := m.positions[i0]
		p1 := m.positions[i1]
		p2 := m.positions[i2]
		n := p1.Sub(p0).Cross(p0.Sub(p2))
		m.normals[i0] = m.normals[i0].Add(n)
		m.normals[i1] = m.normals[i1].Add(n)
		m.normals[i2] = m.normals[i2].Add(n)
	}
	for i := range m.normals {
		if m.normals[i].Len() > 0 {
			m.normals[i] = m.normals[i].Normalize()
		}
	}
}
