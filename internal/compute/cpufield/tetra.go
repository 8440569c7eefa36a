package cpufield

import (
	"github.com/go-gl/mathgl/mgl32"

	"terrastream/internal/compute"
)

// Each cube cell splits into six tetrahedra around the 0-6 diagonal.
// Corner numbering: bit 0 = +x, bit 1 = +y, bit 2 = +z.
var cubeTetrahedra = [6][4]int{
	{0, 5, 1, 6},
	{0, 1, 2, 6},
	{0, 2, 3, 6},
	{0, 3, 7, 6},
	{0, 7, 4, 6},
	{0, 4, 5, 6},
}

var cornerOffsets = [8][3]uint32{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

// triangulate marches tetrahedra over the sample grid and returns the raw
// triangle soup in chunk-local unit-cube space. Vertex identifiers pack the
// two sample indices of the crossed edge with the smaller index first, so
// the same edge always welds to the same vertex.
func triangulate(samples []float32, count compute.VoxelCount, isolevel float32) []compute.Triangle {
	if count.Width < 2 || count.Height < 2 || count.Depth < 2 {
		return nil
	}
	sampleIndex := func(x, y, z uint32) uint32 {
		return x + count.Width*(y+count.Height*z)
	}
	corner := func(x, y, z uint32) mgl32.Vec3 {
		return mgl32.Vec3{
			float32(x) / float32(count.Width-1),
			float32(y) / float32(count.Height-1),
			float32(z) / float32(count.Depth-1),
		}
	}

	var triangles []compute.Triangle
	var positions [8]mgl32.Vec3
	var values [8]float32
	var indices [8]uint32
	for z := uint32(0); z < count.Depth-1; z++ {
		for y := uint32(0); y < count.Height-1; y++ {
			for x := uint32(0); x < count.Width-1; x++ {
				for i, off := range cornerOffsets {
					cx, cy, cz := x+off[0], y+off[1], z+off[2]
					idx := sampleIndex(cx, cy, cz)
					positions[i] = corner(cx, cy, cz)
					values[i] = samples[idx]
					indices[i] = idx
				}
				for _, tet := range cubeTetrahedra {
					triangles = marchTetrahedron(triangles,
						[4]mgl32.Vec3{positions[tet[0]], positions[tet[1]], positions[tet[2]], positions[tet[3]]},
						[4]float32{values[tet[0]], values[tet[1]], values[tet[2]], values[tet[3]]},
						[4]uint32{indices[tet[0]], indices[tet[1]], indices[tet[2]], indices[tet[3]]},
						isolevel)
				}
			}
		}
	}
	return triangles
}

// marchTetrahedron emits the isosurface triangles of one tetrahedron.
// The eight sign configurations reduce to the classic seven cases.
func marchTetrahedron(out []compute.Triangle, p [4]mgl32.Vec3, v [4]float32, id [4]uint32, isolevel float32) []compute.Triangle {
	var index int
	for i := 0; i < 4; i++ {
		if v[i] > isolevel {
			index |= 1 << i
		}
	}

	edge := func(a, b int) (mgl32.Vec3, uint64) {
		return edgeVertex(p[a], p[b], v[a], v[b], isolevel), edgeID(id[a], id[b])
	}
	tri := func(a1, b1, a2, b2, a3, b3 int) {
		t := compute.Triangle{}
		t.Position[0], t.ID[0] = edge(a1, b1)
		t.Position[1], t.ID[1] = edge(a2, b2)
		t.Position[2], t.ID[2] = edge(a3, b3)
		out = append(out, t)
	}

	switch index {
	case 0x01, 0x0E:
		tri(0, 1, 0, 2, 0, 3)
	case 0x02, 0x0D:
		tri(1, 0, 1, 3, 1, 2)
	case 0x03, 0x0C:
		tri(0, 3, 0, 2, 1, 3)
		tri(1, 3, 1, 2, 0, 2)
	case 0x04, 0x0B:
		tri(2, 0, 2, 1, 2, 3)
	case 0x05, 0x0A:
		tri(0, 1, 2, 3, 0, 3)
		tri(0, 1, 1, 2, 2, 3)
	case 0x06, 0x09:
		tri(0, 1, 1, 3, 2, 3)
		tri(0, 1, 2, 3, 0, 2)
	case 0x07, 0x08:
		tri(3, 0, 3, 2, 3, 1)
	}
	return out
}

// edgeID packs the two sample indices of an edge, smaller first, so both
// orientations of the edge produce the same identifier.
func edgeID(i1, i2 uint32) uint64 {
	if i2 < i1 {
		i1, i2 = i2, i1
	}
	return compute.PackEdgeID(i1, i2)
}

func edgeVertex(p1, p2 mgl32.Vec3, v1, v2, isolevel float32) mgl32.Vec3 {
	const eps = 0.00001
	if abs32(isolevel-v1) < eps {
		return p1
	}
	if abs32(isolevel-v2) < eps {
		return p2
	}
	if abs32(v1-v2) < eps {
		return p1
	}
	mu := (isolevel - v1) / (v2 - v1)
	return p1.Add(p2.Sub(p1).Mul(mu))
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
