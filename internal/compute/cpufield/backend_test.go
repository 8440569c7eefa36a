package cpufield

import (
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"terrastream/internal/compute"
	"terrastream/internal/geom"
)

func testJob(count compute.VoxelCount) compute.VoxelJob {
	return compute.VoxelJob{
		Bounds: geom.NewBox3(
			geom.Point3{X: 0, Y: 0, Z: -1},
			geom.Point3{X: 64, Y: 64, Z: 1},
		),
		Level:         2,
		VoxelCount:    count,
		CopyToStaging: true,
	}
}

func TestDensityDeterministic(t *testing.T) {
	a := NewFieldGenerator(42)
	b := NewFieldGenerator(42)
	other := NewFieldGenerator(43)
	diff := false
	for _, p := range [][3]float64{{0, 0, 0}, {17.3, -4.1, 0.2}, {-200, 512, -0.9}} {
		if a.Density(p[0], p[1], p[2]) != b.Density(p[0], p[1], p[2]) {
			t.Errorf("same seed diverged at %v", p)
		}
		if a.Density(p[0], p[1], p[2]) != other.Density(p[0], p[1], p[2]) {
			diff = true
		}
	}
	if !diff {
		t.Error("different seeds produced identical fields")
	}
}

func TestDensityDecreasesWithHeight(t *testing.T) {
	g := NewFieldGenerator(1)
	for _, xy := range [][2]float64{{0, 0}, {33, -7}, {128, 128}} {
		below := g.Density(xy[0], xy[1], -1)
		above := g.Density(xy[0], xy[1], 1)
		if below <= above {
			t.Errorf("density at z=-1 (%f) not above z=1 (%f) at %v", below, above, xy)
		}
	}
}

func TestSubmitVoxelJobShape(t *testing.T) {
	b := New(7)
	count := compute.VoxelCount{Width: 4, Height: 3, Depth: 2}
	job := testJob(count)
	buf, err := b.SubmitVoxelJob(job)
	if err != nil {
		t.Fatal(err)
	}
	if err := buf.Wait(); err != nil {
		t.Fatal(err)
	}
	if !buf.Ready() {
		t.Error("Ready false after Wait")
	}
	data := buf.Data()
	if uint32(len(data)) != count.Total() {
		t.Fatalf("len(Data) = %d, want %d", len(data), count.Total())
	}
	// Sample (0,0,0) is the bounds minimum; the layout is x-major.
	g := NewFieldGenerator(7)
	if data[0] != g.Density(0, 0, -1) {
		t.Error("sample (0,0,0) does not match the field at the bounds minimum")
	}
	// Last sample of the first row: x = bounds max, y and z at minimum.
	if data[3] != g.Density(64, 0, -1) {
		t.Error("sample (3,0,0) does not match the field at the x maximum")
	}
}

func TestSubmitVoxelJobInvalidCount(t *testing.T) {
	b := New(0)
	_, err := b.SubmitVoxelJob(testJob(compute.VoxelCount{Width: 0, Height: 3, Depth: 2}))
	if err == nil {
		t.Fatal("expected error for zero-width voxel count")
	}
}

func TestSubmitVoxelJobUnstaged(t *testing.T) {
	b := New(0)
	job := testJob(compute.VoxelCount{Width: 2, Height: 2, Depth: 2})
	job.CopyToStaging = false
	buf, err := b.SubmitVoxelJob(job)
	if err != nil {
		t.Fatal(err)
	}
	if err := buf.Wait(); err != nil {
		t.Fatal(err)
	}
	if buf.Data() != nil {
		t.Error("unstaged buffer must not expose data")
	}
}

func TestTriangulateFlatSurface(t *testing.T) {
	// 3x3x2 grid, density constant per layer: the surface is the plane
	// halfway between the layers.
	count := compute.VoxelCount{Width: 3, Height: 3, Depth: 2}
	samples := make([]float32, count.Total())
	for i := range samples {
		if uint32(i) < count.Width*count.Height {
			samples[i] = 0.8
		} else {
			samples[i] = 0.2
		}
	}
	tris := triangulate(samples, count, 0.5)
	if len(tris) == 0 {
		t.Fatal("flat crossing produced no triangles")
	}
	for _, tri := range tris {
		for _, p := range tri.Position {
			if abs32(p.Z()-0.5) > 0.0001 {
				t.Fatalf("vertex %v off the z=0.5 plane", p)
			}
			for axis := 0; axis < 3; axis++ {
				if p[axis] < 0 || p[axis] > 1 {
					t.Fatalf("vertex %v outside the unit cube", p)
				}
			}
		}
	}
}

func TestTriangulateUniformFieldEmpty(t *testing.T) {
	count := compute.VoxelCount{Width: 3, Height: 3, Depth: 3}
	samples := make([]float32, count.Total())
	for i := range samples {
		samples[i] = 1.0
	}
	if tris := triangulate(samples, count, 0.5); len(tris) != 0 {
		t.Errorf("uniform field produced %d triangles", len(tris))
	}
}

func TestTriangulateDegenerateGrid(t *testing.T) {
	count := compute.VoxelCount{Width: 3, Height: 3, Depth: 1}
	samples := make([]float32, count.Total())
	if tris := triangulate(samples, count, 0.5); tris != nil {
		t.Errorf("single-layer grid produced %d triangles", len(tris))
	}
}

func TestTriangulateVertexIDs(t *testing.T) {
	b := New(3)
	count := compute.VoxelCount{Width: 8, Height: 8, Depth: 4}
	vb, err := b.SubmitVoxelJob(testJob(count))
	if err != nil {
		t.Fatal(err)
	}
	tb, err := b.SubmitTriangleJob(compute.TriangleJob{
		CellCount:     count.CellCount(),
		Isolevel:      0.5,
		CopyToStaging: true,
	}, vb)
	if err != nil {
		t.Fatal(err)
	}
	if err := tb.Wait(); err != nil {
		t.Fatal(err)
	}
	tris := tb.Triangles()
	if len(tris) == 0 {
		t.Fatal("field with a surface crossing produced no triangles")
	}
	seen := make(map[uint64]mgl32.Vec3)
	for _, tri := range tris {
		for v := 0; v < 3; v++ {
			i1, i2 := compute.UnpackEdgeID(tri.ID[v])
			if i1 >= i2 {
				t.Fatalf("edge id %d not canonical: %d >= %d", tri.ID[v], i1, i2)
			}
			if i2 >= count.Total() {
				t.Fatalf("edge endpoint %d outside grid of %d samples", i2, count.Total())
			}
			if prev, ok := seen[tri.ID[v]]; ok {
				if prev.Sub(tri.Position[v]).Len() > 0.0001 {
					t.Fatalf("id %d has two positions: %v and %v", tri.ID[v], prev, tri.Position[v])
				}
			} else {
				seen[tri.ID[v]] = tri.Position[v]
			}
		}
	}
}

func TestSubmitTriangleJobRejectsForeignBuffer(t *testing.T) {
	b := New(0)
	_, err := b.SubmitTriangleJob(compute.TriangleJob{
		CellCount: compute.VoxelCount{Width: 1, Height: 1, Depth: 1},
	}, foreignBuffer{})
	if err == nil || !strings.Contains(err.Error(), "foreign") {
		t.Fatalf("expected foreign buffer error, got %v", err)
	}
}

func TestSubmitTriangleJobRejectsUnstagedBuffer(t *testing.T) {
	b := New(0)
	job := testJob(compute.VoxelCount{Width: 2, Height: 2, Depth: 2})
	job.CopyToStaging = false
	vb, err := b.SubmitVoxelJob(job)
	if err != nil {
		t.Fatal(err)
	}
	_, err = b.SubmitTriangleJob(compute.TriangleJob{
		CellCount: compute.VoxelCount{Width: 1, Height: 1, Depth: 1},
	}, vb)
	if err == nil {
		t.Fatal("expected error for unstaged voxel buffer")
	}
}

func TestSubmitTriangleJobRejectsMismatchedCellCount(t *testing.T) {
	b := New(0)
	vb, err := b.SubmitVoxelJob(testJob(compute.VoxelCount{Width: 4, Height: 4, Depth: 2}))
	if err != nil {
		t.Fatal(err)
	}
	_, err = b.SubmitTriangleJob(compute.TriangleJob{
		CellCount:     compute.VoxelCount{Width: 2, Height: 2, Depth: 2},
		CopyToStaging: true,
	}, vb)
	if err == nil {
		t.Fatal("expected error for mismatched cell count")
	}
}

func TestCreateMeshResource(t *testing.T) {
	b := New(0)
	_, err := b.CreateMeshResource(compute.MeshUpload{
		Positions: make([]mgl32.Vec3, 2),
		Normals:   make([]mgl32.Vec3, 3),
	})
	if err == nil {
		t.Fatal("expected error for mismatched position/normal counts")
	}

	upload := compute.MeshUpload{
		Positions: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}},
		Normals:   []mgl32.Vec3{{0, 0, 1}, {0, 0, 1}},
		Indices:   []uint32{0, 1},
		Transform: mgl32.Translate3D(4, 0, 0),
	}
	handle, err := b.CreateMeshResource(upload)
	if err != nil {
		t.Fatal(err)
	}
	res := handle.(*meshResource)

	// The resource owns a copy: mutating the upload must not leak through.
	upload.Positions[0] = mgl32.Vec3{9, 9, 9}
	if res.Positions()[0] != (mgl32.Vec3{0, 0, 0}) {
		t.Error("resource aliases the upload slice")
	}

	if err := res.UpdateVertices([]compute.VertexUpdate{
		{Index: 1, Position: mgl32.Vec3{2, 0, 0}, Normal: mgl32.Vec3{0, 0, 1}},
	}); err != nil {
		t.Fatal(err)
	}
	if res.Positions()[1] != (mgl32.Vec3{2, 0, 0}) {
		t.Error("UpdateVertices did not apply")
	}

	if err := res.UpdateVertices([]compute.VertexUpdate{{Index: 5}}); err == nil {
		t.Error("expected out-of-range error")
	}
	res.Release()
	if err := res.UpdateVertices(nil); err == nil {
		t.Error("expected error after release")
	}
}

func TestBackendDeterministicAcrossRuns(t *testing.T) {
	count := compute.VoxelCount{Width: 8, Height: 8, Depth: 4}
	run := func() int {
		b := New(99)
		vb, err := b.SubmitVoxelJob(testJob(count))
		if err != nil {
			t.Fatal(err)
		}
		tb, err := b.SubmitTriangleJob(compute.TriangleJob{
			CellCount:     count.CellCount(),
			Isolevel:      0.5,
			CopyToStaging: true,
		}, vb)
		if err != nil {
			t.Fatal(err)
		}
		if err := tb.Wait(); err != nil {
			t.Fatal(err)
		}
		return len(tb.Triangles())
	}
	first := run()
	if first == 0 {
		t.Fatal("no triangles generated")
	}
	if second := run(); second != first {
		t.Errorf("triangle count varies across runs: %d vs %d", first, second)
	}
}

type foreignBuffer struct{}

func (foreignBuffer) Ready() bool     { return true }
func (foreignBuffer) Wait() error     { return nil }
func (foreignBuffer) Data() []float32 { return nil }
func (foreignBuffer) Release()        {}

func BenchmarkDensityField(b *testing.B) {
	g := NewFieldGenerator(1)
	for i := 0; i < b.N; i++ {
		g.Density(float64(i%512), float64(i%317), 0.1)
	}
}

func BenchmarkTriangulate(b *testing.B) {
	back := New(5)
	count := compute.VoxelCount{Width: 16, Height: 16, Depth: 8}
	vb, err := back.SubmitVoxelJob(testJob(count))
	if err != nil {
		b.Fatal(err)
	}
	if err := vb.Wait(); err != nil {
		b.Fatal(err)
	}
	samples := vb.Data()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		triangulate(samples, count, 0.5)
	}
}
