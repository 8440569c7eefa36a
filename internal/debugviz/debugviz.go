// Package debugviz renders read-only text views of the terrain engine
// state: a leaf-level minimap and a one-line occupancy summary. It never
// mutates engine state.
package debugviz

import (
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"terrastream/internal/terrain"
)

// Summary formats cache occupancy and in-flight counts for the frame log.
func Summary(t *terrain.Terrain, drawn int) string {
	s := t.Stats()
	var b strings.Builder
	b.WriteString("chunks=")
	b.WriteString(strconv.Itoa(s.Chunks))
	b.WriteString(" meshes=")
	b.WriteString(strconv.Itoa(s.Meshes))
	b.WriteString(" ready=")
	b.WriteString(strconv.Itoa(s.ReadyMeshes))
	b.WriteString(" pending=")
	b.WriteString(strconv.Itoa(s.Pending))
	b.WriteString(" drawn=")
	b.WriteString(strconv.Itoa(drawn))
	return b.String()
}

// LeafMap renders the quadtree leaves around center into a character grid
// spanning worldSpan units per side. Each cell shows the leaf level as a
// digit, '#' for cells whose mesh is ready, and '.' where no leaf exists.
func LeafMap(t *terrain.Terrain, center mgl32.Vec3, worldSpan float32, cells int) string {
	if cells < 1 {
		return ""
	}
	grid := make([]byte, cells*cells)
	for i := range grid {
		grid[i] = '.'
	}
	cellSize := worldSpan / float32(cells)
	minX := center.X() - worldSpan/2
	minY := center.Y() - worldSpan/2

	t.VisitLeaves(func(leaf terrain.LeafInfo) {
		x0 := clampCell((float32(leaf.Bounds.Min.X)-minX)/cellSize, cells)
		x1 := clampCell((float32(leaf.Bounds.Max.X)-minX)/cellSize, cells)
		y0 := clampCell((float32(leaf.Bounds.Min.Y)-minY)/cellSize, cells)
		y1 := clampCell((float32(leaf.Bounds.Max.Y)-minY)/cellSize, cells)
		mark := byte('0' + leaf.Level%10)
		if leaf.MeshReady {
			mark = '#'
		}
		for y := y0; y <= y1 && y < cells; y++ {
			for x := x0; x <= x1 && x < cells; x++ {
				grid[y*cells+x] = mark
			}
		}
	})

	var b strings.Builder
	for y := cells - 1; y >= 0; y-- {
		b.Write(grid[y*cells : (y+1)*cells])
		b.WriteByte('\n')
	}
	return b.String()
}

func clampCell(v float32, cells int) int {
	i := int(v)
	if i < 0 {
		return 0
	}
	if i >= cells {
		return cells - 1
	}
	return i
}
