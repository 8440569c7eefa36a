package terrain

import (
	"fmt"
	"iter"

	"terrastream/internal/geom"
)

const (
	// MaxLevel is the deepest subdivision level; level 0 is a root tile.
	MaxLevel uint32 = 8
	// RootTileSize is the world-space side length of a level-0 tile.
	RootTileSize int32 = 1 << MaxLevel
	// MinZ and MaxZ bound the fixed vertical extent of the terrain slab.
	MinZ int32 = -1
	MaxZ int32 = 1
)

// Tree is the per-world quadtree LOD index. Root tiles are created lazily
// the first time a region touches them; each root subdivides into quadrants
// down to MaxLevel.
//
// Structural edits are two-phase: SetLevelInRegion only records subdivision
// and demotion intents, and RebuildTree commits them. A single logical
// update may span several SetLevelInRegion calls (one per visibility band)
// and still observe a stable tree.
//
// Tree is not safe for concurrent use; the owner serializes the write phase
// and traversals under its own reader/writer lock.
type Tree struct {
	roots map[geom.Point2]*Node
}

// Node is one quadtree cell: an integer bounding box, a subdivision level,
// and either no children (leaf) or exactly four children covering the
// quadrants of its 2D extent.
type Node struct {
	bounds         geom.Box3
	subNodes       []*Node
	level          uint32
	removeSubNodes bool
}

// NewTree creates an empty index.
func NewTree() *Tree {
	return &Tree{roots: make(map[geom.Point2]*Node)}
}

// AddNode creates the root tile anchored at point if it does not exist.
func (t *Tree) AddNode(point geom.Point2) {
	if _, ok := t.roots[point]; ok {
		return
	}
	t.roots[point] = NewNode(geom.NewBox3(
		geom.Point3{X: point.X, Y: point.Y, Z: MinZ},
		geom.Point3{X: point.X + RootTileSize, Y: point.Y + RootTileSize, Z: MaxZ},
	), 0)
}

// EnsureNodeInRegion creates every missing root tile whose bounds intersect
// the region. Tile origins are aligned to RootTileSize multiples, rounded
// outward from the region's bounding box; a degenerate box still produces
// at least one tile per axis.
func (t *Tree) EnsureNodeInRegion(region *geom.Region) {
	bbox := region.BoundingRect()
	minX := geom.RoundDownToMultiple(int32(floor32(bbox.Min.X())), RootTileSize)
	minY := geom.RoundDownToMultiple(int32(floor32(bbox.Min.Y())), RootTileSize)
	maxX := geom.RoundUpToMultiple(int32(ceil32(bbox.Max.X())), RootTileSize)
	maxY := geom.RoundUpToMultiple(int32(ceil32(bbox.Max.Y())), RootTileSize)
	if minX == maxX {
		maxX += RootTileSize
	}
	if minY == maxY {
		maxY += RootTileSize
	}
	for x := minX; x < maxX; x += RootTileSize {
		for y := minY; y < maxY; y += RootTileSize {
			point := geom.Point2{X: x, Y: y}
			if _, ok := t.roots[point]; ok {
				continue
			}
			tile := geom.Box3{
				Min: geom.Point3{X: x, Y: y, Z: MinZ},
				Max: geom.Point3{X: x + RootTileSize, Y: y + RootTileSize, Z: MaxZ},
			}
			if region.IntersectsRect(tile.Rect()) {
				t.AddNode(point)
			}
		}
	}
}

// SetLevelInRegion marks every node intersecting the region: nodes at or
// above the target level are marked for demotion to leaf, nodes below it
// are subdivided (clearing any demotion mark) and recursed into. Marks
// take effect only at the next RebuildTree.
func (t *Tree) SetLevelInRegion(region *geom.Region, level uint32) {
	for _, root := range t.roots {
		root.setLevelInRegion(region, level)
	}
}

// RebuildTree commits all pending demotions. Call once after the region and
// level updates for a frame, before any traversal.
func (t *Tree) RebuildTree() {
	for _, root := range t.roots {
		root.rebuild()
	}
}

// RootNodes iterates the root tiles in map order.
func (t *Tree) RootNodes() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for _, root := range t.roots {
			if !yield(root) {
				return
			}
		}
	}
}

// Leaves iterates every leaf of the tree.
func (t *Tree) Leaves() iter.Seq[*Node] {
	return t.walkLeaves(nil, true, true, nil)
}

// LeavesIntersecting iterates leaves that intersect any of the regions.
func (t *Tree) LeavesIntersecting(regions []geom.Region) iter.Seq[*Node] {
	return t.walkLeaves(regions, true, false, nil)
}

// LeavesOutside iterates leaves that intersect none of the regions. The
// first level of every subtree is always region-tested; once a node tests
// clear of all regions its whole subtree is yielded without further tests.
func (t *Tree) LeavesOutside(regions []geom.Region) iter.Seq[*Node] {
	return t.walkLeaves(regions, false, true, nil)
}

// LeavesIntersectingIf iterates region-intersecting nodes, additionally
// treating any internal node for which isLeaf returns true as a leaf and
// pruning its subtree.
func (t *Tree) LeavesIntersectingIf(regions []geom.Region, isLeaf func(node *Node, subNodes []*Node) bool) iter.Seq[*Node] {
	return t.walkLeaves(regions, true, false, isLeaf)
}

type stackEntry struct {
	node        *Node
	shouldCheck bool
}

// walkLeaves is the shared depth-first traversal. Each stack entry tracks
// whether the node still needs a region test: in the outside traversal a
// node that tested clear of all regions lets its subtree skip the test.
func (t *Tree) walkLeaves(regions []geom.Region, intersect, outside bool, isLeaf func(*Node, []*Node) bool) iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		stack := make([]stackEntry, 0, len(t.roots))
		for _, root := range t.roots {
			stack = append(stack, stackEntry{node: root, shouldCheck: true})
		}
		for len(stack) > 0 {
			e := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			node := e.node
			collide := e.shouldCheck && node.intersectsAny(regions)
			if node.subNodes == nil {
				if (intersect && collide) || (outside && !collide) {
					if !yield(node) {
						return
					}
				}
				continue
			}
			if (intersect && collide) || (outside && (!collide || e.shouldCheck)) {
				if isLeaf != nil && isLeaf(node, node.subNodes) {
					if !yield(node) {
						return
					}
					continue
				}
				for _, sub := range node.subNodes {
					stack = append(stack, stackEntry{node: sub, shouldCheck: collide})
				}
			}
		}
	}
}

// NewNode creates a node. Levels past MaxLevel are a programming error.
func NewNode(bounds geom.Box3, level uint32) *Node {
	if level > MaxLevel {
		panic(fmt.Sprintf("terrain: node level %d exceeds MaxLevel %d", level, MaxLevel))
	}
	return &Node{bounds: bounds, level: level}
}

// Bounds returns the node's integer bounding box.
func (n *Node) Bounds() geom.Box3 { return n.bounds }

// Level returns the node's subdivision level.
func (n *Node) Level() uint32 { return n.level }

// SubNodes returns the four children, or nil for a leaf.
func (n *Node) SubNodes() []*Node { return n.subNodes }

// Key returns the cache key identifying this node's terrain unit.
func (n *Node) Key() ChunkKey {
	return ChunkKey{Bounds: n.bounds, Level: n.level}
}

// IntersectsRegion reports whether the node's 2D footprint intersects the
// region.
func (n *Node) IntersectsRegion(region *geom.Region) bool {
	return region.IntersectsRect(n.bounds.Rect())
}

func (n *Node) intersectsAny(regions []geom.Region) bool {
	for i := range regions {
		if n.IntersectsRegion(&regions[i]) {
			return true
		}
	}
	return false
}

// Subdivide splits a leaf into its four quadrants at level+1. It is a no-op
// on a node that already has children.
func (n *Node) Subdivide() {
	if n.subNodes != nil {
		return
	}
	center := n.bounds.Center()
	min := n.bounds.Min
	max := n.bounds.Max
	n.subNodes = []*Node{
		NewNode(geom.NewBox3(min, geom.Point3{X: center.X, Y: center.Y, Z: max.Z}), n.level+1),
		NewNode(geom.NewBox3(geom.Point3{X: center.X, Y: min.Y, Z: min.Z}, geom.Point3{X: max.X, Y: center.Y, Z: max.Z}), n.level+1),
		NewNode(geom.NewBox3(geom.Point3{X: min.X, Y: center.Y, Z: min.Z}, geom.Point3{X: center.X, Y: max.Y, Z: max.Z}), n.level+1),
		NewNode(geom.NewBox3(geom.Point3{X: center.X, Y: center.Y, Z: min.Z}, max), n.level+1),
	}
}

func (n *Node) setLevelInRegion(region *geom.Region, level uint32) {
	if !n.IntersectsRegion(region) {
		return
	}
	if n.level >= level {
		n.removeSubNodes = true
		return
	}
	if n.subNodes == nil {
		n.Subdivide()
	}
	n.removeSubNodes = false
	for _, sub := range n.subNodes {
		sub.setLevelInRegion(region, level)
	}
}

func (n *Node) rebuild() {
	if n.removeSubNodes {
		n.subNodes = nil
		n.removeSubNodes = false
		return
	}
	for _, sub := range n.subNodes {
		sub.rebuild()
	}
}

func floor32(f float32) float32 {
	i := float32(int32(f))
	if f < 0 && f != i {
		return i - 1
	}
	return i
}

func ceil32(f float32) float32 {
	i := float32(int32(f))
	if f > 0 && f != i {
		return i + 1
	}
	return i
}
