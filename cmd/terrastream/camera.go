package main

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"terrastream/internal/geom"
	"terrastream/internal/terrain"
)

// camera is the headless stand-in for the renderer's camera: it drifts
// along a wandering path and derives the visibility bands the engine
// consumes each frame.
type camera struct {
	position mgl32.Vec3
	angle    float64
	speed    float64
}

func newCamera(speed float64) *camera {
	return &camera{position: mgl32.Vec3{0, 0, 0.25}, speed: speed}
}

// advance moves the camera one frame along a slowly turning heading.
func (c *camera) advance(frame int) {
	c.angle += 0.01 + 0.002*math.Sin(float64(frame)*0.013)
	c.position[0] += float32(math.Cos(c.angle) * c.speed)
	c.position[1] += float32(math.Sin(c.angle) * c.speed)
}

// band holds one visibility ring: everything within radius should reach
// the given subdivision level.
type band struct {
	radius float32
	level  uint32
}

// defaultBands lists the rings from coarse to fine. Applying the finer,
// smaller rings last lets them deepen the tree inside the coarse ones.
var defaultBands = []band{
	{radius: 512, level: 2},
	{radius: 192, level: 4},
	{radius: 64, level: 6},
	{radius: 24, level: terrain.MaxLevel},
}

// visibilityBands builds one octagonal region per band around the camera.
func (c *camera) visibilityBands() []terrain.TerrainRegion {
	regions := make([]terrain.TerrainRegion, 0, len(defaultBands))
	for _, b := range defaultBands {
		regions = append(regions, terrain.TerrainRegion{
			Region: octagon(c.position, b.radius),
			Level:  b.level,
		})
	}
	return regions
}

// regionList strips the levels off the visibility bands for render-time
// culling.
func regionList(bands []terrain.TerrainRegion) []geom.Region {
	regions := make([]geom.Region, len(bands))
	for i := range bands {
		regions[i] = bands[i].Region
	}
	return regions
}

func octagon(center mgl32.Vec3, radius float32) geom.Region {
	points := make([]mgl32.Vec2, 8)
	for i := range points {
		a := float64(i) * math.Pi / 4
		points[i] = mgl32.Vec2{
			center.X() + radius*float32(math.Cos(a)),
			center.Y() + radius*float32(math.Sin(a)),
		}
	}
	return geom.NewRegion(points)
}
