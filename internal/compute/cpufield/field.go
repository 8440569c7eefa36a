// Package cpufield is a CPU implementation of the compute backend contract:
// deterministic value-noise density generation, marching-tetrahedra
// triangulation, and in-memory mesh resources. Jobs run on their own
// goroutines and complete through the staged buffer handles, mirroring the
// submit/poll/wait shape of a device-backed implementation.
package cpufield

import (
	"math"
)

// fade is the smoothstep-like spline 6t^5 - 15t^4 + 10t^3.
func fade(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// hash2 is a SplitMix64-style integer hash, stable across runs for the same
// inputs.
func hash2(x, y int64, seed int64) uint64 {
	v := uint64(x) + (uint64(y) << 1) + uint64(seed)*0x9E3779B97F4A7C15
	v += 0x9E3779B97F4A7C15
	v = (v ^ (v >> 30)) * 0xBF58476D1CE4E5B9
	v = (v ^ (v >> 27)) * 0x94D049BB133111EB
	return v ^ (v >> 31)
}

func hash3(x, y, z int64, seed int64) uint64 {
	// Separate golden ratio variants per axis for better distribution.
	v := uint64(x)*0x9E3779B97F4A7C15 + uint64(y)*0x517CC1B727220A95 + uint64(z)*0x6C62272E07BB0142 + uint64(seed)
	v += 0x9E3779B97F4A7C15
	v = (v ^ (v >> 30)) * 0xBF58476D1CE4E5B9
	v = (v ^ (v >> 27)) * 0x94D049BB133111EB
	return v ^ (v >> 31)
}

func latticeValue(x, y int64, seed int64) float64 {
	return float64(hash2(x, y, seed)&0xFFFFFFFF) / float64(0xFFFFFFFF)
}

func latticeValue3D(x, y, z int64, seed int64) float64 {
	return float64(hash3(x, y, z, seed)&0xFFFFFFFF) / float64(0xFFFFFFFF)
}

func valueNoise2D(x, y float64, seed int64) float64 {
	x0 := math.Floor(x)
	y0 := math.Floor(y)
	fx := fade(x - x0)
	fy := fade(y - y0)

	v00 := latticeValue(int64(x0), int64(y0), seed)
	v10 := latticeValue(int64(x0)+1, int64(y0), seed)
	v01 := latticeValue(int64(x0), int64(y0)+1, seed)
	v11 := latticeValue(int64(x0)+1, int64(y0)+1, seed)

	return lerp(lerp(v00, v10, fx), lerp(v01, v11, fx), fy) // [0,1]
}

func valueNoise3D(x, y, z float64, seed int64) float64 {
	x0 := math.Floor(x)
	y0 := math.Floor(y)
	z0 := math.Floor(z)
	fx := fade(x - x0)
	fy := fade(y - y0)
	fz := fade(z - z0)

	ix, iy, iz := int64(x0), int64(y0), int64(z0)
	v000 := latticeValue3D(ix, iy, iz, seed)
	v100 := latticeValue3D(ix+1, iy, iz, seed)
	v010 := latticeValue3D(ix, iy+1, iz, seed)
	v110 := latticeValue3D(ix+1, iy+1, iz, seed)
	v001 := latticeValue3D(ix, iy, iz+1, seed)
	v101 := latticeValue3D(ix+1, iy, iz+1, seed)
	v011 := latticeValue3D(ix, iy+1, iz+1, seed)
	v111 := latticeValue3D(ix+1, iy+1, iz+1, seed)

	i00 := lerp(v000, v100, fx)
	i10 := lerp(v010, v110, fx)
	i01 := lerp(v001, v101, fx)
	i11 := lerp(v011, v111, fx)
	return lerp(lerp(i00, i10, fy), lerp(i01, i11, fy), fz) // [0,1]
}

func octaveNoise2D(x, y float64, seed int64, octaves int, persistence, lacunarity float64) float64 {
	amplitude := 1.0
	frequency := 1.0
	sum := 0.0
	norm := 0.0
	for i := 0; i < octaves; i++ {
		sum += valueNoise2D(x*frequency, y*frequency, seed+int64(i*131)) * amplitude
		norm += amplitude
		amplitude *= persistence
		frequency *= lacunarity
	}
	if norm == 0 {
		return 0
	}
	return sum / norm // [0,1]
}

func octaveNoise3D(x, y, z float64, seed int64, octaves int, persistence, lacunarity float64) float64 {
	amplitude := 1.0
	frequency := 1.0
	sum := 0.0
	norm := 0.0
	for i := 0; i < octaves; i++ {
		sum += valueNoise3D(x*frequency, y*frequency, z*frequency, seed+int64(i*131)) * amplitude
		norm += amplitude
		amplitude *= persistence
		frequency *= lacunarity
	}
	if norm == 0 {
		return 0
	}
	return sum / norm // [0,1]
}

// FieldGenerator evaluates the terrain density field. Density decreases
// monotonically with height through a vertical gradient, so every column
// has a single surface crossing; a small 3D detail term roughens the
// surface without breaking that property.
type FieldGenerator struct {
	seed        int64
	scale       float64
	octaves     int
	persistence float64
	lacunarity  float64
	heightAmp   float64
	gradient    float64
	detail      float64
}

// NewFieldGenerator creates a generator for the given world seed.
func NewFieldGenerator(seed int64) *FieldGenerator {
	return &FieldGenerator{
		seed:        seed,
		scale:       1.0 / 64.0,
		octaves:     4,
		persistence: 0.5,
		lacunarity:  2.0,
		heightAmp:   0.5,
		gradient:    0.5,
		detail:      0.02,
	}
}

// Density returns the field value at a world coordinate, centered on 0.5.
// The surface height at (x, y) for isolevel 0.5 is heightAmp*(2n-1) where
// n is the planar octave noise; raising the isolevel lowers the surface.
func (g *FieldGenerator) Density(x, y, z float64) float32 {
	n := octaveNoise2D(x*g.scale, y*g.scale, g.seed, g.octaves, g.persistence, g.lacunarity)
	height := (n*2 - 1) * g.heightAmp
	d := 0.5 + (height-z)*g.gradient
	d += (octaveNoise3D(x*g.scale*4, y*g.scale*4, z*4, g.seed+7, 2, g.persistence, g.lacunarity) - 0.5) * g.detail
	return float32(d)
}
