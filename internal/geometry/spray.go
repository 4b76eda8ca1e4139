package geometry

import (
	"math"
	"math/rand/v2"
)

// SprayDotRadius is the radius of a single spray particle
const SprayDotRadius = 0.5

// SprayDensity: number of dots scattered per spray segment
func SprayDensity(width float64) int {
	return int(width * 2)
}

// SprayOffsets returns SprayDensity(width) offsets inside a disc of radius width.
// The radius is drawn as width*sqrt(u) so dots are spread evenly over the
// disc area instead of bunching at the centre.
func SprayOffsets(width float64, rng *rand.Rand) []Point {
	n := SprayDensity(width)
	if n <= 0 {
		return nil
	}

	offsets := make([]Point, n)
	for i := range offsets {
		r := width * math.Sqrt(rng.Float64())
		theta := rng.Float64() * 2 * math.Pi
		offsets[i] = Point{X: r * math.Cos(theta), Y: r * math.Sin(theta)}
	}
	return offsets
}
