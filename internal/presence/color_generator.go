package presence

import (
	"github.com/lucasb-eyer/go-colorful"
)

const goldenRatio = 0.618033988749895

// ColorGenerator: hands out well separated cursor colors by stepping the hue
// around the wheel by the golden ratio. Owned by the Registry, so unlocked.
type ColorGenerator struct {
	counter int
}

func NewColorGenerator() *ColorGenerator {
	return &ColorGenerator{}
}

// NextColor: returns the next color in the sequence as hex
func (cg *ColorGenerator) NextColor() string {
	hue := float64(cg.counter) * goldenRatio
	hue -= float64(int(hue))
	cg.counter++

	return colorful.Hsl(hue*360, 0.85, 0.55).Hex()
}
