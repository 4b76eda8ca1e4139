package geometry

import (
	"fmt"
	"image"
	"math/rand/v2"
	"time"

	"github.com/gogpu/gg"
	"github.com/lucasb-eyer/go-colorful"
	xdraw "golang.org/x/image/draw"
)

// DefaultBackground is the paper color; the eraser paints with it
const DefaultBackground = "#ffffff"

// Surface: the local raster a client draws into. Not safe for concurrent
// use; callers serialize access (one UI thread).
type Surface struct {
	dc         *gg.Context
	background colorful.Color
	rng        *rand.Rand
}

type SurfaceOption func(*Surface)

// WithBackground: overrides the paper color (invalid hex is ignored)
func WithBackground(hex string) SurfaceOption {
	return func(s *Surface) {
		if c, ok := ParseColor(hex); ok {
			s.background = c
		}
	}
}

// WithRand: fixes the random source used by the spray tool
func WithRand(rng *rand.Rand) SurfaceOption {
	return func(s *Surface) {
		s.rng = rng
	}
}

// NewSurface creates a width x height surface filled with the background color.
func NewSurface(width, height int, opts ...SurfaceOption) *Surface {
	bg, _ := ParseColor(DefaultBackground)
	seed := uint64(time.Now().UnixNano())
	s := &Surface{
		background: bg,
		rng:        rand.New(rand.NewPCG(seed, seed>>1)),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.dc = gg.NewContext(width, height)
	s.Clear()
	return s
}

func (s *Surface) Width() int {
	return s.dc.Width()
}

func (s *Surface) Height() int {
	return s.dc.Height()
}

// Background returns the paper color as hex.
func (s *Surface) Background() string {
	return s.background.Hex()
}

// Clear: wipes the raster back to the background color
func (s *Surface) Clear() {
	s.dc.ClearPath()
	s.dc.ClearWithColor(gg.FromColor(s.background))
}

// Image returns a copy of the current pixels.
func (s *Surface) Image() image.Image {
	return s.dc.Image()
}

// Resize changes the raster dimensions and scales the existing drawing into
// the new bounds.
func (s *Surface) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid surface size %dx%d", width, height)
	}
	if width == s.Width() && height == s.Height() {
		return nil
	}

	s.replace(s.dc.Image(), width, height)
	return nil
}

// replace: swaps in a new context of the given size with img scaled to fill
// it, composited over the background so transparent snapshots read as paper
func (s *Surface) replace(img image.Image, width, height int) {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(s.background), image.Point{}, xdraw.Src)
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	s.dc = gg.NewContextForImage(dst)
}
