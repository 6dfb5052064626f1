package cropping

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCenteredCropArea_MatchingRatio(t *testing.T) {
	a := CenteredCropArea(1600, 900, 16.0/9)
	assert.InDelta(t, 1, a.Width, 1e-12)
	assert.InDelta(t, 1, a.Height, 1e-12)
	assert.InDelta(t, 0, a.X, 1e-12)
	assert.InDelta(t, 0, a.Y, 1e-12)
}

func TestCenteredCropArea_SquareToWide(t *testing.T) {
	a := CenteredCropArea(1000, 1000, 16.0/9)
	assert.Equal(t, 1.0, a.Width)
	assert.InDelta(t, 0.5625, a.Height, 1e-12)
	assert.Equal(t, 0.0, a.X)
	assert.InDelta(t, 0.21875, a.Y, 1e-12)
}

func TestCenteredCropArea_Invariants(t *testing.T) {
	const eps = 1e-9
	sizes := [][2]int{{1, 1}, {1600, 900}, {900, 1600}, {3000, 17}, {17, 3000}, {1024, 768}}
	ratios := []float64{0.01, 0.5, 0.75, 1, 4.0 / 3, 16.0 / 9, 3, 100}
	for _, s := range sizes {
		for _, r := range ratios {
			a := CenteredCropArea(s[0], s[1], r)
			assert.GreaterOrEqual(t, a.X, 0.0)
			assert.GreaterOrEqual(t, a.Y, 0.0)
			assert.LessOrEqual(t, a.X+a.Width, 1+eps)
			assert.LessOrEqual(t, a.Y+a.Height, 1+eps)
			assert.True(t, a.Width == 1 || a.Height == 1, "one side must be unconstrained: %+v", a)
			assert.InDelta(t, (1-a.Width)/2, a.X, eps)
			assert.InDelta(t, (1-a.Height)/2, a.Y, eps)

			// the cropped pixels have the target ratio
			got := a.Width * float64(s[0]) / (a.Height * float64(s[1]))
			assert.InDelta(t, r, got, r*1e-9)
		}
	}
}

func TestCenteredCropArea_PanicsOnInvalidInput(t *testing.T) {
	assert.Panics(t, func() { CenteredCropArea(100, 0, 1) })
	assert.Panics(t, func() { CenteredCropArea(100, 100, 0) })
	assert.Panics(t, func() { CenteredCropArea(100, 100, math.Inf(1)) })
}
