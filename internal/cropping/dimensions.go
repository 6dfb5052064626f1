package cropping

import (
	"fmt"
	"math"
)

// Dimensions is an immutable width/height/ratio triple. A zero value for any
// of the three means the value is not set. When two of them are known the
// third is derived on construction.
type Dimensions struct {
	width  float64
	height float64
	ratio  float64
}

// NewDimensions resolves the missing member of the triple where possible.
// Negative or non-finite inputs are programming errors and panic.
func NewDimensions(width, height, ratio float64) Dimensions {
	mustBeDimension("width", width)
	mustBeDimension("height", height)
	mustBeDimension("ratio", ratio)

	if height > 0 && ratio > 0 && width == 0 {
		width = height * ratio
	}
	if width > 0 && ratio > 0 && height == 0 {
		height = width / ratio
	}
	if width > 0 && height > 0 && ratio == 0 {
		ratio = width / height
	}
	return Dimensions{width: width, height: height, ratio: ratio}
}

// ParseDimensions is NewDimensions with the ratio given as an expression.
func ParseDimensions(width, height float64, ratioExpr string) (Dimensions, error) {
	ratio, err := ParseRatio(ratioExpr)
	if err != nil {
		return Dimensions{}, err
	}
	return NewDimensions(width, height, ratio), nil
}

func mustBeDimension(name string, v float64) {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		panic(fmt.Sprintf("cropping: invalid %s %v", name, v))
	}
}

func (d Dimensions) Width() float64  { return d.width }
func (d Dimensions) Height() float64 { return d.height }
func (d Dimensions) Ratio() float64  { return d.ratio }

// IsFree reports whether no aspect ratio is fixed.
func (d Dimensions) IsFree() bool { return d.ratio == 0 }

// Scale multiplies width and height by factor. The ratio is derived again
// from the scaled values so the triple stays consistent.
func (d Dimensions) Scale(factor float64) Dimensions {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		panic(fmt.Sprintf("cropping: invalid scale factor %v", factor))
	}
	w, h := d.width*factor, d.height*factor
	if w > 0 && h > 0 {
		return Dimensions{width: w, height: h, ratio: w / h}
	}
	return Dimensions{width: w, height: h, ratio: d.ratio}
}

// Pixels rounds width and height to the nearest integer. Unset values stay 0.
func (d Dimensions) Pixels() (width, height int) {
	return int(math.Round(d.width)), int(math.Round(d.height))
}
