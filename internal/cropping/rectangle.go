package cropping

import (
	"fmt"
	"math"
)

// CenteredCropArea returns the largest centered area of a sourceWidth x
// sourceHeight image that has the target ratio (width / height).
func CenteredCropArea(sourceWidth, sourceHeight int, targetRatio float64) Area {
	if sourceWidth <= 0 || sourceHeight <= 0 {
		panic(fmt.Sprintf("cropping: invalid source size %dx%d", sourceWidth, sourceHeight))
	}
	if targetRatio <= 0 || math.IsNaN(targetRatio) || math.IsInf(targetRatio, 0) {
		panic(fmt.Sprintf("cropping: invalid target ratio %v", targetRatio))
	}
	sourceRatio := float64(sourceWidth) / float64(sourceHeight)
	height := math.Min(1, sourceRatio/targetRatio)
	width := math.Min(1, targetRatio/sourceRatio)
	return Area{
		X:      (1 - width) / 2,
		Y:      (1 - height) / 2,
		Width:  width,
		Height: height,
	}
}
