package imageproc

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Fade composites img with the given opacity over a canvas of bg. A transparent bg keeps
// the result translucent; JPEG output needs an opaque one.
func Fade(img image.Image, opacity float64, bg color.Color) *image.NRGBA {
	if opacity >= 1 {
		return imaging.Clone(img)
	}

	bounds := img.Bounds()
	canvas := imaging.New(bounds.Dx(), bounds.Dy(), bg)

	// imaging сам нормирует альфу при наложении
	return imaging.Overlay(canvas, img, image.Pt(0, 0), opacity)
}
