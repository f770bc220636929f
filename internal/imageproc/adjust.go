package imageproc

import (
	"image"
	"image/color"
	"math"

	"github.com/UnendingLoop/PhotoRetouch/internal/editor"
	"github.com/disintegration/imaging"
)

// Adjust applies the colour part of the effect and the blur, following the CSS filter
// definitions: brightness is a linear multiply, contrast pivots around mid-grey.
func Adjust(img image.Image, eff editor.Effect) *image.NRGBA {
	b := eff.BrightnessPct / 100
	c := eff.ContrastPct / 100

	out := imaging.AdjustFunc(img, func(px color.NRGBA) color.NRGBA {
		px.R = tone(px.R, b, c)
		px.G = tone(px.G, b, c)
		px.B = tone(px.B, b, c)
		return px
	})

	if eff.SaturationPct != 100 {
		out = imaging.AdjustSaturation(out, eff.SaturationPct-100)
	}

	// sigma у imaging должна быть > 0
	if eff.BlurRadius > 0 {
		out = imaging.Blur(out, eff.BlurRadius)
	}
	return out
}

func tone(v uint8, brightness, contrast float64) uint8 {
	x := float64(v) / 255 * brightness
	x = (x-0.5)*contrast + 0.5
	x = math.Round(x * 255)
	switch {
	case x < 0:
		return 0
	case x > 255:
		return 255
	}
	return uint8(x)
}
