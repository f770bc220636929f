package editor

import (
	"strconv"
	"strings"
)

const (
	blurPerSmoothing    = 0.01
	opacityPerBlemish   = 0.001
	filterTransitionCSS = "filter 0.3s ease-out"
)

// Effect is the typed visual-effect descriptor computed from the sliders.
// Percentages are multipliers for the renderer's native filters, BlurRadius is in px.
type Effect struct {
	BrightnessPct float64 `json:"brightness_pct"`
	ContrastPct   float64 `json:"contrast_pct"`
	SaturationPct float64 `json:"saturation_pct"`
	BlurRadius    float64 `json:"blur_radius"`
	Opacity       float64 `json:"opacity"`
}

// ComputeEffect maps sliders to an effect. Opacity bottoms out at 0.9 for
// blemishRemoval=100.
func ComputeEffect(p Params) Effect {
	opacity := 1.0
	if p.BlemishRemoval > 0 {
		// явная конверсия округляет произведение, без нее компилятор вправе слить его в FMA
		opacity = 1 - float64(p.BlemishRemoval*opacityPerBlemish)
	}
	return Effect{
		BrightnessPct: p.Brightness,
		ContrastPct:   p.Contrast,
		SaturationPct: p.Saturation,
		BlurRadius:    p.SkinSmoothing * blurPerSmoothing,
		Opacity:       opacity,
	}
}

// CSSFilter renders the filter chain for a browser. The basic variant has no blur term.
func (e Effect) CSSFilter(v Variant) string {
	var sb strings.Builder
	sb.WriteString("brightness(" + num(e.BrightnessPct) + "%)")
	sb.WriteString(" contrast(" + num(e.ContrastPct) + "%)")
	sb.WriteString(" saturate(" + num(e.SaturationPct) + "%)")
	if v != VariantBasic {
		sb.WriteString(" blur(" + num(e.BlurRadius) + "px)")
	}
	return sb.String()
}

// Style is the ready-to-apply inline style of the displayed image.
type Style struct {
	Filter     string  `json:"filter"`
	Transition string  `json:"transition"`
	Opacity    float64 `json:"opacity"`
}

func (e Effect) Style(v Variant) Style {
	return Style{
		Filter:     e.CSSFilter(v),
		Transition: filterTransitionCSS,
		Opacity:    e.Opacity,
	}
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
