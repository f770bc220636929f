// Package editor holds the adjustment model of a retouch session: slider values,
// the two preset actions and the mapping from sliders to a visual effect.
package editor

import "fmt"

// Param names a single slider of the editor.
type Param string

const (
	Brightness     Param = "brightness"
	Contrast       Param = "contrast"
	Saturation     Param = "saturation"
	SkinSmoothing  Param = "skin_smoothing"
	BlemishRemoval Param = "blemish_removal"
)

// Range describes the bounds and default value of a slider. Step is always 1.
type Range struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
}

func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

var ranges = map[Param]Range{
	Brightness:     {Min: 50, Max: 150, Default: 100},
	Contrast:       {Min: 50, Max: 150, Default: 100},
	Saturation:     {Min: 50, Max: 150, Default: 100},
	SkinSmoothing:  {Min: 0, Max: 100, Default: 0},
	BlemishRemoval: {Min: 0, Max: 100, Default: 0},
}

// AllParams lists the sliders in display order.
var AllParams = []Param{Brightness, Contrast, Saturation, SkinSmoothing, BlemishRemoval}

// RangeOf returns the declared range of p.
func RangeOf(p Param) (Range, bool) {
	r, ok := ranges[p]
	return r, ok
}

// Params is the adjustment parameter store. It never clamps: keeping values in range
// is the job of whoever feeds the setters.
type Params struct {
	Brightness     float64 `json:"brightness"`
	Contrast       float64 `json:"contrast"`
	Saturation     float64 `json:"saturation"`
	SkinSmoothing  float64 `json:"skin_smoothing"`
	BlemishRemoval float64 `json:"blemish_removal"`
}

func DefaultParams() Params {
	return Params{
		Brightness:     ranges[Brightness].Default,
		Contrast:       ranges[Contrast].Default,
		Saturation:     ranges[Saturation].Default,
		SkinSmoothing:  ranges[SkinSmoothing].Default,
		BlemishRemoval: ranges[BlemishRemoval].Default,
	}
}

func (p Params) Get(name Param) (float64, bool) {
	switch name {
	case Brightness:
		return p.Brightness, true
	case Contrast:
		return p.Contrast, true
	case Saturation:
		return p.Saturation, true
	case SkinSmoothing:
		return p.SkinSmoothing, true
	case BlemishRemoval:
		return p.BlemishRemoval, true
	}
	return 0, false
}

// With returns a copy of p with name set to v. Unknown names leave p untouched.
func (p Params) With(name Param, v float64) Params {
	switch name {
	case Brightness:
		p.Brightness = v
	case Contrast:
		p.Contrast = v
	case Saturation:
		p.Saturation = v
	case SkinSmoothing:
		p.SkinSmoothing = v
	case BlemishRemoval:
		p.BlemishRemoval = v
	}
	return p
}

func (p Params) String() string {
	return fmt.Sprintf("{brightness:%g contrast:%g saturation:%g skin_smoothing:%g blemish_removal:%g}",
		p.Brightness, p.Contrast, p.Saturation, p.SkinSmoothing, p.BlemishRemoval)
}
