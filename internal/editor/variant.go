package editor

import (
	"errors"
	"strings"
)

// Variant selects the flavour of the editor. The basic one only knows the three
// colour sliders and the auto-enhance preset.
type Variant string

const (
	VariantFull  Variant = "full"
	VariantBasic Variant = "basic"
)

var ErrUnknownVariant = errors.New("unknown editor variant")

func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(VariantFull):
		return VariantFull, nil
	case string(VariantBasic):
		return VariantBasic, nil
	}
	return "", ErrUnknownVariant
}

func (v Variant) SupportsParam(p Param) bool {
	switch p {
	case Brightness, Contrast, Saturation:
		return true
	case SkinSmoothing, BlemishRemoval:
		return v != VariantBasic
	}
	return false
}

func (v Variant) SupportsPreset(k PresetKind) bool {
	switch k {
	case PresetAutoEnhance:
		return true
	case PresetFaceRetouch:
		return v != VariantBasic
	}
	return false
}

// Params lists the sliders the variant exposes.
func (v Variant) Params() []Param {
	res := make([]Param, 0, len(AllParams))
	for _, p := range AllParams {
		if v.SupportsParam(p) {
			res = append(res, p)
		}
	}
	return res
}
