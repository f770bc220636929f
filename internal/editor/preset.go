package editor

import "time"

// PresetKind identifies one of the one-shot "AI" actions.
type PresetKind string

const (
	PresetAutoEnhance PresetKind = "auto_enhance"
	PresetFaceRetouch PresetKind = "face_retouch"
)

type presetValue struct {
	param Param
	value float64
}

// Preset is a simulated processing step: after Delay the listed sliders jump to
// fixed values and a notification with Title/Description goes out.
type Preset struct {
	Kind        PresetKind
	Delay       time.Duration
	Title       string
	Description string
	values      []presetValue
}

var presets = map[PresetKind]Preset{
	PresetAutoEnhance: {
		Kind:        PresetAutoEnhance,
		Delay:       1500 * time.Millisecond,
		Title:       "✨ Фото улучшено!",
		Description: "Применены автоматические настройки ИИ",
		values: []presetValue{
			{Brightness, 110},
			{Contrast, 115},
			{Saturation, 120},
		},
	},
	PresetFaceRetouch: {
		Kind:        PresetFaceRetouch,
		Delay:       2000 * time.Millisecond,
		Title:       "✨ Ретушь завершена!",
		Description: "Лицо обработано: удалены недостатки, выровнен тон кожи",
		values: []presetValue{
			{SkinSmoothing, 60},
			{BlemishRemoval, 80},
			{Brightness, 105},
			{Contrast, 108},
		},
	},
}

func LookupPreset(kind PresetKind) (Preset, bool) {
	p, ok := presets[kind]
	return p, ok
}

// Apply overwrites the preset's sliders in p, leaving the others as they are.
func (ps Preset) Apply(p Params) Params {
	for _, v := range ps.values {
		p = p.With(v.param, v.value)
	}
	return p
}

// Values returns the slider values the preset writes.
func (ps Preset) Values() map[Param]float64 {
	res := make(map[Param]float64, len(ps.values))
	for _, v := range ps.values {
		res[v.param] = v.value
	}
	return res
}
