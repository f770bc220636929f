package editor

// Flags are the transient "busy" markers of the two presets. While either is set
// neither preset can be started.
type Flags struct {
	AutoEnhanceRunning bool `json:"auto_enhance_running"`
	RetouchRunning     bool `json:"retouch_running"`
}

func (f Flags) Busy() bool {
	return f.AutoEnhanceRunning || f.RetouchRunning
}

func (f Flags) Running(kind PresetKind) bool {
	switch kind {
	case PresetAutoEnhance:
		return f.AutoEnhanceRunning
	case PresetFaceRetouch:
		return f.RetouchRunning
	}
	return false
}

func (f Flags) with(kind PresetKind, running bool) Flags {
	switch kind {
	case PresetAutoEnhance:
		f.AutoEnhanceRunning = running
	case PresetFaceRetouch:
		f.RetouchRunning = running
	}
	return f
}

// State is the whole editor record: loaded image handle, sliders and flags.
// All transitions below are pure and return a new value.
type State struct {
	Image  *string `json:"image,omitempty"`
	Params Params  `json:"params"`
	Flags  Flags   `json:"flags"`
}

func NewState() State {
	return State{Params: DefaultParams()}
}

func (s State) HasImage() bool {
	return s.Image != nil
}

// WithImage stores the handle verbatim. Sliders are not touched.
func (s State) WithImage(handle string) State {
	s.Image = &handle
	return s
}

// WithoutImage drops the image and resets every slider.
func (s State) WithoutImage() State {
	s.Image = nil
	return s.Reset()
}

func (s State) WithParam(p Param, v float64) State {
	s.Params = s.Params.With(p, v)
	return s
}

func (s State) Reset() State {
	s.Params = DefaultParams()
	return s
}

// Start marks kind as running. It refuses (returns false and s unchanged) while any
// preset is running.
func (s State) Start(kind PresetKind) (State, bool) {
	if _, ok := presets[kind]; !ok || s.Flags.Busy() {
		return s, false
	}
	s.Flags = s.Flags.with(kind, true)
	return s, true
}

// Complete applies the preset values on top of whatever is current and clears the
// flag. It does not look at the flag first: completion always lands.
func (s State) Complete(kind PresetKind) State {
	ps, ok := presets[kind]
	if !ok {
		return s
	}
	s.Params = ps.Apply(s.Params)
	s.Flags = s.Flags.with(kind, false)
	return s
}

// Pending lists the presets marked as running.
func (s State) Pending() []PresetKind {
	var res []PresetKind
	for _, k := range []PresetKind{PresetAutoEnhance, PresetFaceRetouch} {
		if s.Flags.Running(k) {
			res = append(res, k)
		}
	}
	return res
}
