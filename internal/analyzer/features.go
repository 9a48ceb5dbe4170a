package analyzer

// Features describes spectral energy distribution of the analysed signal.
type Features struct {
	Bass     float64 `json:"bass"`
	Mid      float64 `json:"mid"`
	Treble   float64 `json:"treble"`
	Overall  float64 `json:"overall"`
	PeakHz   float64 `json:"peakHz"`
	PeakDBFS float64 `json:"peakDbfs"`
}

// GateFeatures applies a simple noise floor so weak signals are ignored.
func GateFeatures(f Features, floor float64) Features {
	if floor <= 0 {
		return f
	}
	gate := func(v float64) float64 {
		if v <= floor {
			return 0
		}
		return clamp((v-floor)/(1.0-floor), 0, 1)
	}

	f.Bass = gate(f.Bass)
	f.Mid = gate(f.Mid)
	f.Treble = gate(f.Treble)
	f.Overall = gate(f.Overall)
	if f.Overall == 0 && f.Bass == 0 && f.Mid == 0 && f.Treble == 0 {
		f.PeakHz = 0
	}
	return f
}
