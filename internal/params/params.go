package params

// Parameters holds the declared ranges and defaults for every EQ control.
type Parameters struct {
	DefaultFrequency float64
	DefaultGain      float64
	DefaultQ         float64
	MinFrequency     float64
	MaxFrequency     float64
	MinGain          float64
	MaxGain          float64
	MinQ             float64
	MaxQ             float64

	// Fixed stages.
	DefaultHighPass float64
	DefaultLowPass  float64
	PassQ           float64

	DefaultVolume float64
	MaxVolume     float64
}

// Defaults returns the ranges used by the equalizer UI.
func Defaults() Parameters {
	return Parameters{
		DefaultFrequency: 1000,
		DefaultGain:      0,
		DefaultQ:         1,
		MinFrequency:     20,
		MaxFrequency:     20000,
		MinGain:          -40,
		MaxGain:          40,
		MinQ:             0.1,
		MaxQ:             10,
		DefaultHighPass:  20,
		DefaultLowPass:   20000,
		PassQ:            0.7071,
		DefaultVolume:    1,
		MaxVolume:        2,
	}
}

// ClampFrequency limits hz to the declared frequency range.
func (p Parameters) ClampFrequency(hz float64) float64 {
	return clamp(hz, p.MinFrequency, p.MaxFrequency)
}

// ClampGain limits db to the declared gain range.
func (p Parameters) ClampGain(db float64) float64 {
	return clamp(db, p.MinGain, p.MaxGain)
}

// ClampQ limits q to the declared Q range.
func (p Parameters) ClampQ(q float64) float64 {
	return clamp(q, p.MinQ, p.MaxQ)
}

// ClampVolume limits v to [0, MaxVolume].
func (p Parameters) ClampVolume(v float64) float64 {
	return clamp(v, 0, p.MaxVolume)
}

// Clamp is the shared range helper; NaN collapses to minVal.
func Clamp(v, minVal, maxVal float64) float64 {
	return clamp(v, minVal, maxVal)
}

func clamp(v, minVal, maxVal float64) float64 {
	if v != v {
		return minVal
	}
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
