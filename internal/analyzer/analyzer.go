package analyzer

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

const (
	DefaultFFTSize   = 2048
	DefaultSmoothing = 0.8
	DefaultMinDB     = -100.0
	DefaultMaxDB     = -30.0
)

// Config controls Analyzer behavior.
type Config struct {
	SampleRate float64
	FFTSize    int
	// Smoothing blends each frame with the previous one, in (0, 1).
	Smoothing float64
	MinDB     float64
	MaxDB     float64
}

// Analyzer turns a block of time-domain samples into a smoothed magnitude
// spectrum of FFTSize/2 bins, the same shape a browser analyser node exposes.
type Analyzer struct {
	sampleRate float64
	fftSize    int
	smoothing  float64
	minDB      float64
	maxDB      float64

	window   []float64
	frame    []float64
	smoothed []float64

	bassPeak   float64
	midPeak    float64
	treblePeak float64
}

// New creates an Analyzer with analyser-node defaults for zero fields.
func New(cfg Config) *Analyzer {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44_100
	}
	if cfg.FFTSize <= 0 {
		cfg.FFTSize = DefaultFFTSize
	}
	cfg.FFTSize = nextPow2(cfg.FFTSize)
	if cfg.FFTSize < 32 {
		cfg.FFTSize = 32
	}
	if cfg.Smoothing <= 0 || cfg.Smoothing >= 1 {
		cfg.Smoothing = DefaultSmoothing
	}
	if cfg.MinDB == 0 && cfg.MaxDB == 0 {
		cfg.MinDB = DefaultMinDB
		cfg.MaxDB = DefaultMaxDB
	}
	if cfg.MaxDB <= cfg.MinDB {
		cfg.MaxDB = cfg.MinDB + 1
	}
	return &Analyzer{
		sampleRate: cfg.SampleRate,
		fftSize:    cfg.FFTSize,
		smoothing:  cfg.Smoothing,
		minDB:      cfg.MinDB,
		maxDB:      cfg.MaxDB,
		window:     window.Blackman(cfg.FFTSize),
		frame:      make([]float64, cfg.FFTSize),
		smoothed:   make([]float64, cfg.FFTSize/2),
	}
}

// FFTSize returns the transform length.
func (a *Analyzer) FFTSize() int { return a.fftSize }

// BinCount returns the number of magnitude bins (FFTSize/2).
func (a *Analyzer) BinCount() int { return a.fftSize / 2 }

// SampleRate returns the rate used to map bins to Hz.
func (a *Analyzer) SampleRate() float64 { return a.sampleRate }

// BinFrequency returns the centre frequency of bin i.
func (a *Analyzer) BinFrequency(i int) float64 {
	return float64(i) * a.sampleRate / float64(a.fftSize)
}

// Process windows the most recent FFTSize samples, transforms them and
// folds the magnitudes into the smoothed spectrum. Short input is
// zero-padded at the front.
func (a *Analyzer) Process(samples []float64) {
	size := a.fftSize
	frame := a.frame
	clear(frame)
	if len(samples) > size {
		samples = samples[len(samples)-size:]
	}
	offset := size - len(samples)
	for i, s := range samples {
		frame[offset+i] = s * a.window[offset+i]
	}

	spectrum := fft.FFTReal(frame)
	scale := 1.0 / float64(size)
	for i := range a.smoothed {
		mag := cmag(spectrum[i]) * scale
		a.smoothed[i] = a.smoothing*a.smoothed[i] + (1-a.smoothing)*mag
	}
}

// Decibels writes the smoothed spectrum in dBFS into dst.
func (a *Analyzer) Decibels(dst []float64) int {
	n := min(len(dst), len(a.smoothed))
	for i := 0; i < n; i++ {
		dst[i] = toDB(a.smoothed[i])
	}
	return n
}

// Bytes maps the smoothed spectrum onto 0..255 between MinDB and MaxDB.
func (a *Analyzer) Bytes(dst []uint8) int {
	n := min(len(dst), len(a.smoothed))
	span := a.maxDB - a.minDB
	for i := 0; i < n; i++ {
		db := toDB(a.smoothed[i])
		scaled := 255 * (db - a.minDB) / span
		dst[i] = uint8(clamp(scaled, 0, 255))
	}
	return n
}

// Features summarises the current spectrum into bass/mid/treble energy.
func (a *Analyzer) Features() Features {
	resolution := a.sampleRate / float64(a.fftSize)
	bass := a.bandEnergy(resolution, 20, 250)
	mid := a.bandEnergy(resolution, 250, 2000)
	treble := a.bandEnergy(resolution, 2000, 8000)

	a.bassPeak = envelope(a.bassPeak, bass, 0.94, 0.75)
	a.midPeak = envelope(a.midPeak, mid, 0.94, 0.78)
	a.treblePeak = envelope(a.treblePeak, treble, 0.94, 0.8)

	peakBin := 0
	for i := 1; i < len(a.smoothed); i++ {
		if a.smoothed[i] > a.smoothed[peakBin] {
			peakBin = i
		}
	}
	return Features{
		Bass:     a.bassPeak,
		Mid:      a.midPeak,
		Treble:   a.treblePeak,
		Overall:  (a.bassPeak + a.midPeak + a.treblePeak) / 3,
		PeakHz:   a.BinFrequency(peakBin),
		PeakDBFS: toDB(a.smoothed[peakBin]),
	}
}

// Reset clears the smoothing history.
func (a *Analyzer) Reset() {
	clear(a.smoothed)
	a.bassPeak, a.midPeak, a.treblePeak = 0, 0, 0
}

// bandEnergy maps the mean level of [minHz, maxHz) onto 0..1 using the
// analyser dB range.
func (a *Analyzer) bandEnergy(resolution, minHz, maxHz float64) float64 {
	if minHz >= maxHz {
		return 0
	}
	lo := int(math.Floor(minHz / resolution))
	hi := int(math.Ceil(maxHz/resolution)) + 1
	if hi > len(a.smoothed) {
		hi = len(a.smoothed)
	}
	if lo >= hi {
		return 0
	}
	sum := 0.0
	for _, v := range a.smoothed[lo:hi] {
		sum += v
	}
	db := toDB(sum / float64(hi-lo))
	return clamp((db-a.minDB)/(a.maxDB-a.minDB), 0, 1)
}

func toDB(mag float64) float64 {
	if mag <= 1e-12 {
		return -240
	}
	return 20 * math.Log10(mag)
}

func cmag(c complex128) float64 {
	return math.Sqrt(real(c)*real(c) + imag(c)*imag(c))
}

func envelope(current, input, attack, release float64) float64 {
	if input > current {
		return current*attack + input*(1-attack)
	}
	return current*release + input*(1-release)
}

func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return n + 1
}

func clamp(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
