package dsp

import (
	"math"
	"math/cmplx"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

// FilterType selects the biquad response.
type FilterType int

const (
	HighPass FilterType = iota
	LowPass
	Peaking
)

func (t FilterType) String() string {
	switch t {
	case HighPass:
		return "highpass"
	case LowPass:
		return "lowpass"
	default:
		return "peaking"
	}
}

// Coefficients are normalised biquad coefficients (a0 == 1).
type Coefficients = biquad.Coefficients

// minQ keeps the designers away from their non-positive Q fallback.
const minQ = 1e-4

// Design computes RBJ cookbook coefficients. freq is clamped into
// (0, nyquist) and q to a small positive minimum.
func Design(t FilterType, sampleRate, freq, gainDB, q float64) Coefficients {
	nyquist := sampleRate / 2
	if freq <= 0 {
		freq = 1
	}
	if freq >= nyquist {
		freq = nyquist * 0.999
	}
	if q < minQ {
		q = minQ
	}
	switch t {
	case HighPass:
		return design.Highpass(freq, q, sampleRate)
	case LowPass:
		return design.Lowpass(freq, q, sampleRate)
	default:
		return design.Peak(freq, gainDB, q, sampleRate)
	}
}

// MagnitudeDB evaluates the response of c at freq.
func MagnitudeDB(c Coefficients, sampleRate, freq float64) float64 {
	mag := cmplx.Abs(c.Response(freq, sampleRate))
	if mag <= 0 {
		return -math.MaxFloat64
	}
	return 20 * math.Log10(mag)
}

// Biquad is a second-order filter node with per-channel state.
type Biquad struct {
	node
	typ       FilterType
	frequency float64
	gain      float64
	q         float64
	coeff     Coefficients
	// one section per channel; coefficient changes keep the delay state
	sections [2]*biquad.Section
}

// NewBiquad creates a filter of type t with a flat 1 kHz / Q 1 setting.
func (c *Context) NewBiquad(t FilterType) *Biquad {
	b := &Biquad{typ: t, frequency: 1000, q: 1}
	b.sections = [2]*biquad.Section{biquad.NewSection(Coefficients{}), biquad.NewSection(Coefficients{})}
	c.register(b, &b.node, t.String())
	b.update()
	return b
}

func (b *Biquad) Connect(dst Node) { b.connect(b, dst) }
func (b *Biquad) Disconnect() { b.disconnect(b) }

// SetParams replaces frequency, gain and Q and recomputes coefficients.
// Gain is ignored by the pass types.
func (b *Biquad) SetParams(frequency, gainDB, q float64) {
	b.frequency = frequency
	b.gain = gainDB
	b.q = q
	b.update()
}

// SetFrequency changes only the cutoff/centre frequency.
func (b *Biquad) SetFrequency(frequency float64) {
	b.frequency = frequency
	b.update()
}

func (b *Biquad) Type() FilterType { return b.typ }
func (b *Biquad) Frequency() float64 { return b.frequency }
func (b *Biquad) Gain() float64 { return b.gain }
func (b *Biquad) Q() float64 { return b.q }
func (b *Biquad) Coefficients() Coefficients { return b.coeff }

// MagnitudeDB is the current response of the stage at freq.
func (b *Biquad) MagnitudeDB(freq float64) float64 {
	return MagnitudeDB(b.coeff, b.ctx.sampleRate, freq)
}

// Reset clears the delay lines.
func (b *Biquad) Reset() {
	for _, sec := range b.sections {
		sec.Reset()
	}
}

func (b *Biquad) update() {
	b.coeff = Design(b.typ, b.ctx.sampleRate, b.frequency, b.gain, b.q)
	for _, sec := range b.sections {
		sec.Coefficients = b.coeff
	}
}

func (b *Biquad) render(frames int) [][2]float64 {
	in := b.input(frames)
	out := resize(b.out, frames)
	for ch, sec := range b.sections {
		for i := range in {
			out[i][ch] = sec.ProcessSample(in[i][ch])
		}
	}
	return out
}
