package dsp

import "github.com/guidoenr/paraeq/internal/analyzer"

// Analyser is a pass-through tap that keeps the most recent mono samples and
// exposes their spectrum. It is rendered every quantum even when nothing
// downstream pulls it.
type Analyser struct {
	node
	an    *analyzer.Analyzer
	ring  []float64
	index int
	frame []float64
	stale bool
}

// NewAnalyser creates a tap with the given FFT size (0 selects 2048).
func (c *Context) NewAnalyser(fftSize int) *Analyser {
	an := analyzer.New(analyzer.Config{SampleRate: c.sampleRate, FFTSize: fftSize})
	a := &Analyser{
		an:    an,
		ring:  make([]float64, an.FFTSize()),
		frame: make([]float64, an.FFTSize()),
	}
	c.register(a, &a.node, "analyser")
	c.markActive(a)
	return a
}

func (a *Analyser) Connect(dst Node) { a.connect(a, dst) }
func (a *Analyser) Disconnect() { a.disconnect(a) }

// BinCount returns the number of magnitude bins.
func (a *Analyser) BinCount() int { return a.an.BinCount() }

// Analyzer exposes the spectrum analyser for feature extraction.
func (a *Analyser) Analyzer() *analyzer.Analyzer { return a.an }

// ByteFrequencyData runs the analysis over the latest samples and writes
// byte magnitudes into dst. It returns the number of bins written.
func (a *Analyser) ByteFrequencyData(dst []uint8) int {
	a.analyse()
	return a.an.Bytes(dst)
}

// FloatFrequencyData is ByteFrequencyData in dBFS.
func (a *Analyser) FloatFrequencyData(dst []float64) int {
	a.analyse()
	return a.an.Decibels(dst)
}

// Features returns band energies of the latest analysis.
func (a *Analyser) Features() analyzer.Features {
	a.analyse()
	return a.an.Features()
}

// Samples returns the ring buffer in chronological order.
func (a *Analyser) Samples() []float64 {
	cp := make([]float64, len(a.ring))
	copy(cp, a.ring[a.index:])
	copy(cp[len(a.ring)-a.index:], a.ring[:a.index])
	return cp
}

// Reset drops sample and smoothing history.
func (a *Analyser) Reset() {
	clear(a.ring)
	a.index = 0
	a.an.Reset()
	a.stale = false
}

func (a *Analyser) analyse() {
	if !a.stale {
		return
	}
	copy(a.frame, a.ring[a.index:])
	copy(a.frame[len(a.ring)-a.index:], a.ring[:a.index])
	a.an.Process(a.frame)
	a.stale = false
}

func (a *Analyser) render(frames int) [][2]float64 {
	in := a.input(frames)
	out := resize(a.out, frames)
	copy(out, in)
	for i := range in {
		a.push((in[i][0] + in[i][1]) / 2)
	}
	a.stale = true
	return out
}

func (a *Analyser) push(v float64) {
	a.ring[a.index] = v
	a.index++
	if a.index == len(a.ring) {
		a.index = 0
	}
}
