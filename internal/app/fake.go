package app

import (
	"math"
	"math/rand"

	"github.com/guidoenr/paraeq/internal/dsp"
)

// Tone frequencies of the demo signal.
const (
	demoBassHz   = 80.0
	demoMidHz    = 880.0
	demoTrebleHz = 6000.0
)

type fakeGenerator struct {
	rng        *rand.Rand
	rate       float64
	phaseBass  float64
	phaseMid   float64
	phaseHigh  float64
	phaseSwell float64
}

func newFakeGenerator(rate float64, seed int64) *fakeGenerator {
	return &fakeGenerator{
		rng:  rand.New(rand.NewSource(seed)),
		rate: rate,
	}
}

// Next returns one stereo frame: three tones whose levels swell at
// different speeds, plus a little noise.
func (f *fakeGenerator) Next() [2]float64 {
	dt := 1 / f.rate
	f.phaseBass += 2 * math.Pi * demoBassHz * dt
	f.phaseMid += 2 * math.Pi * demoMidHz * dt
	f.phaseHigh += 2 * math.Pi * demoTrebleHz * dt
	f.phaseSwell += dt

	bass := 0.5 + 0.5*math.Sin(f.phaseSwell*0.7)
	mid := 0.4 + 0.4*math.Sin(f.phaseSwell*1.2+0.5)
	treble := 0.3 + 0.3*math.Sin(f.phaseSwell*2.1+1.0)

	v := 0.3*bass*math.Sin(f.phaseBass) +
		0.2*mid*math.Sin(f.phaseMid) +
		0.1*treble*math.Sin(f.phaseHigh) +
		0.02*(f.rng.Float64()*2-1)
	v = clampSample(v)
	return [2]float64{v, v}
}

// DemoBuffer synthesises seconds of the demo signal at rate.
func DemoBuffer(rate, seconds float64, seed int64) *dsp.Buffer {
	if rate <= 0 {
		rate = dsp.DefaultSampleRate
	}
	gen := newFakeGenerator(rate, seed)
	buf := &dsp.Buffer{SampleRate: rate, Frames: make([][2]float64, int(seconds*rate))}
	for i := range buf.Frames {
		buf.Frames[i] = gen.Next()
	}
	return buf
}

func clampSample(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
