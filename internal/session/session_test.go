package session

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/guidoenr/paraeq/internal/control"
	"github.com/guidoenr/paraeq/internal/dsp"
	"github.com/guidoenr/paraeq/internal/eq"
	"github.com/guidoenr/paraeq/internal/preset"
)

const rate = 48000

func tone(seconds float64) *dsp.Buffer {
	buf := &dsp.Buffer{SampleRate: rate, Frames: make([][2]float64, int(seconds*rate))}
	for i := range buf.Frames {
		v := 0.25 * math.Sin(2*math.Pi*1000*float64(i)/rate)
		buf.Frames[i] = [2]float64{v, v}
	}
	return buf
}

type countingRunner struct {
	starts, stops int
	running       bool
}

func (c *countingRunner) Start() { c.starts++; c.running = true }
func (c *countingRunner) Stop()  { c.stops++; c.running = false }

func newSession(v Variant) *Session {
	return New(Config{SampleRate: rate, FFTSize: 256, Variant: v})
}

func renderFrames(s *Session, frames int) {
	s.Render(make([][2]float64, frames))
}

func TestPlayBeforeLoadIsNoop(t *testing.T) {
	s := newSession(Full())
	s.Play()
	if s.State() != Empty {
		t.Fatalf("state=%s want empty", s.State())
	}
	if s.Chain() != nil {
		t.Fatalf("graph should not be built without audio")
	}
}

func TestLoadBuildsGraph(t *testing.T) {
	s := newSession(Full())
	s.AddBand()
	s.LoadBuffer(tone(1), "tone")
	if s.State() != Loaded {
		t.Fatalf("state=%s want loaded", s.State())
	}
	want := []string{"source", "hpf", "lpf", "band0", "volume", "destination"}
	if got := s.Chain(); !reflect.DeepEqual(got, want) {
		t.Fatalf("chain=%v want %v", got, want)
	}
}

func TestTwoBandScenario(t *testing.T) {
	s := newSession(Plugin())
	s.AddBand()
	s.AddBand()
	_ = s.UpdateBand(0, 200, 3, 1)
	_ = s.UpdateBand(1, 5000, -6, 2)
	s.LoadBuffer(tone(1), "tone")
	want := []string{"source", "hpf", "lpf", "band0", "band1", "destination"}
	if got := s.Chain(); !reflect.DeepEqual(got, want) {
		t.Fatalf("chain=%v want %v", got, want)
	}

	if err := s.DeleteBand(0); err != nil {
		t.Fatalf("delete: %v", err)
	}
	bands := s.Bands()
	if len(bands) != 1 || bands[0] != (eq.Band{Frequency: 5000, Gain: -6, Q: 2}) {
		t.Fatalf("bands=%+v", bands)
	}
}

func TestPauseResumeContinuesFromOffset(t *testing.T) {
	s := newSession(Full())
	runner := &countingRunner{}
	s.AttachLoop(runner)
	s.LoadBuffer(tone(1), "tone")

	s.Play()
	if s.State() != Playing || !runner.running {
		t.Fatalf("state=%s running=%v", s.State(), runner.running)
	}
	renderFrames(s, 4800)
	s.Pause()
	if s.State() != Paused || runner.running {
		t.Fatalf("pause: state=%s running=%v", s.State(), runner.running)
	}
	paused := s.Position()
	if paused != 100*time.Millisecond {
		t.Fatalf("paused at %v want 100ms", paused)
	}

	// rendering while paused does not advance
	renderFrames(s, 4800)
	if s.Position() != paused {
		t.Fatalf("position moved while paused: %v", s.Position())
	}

	s.Play()
	renderFrames(s, 4800)
	if got := s.Position(); got != 200*time.Millisecond {
		t.Fatalf("resumed position=%v want 200ms", got)
	}
	if runner.starts != 2 || runner.stops != 1 {
		t.Fatalf("runner starts=%d stops=%d", runner.starts, runner.stops)
	}
}

func TestStopDiscardsAudio(t *testing.T) {
	s := newSession(Full())
	s.LoadBuffer(tone(1), "tone")
	s.Play()
	renderFrames(s, 480)
	s.Stop()
	if s.State() != Empty {
		t.Fatalf("state=%s want empty", s.State())
	}
	if len(s.Chain()) != 0 {
		t.Fatalf("chain should be torn down")
	}
	s.Play()
	if s.State() != Empty {
		t.Fatalf("play after stop must require a reload")
	}
}

func TestSourceEndReturnsToLoaded(t *testing.T) {
	s := newSession(Full())
	var seen []State
	s.OnStateChange(func(st State) { seen = append(seen, st) })
	s.LoadBuffer(tone(0.01), "short")
	s.Play()
	renderFrames(s, 1024)
	if s.State() != Loaded {
		t.Fatalf("state=%s want loaded after the end of the buffer", s.State())
	}
	if s.Position() != 0 {
		t.Fatalf("position=%v want rewound", s.Position())
	}
	s.Play()
	if s.State() != Playing {
		t.Fatalf("replay after end failed: %s", s.State())
	}
	want := []State{Loaded, Playing, Loaded, Playing}
	if !reflect.DeepEqual(seen, want) {
		t.Fatalf("transitions=%v want %v", seen, want)
	}
}

func TestTransportExtensions(t *testing.T) {
	s := newSession(Full())
	s.LoadBuffer(tone(12), "long")
	if err := s.FastForward(); err != nil {
		t.Fatalf("forward: %v", err)
	}
	if s.Position() != 10*time.Second {
		t.Fatalf("position=%v want 10s", s.Position())
	}
	_ = s.FastForward()
	if s.Position() != 12*time.Second {
		t.Fatalf("position=%v want clamped to 12s", s.Position())
	}
	s.Play()
	if err := s.Rewind(); err != nil {
		t.Fatalf("rewind: %v", err)
	}
	if s.Position() != 0 {
		t.Fatalf("position=%v want 0", s.Position())
	}

	plugin := newSession(Plugin())
	plugin.LoadBuffer(tone(1), "tone")
	if err := plugin.Rewind(); !errors.Is(err, ErrTransportDisabled) {
		t.Fatalf("expected ErrTransportDisabled, got %v", err)
	}
	if err := plugin.SetVolume(0.5); !errors.Is(err, control.ErrUnknownControl) {
		t.Fatalf("expected no volume control in plugin variant, got %v", err)
	}
}

func TestFrameSnapshot(t *testing.T) {
	s := newSession(Full())
	s.AddBand()
	s.LoadBuffer(tone(1), "tone")
	s.Play()
	renderFrames(s, 512)
	f := s.Frame()
	if len(f.Bins) != 128 {
		t.Fatalf("bins=%d want 128", len(f.Bins))
	}
	if len(f.Bands) != 1 || f.Limits.MaxFrequency != 20000 {
		t.Fatalf("frame=%+v", f)
	}
	var loud bool
	for _, b := range f.Bins {
		if b > 0 {
			loud = true
		}
	}
	if !loud {
		t.Fatalf("expected spectrum energy while playing")
	}
}

func TestPresetRoundTrip(t *testing.T) {
	s := newSession(Full())
	s.ApplyPreset(preset.Preset{
		Bands:    []eq.Band{{Frequency: 100, Gain: 2, Q: 1}, {Frequency: 99999, Gain: 3, Q: 1}},
		HighPass: 60,
		LowPass:  15000,
		Volume:   0.5,
	})
	p := s.Preset()
	if len(p.Bands) != 2 || p.Bands[1].Frequency != 20000 {
		t.Fatalf("bands=%+v", p.Bands)
	}
	if p.HighPass != 60 || p.LowPass != 15000 || p.Volume != 0.5 {
		t.Fatalf("preset=%+v", p)
	}
	snap := s.Snapshot()
	if snap.Controls.HighPass.Range != 60 || len(snap.Controls.Bands) != 2 {
		t.Fatalf("controls not synced: %+v", snap.Controls)
	}
}

func TestInputRoutesThroughPanel(t *testing.T) {
	s := newSession(Full())
	s.AddBand()
	if err := s.Input(control.BandControlName(0, control.Gain), control.Number, 12); err != nil {
		t.Fatalf("input: %v", err)
	}
	if got := s.Bands()[0].Gain; got != 12 {
		t.Fatalf("gain=%f want 12", got)
	}
	if err := s.SetHighPass(90); err != nil {
		t.Fatalf("hpf: %v", err)
	}
	if got := s.Preset().HighPass; got != 90 {
		t.Fatalf("hpf=%f want 90", got)
	}
}
