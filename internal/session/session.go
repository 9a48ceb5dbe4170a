// Package session owns one running equalizer: the band store, the filter
// graph, the control panel, the loaded audio and the transport. A single
// mutex serialises UI calls, audio rendering and frame snapshots.
package session

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/guidoenr/paraeq/internal/analyzer"
	"github.com/guidoenr/paraeq/internal/audio"
	"github.com/guidoenr/paraeq/internal/control"
	"github.com/guidoenr/paraeq/internal/dsp"
	"github.com/guidoenr/paraeq/internal/eq"
	"github.com/guidoenr/paraeq/internal/graph"
	"github.com/guidoenr/paraeq/internal/params"
	"github.com/guidoenr/paraeq/internal/preset"
	"github.com/guidoenr/paraeq/internal/render"
)

// ErrTransportDisabled is returned by Rewind and FastForward when the
// variant has no transport extensions.
var ErrTransportDisabled = errors.New("transport extensions disabled")

// SkipInterval is how far FastForward jumps.
const SkipInterval = 10 * time.Second

// State is the playback state.
type State int

const (
	Empty State = iota
	Loaded
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Loaded:
		return "loaded"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "empty"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Variant selects optional features.
type Variant struct {
	Volume    bool `json:"volume"`
	Transport bool `json:"transport"`
	ZeroLine  bool `json:"zeroLine"`
}

// Full enables everything.
func Full() Variant { return Variant{Volume: true, Transport: true, ZeroLine: true} }

// Plugin is the trimmed variant: no volume stage, no rewind or
// fast-forward, no zero-line overlay.
func Plugin() Variant { return Variant{} }

// Runner is a frame loop the session starts on play and stops otherwise.
// Start and Stop must not block on the session.
type Runner interface {
	Start()
	Stop()
}

// Config configures a Session.
type Config struct {
	SampleRate float64
	FFTSize    int
	Variant    Variant
	Limits     params.Parameters
	Log        *log.Logger
}

// Session is safe for concurrent use.
type Session struct {
	mu  sync.Mutex
	cfg Config
	log *log.Logger

	ctx   *dsp.Context
	store *eq.Store
	graph *graph.Manager
	panel *control.Panel

	buffer *dsp.Buffer
	name   string
	source *dsp.BufferSource
	// used is set once source has been started; sources are one-shot.
	used   bool
	offset time.Duration
	state  State

	runners   []Runner
	listeners []func(State)
	bins      []uint8
}

// New builds an empty session.
func New(cfg Config) *Session {
	if cfg.Limits == (params.Parameters{}) {
		cfg.Limits = params.Defaults()
	}
	ctx := dsp.NewContext(cfg.SampleRate)
	cfg.SampleRate = ctx.SampleRate()

	store := eq.NewStore(cfg.Limits)
	g := graph.New(ctx, cfg.Limits, graph.Options{
		VolumeStage: cfg.Variant.Volume,
		FFTSize:     cfg.FFTSize,
		Log:         cfg.Log,
	})
	store.Subscribe(g)
	panel := control.NewPanel(store, g, cfg.Variant.Volume)

	return &Session{
		cfg:   cfg,
		log:   cfg.Log,
		ctx:   ctx,
		store: store,
		graph: g,
		panel: panel,
		bins:  make([]uint8, g.Tap().BinCount()),
	}
}

// SampleRate returns the engine rate.
func (s *Session) SampleRate() float64 { return s.cfg.SampleRate }

// Variant returns the enabled features.
func (s *Session) Variant() Variant { return s.cfg.Variant }

// Style returns the renderer style matching the variant.
func (s *Session) Style(theme string) render.Style {
	style := render.DefaultStyle()
	style.Theme = render.Palette(theme)
	style.ZeroLine = s.cfg.Variant.ZeroLine
	return style
}

// AttachLoop registers a frame loop driven by playback state.
func (s *Session) AttachLoop(r Runner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runners = append(s.runners, r)
	if s.state == Playing {
		r.Start()
	}
}

// OnStateChange registers fn, called with the lock held after every
// transition. fn must not call back into the session.
func (s *Session) OnStateChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// State returns the playback state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LoadFile decodes path and loads it. On failure the previous state is kept.
func (s *Session) LoadFile(path string) error {
	buf, err := audio.DecodeFile(path, s.cfg.SampleRate)
	if err != nil {
		return err
	}
	s.LoadBuffer(buf, path)
	return nil
}

// LoadReader decodes r, using name to pick the format.
func (s *Session) LoadReader(r io.Reader, name string) error {
	buf, err := audio.Decode(r, name, s.cfg.SampleRate)
	if err != nil {
		return err
	}
	s.LoadBuffer(buf, name)
	return nil
}

// LoadBuffer replaces any loaded audio with buf and builds the graph.
func (s *Session) LoadBuffer(buf *dsp.Buffer, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discardSource()
	s.buffer = buf
	s.name = name
	s.offset = 0
	s.freshSource()
	s.logf("loaded %q (%s)", name, buf.Duration().Round(time.Millisecond))
	s.setState(Loaded)
}

// Play starts or resumes playback. Without audio it does nothing.
func (s *Session) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.play()
}

// Pause stops the source and remembers where it was.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pause()
}

// TogglePlay pauses while playing and plays otherwise.
func (s *Session) TogglePlay() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Playing {
		s.pause()
		return
	}
	s.play()
}

func (s *Session) play() {
	if s.buffer == nil || s.state == Playing {
		return
	}
	if s.source == nil || s.used {
		s.freshSource()
	}
	if err := s.source.Start(s.offset); err != nil {
		s.logf("start source: %v", err)
		return
	}
	s.used = true
	s.setState(Playing)
}

func (s *Session) pause() {
	if s.state != Playing {
		return
	}
	s.offset = s.source.Position()
	s.source.Stop()
	s.setState(Paused)
}

// Stop discards the source and the buffer; audio must be loaded again.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Empty {
		return
	}
	s.discardSource()
	s.buffer = nil
	s.name = ""
	s.offset = 0
	s.graph.Tap().Reset()
	s.setState(Empty)
}

// Rewind seeks to the start.
func (s *Session) Rewind() error {
	return s.seek(func(time.Duration) time.Duration { return 0 })
}

// FastForward skips ahead, stopping at the end of the buffer.
func (s *Session) FastForward() error {
	return s.seek(func(pos time.Duration) time.Duration { return pos + SkipInterval })
}

func (s *Session) seek(to func(time.Duration) time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Variant.Transport {
		return ErrTransportDisabled
	}
	if s.buffer == nil {
		return nil
	}
	target := to(s.position())
	if d := s.buffer.Duration(); target > d {
		target = d
	}
	if target < 0 {
		target = 0
	}
	if s.state == Playing {
		s.source.Seek(target)
		return nil
	}
	s.offset = target
	return nil
}

// Position returns the playback offset.
func (s *Session) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position()
}

func (s *Session) position() time.Duration {
	if s.state == Playing && s.source != nil {
		return s.source.Position()
	}
	return s.offset
}

// Render is the audio callback. It fills out and handles the source running
// off the end of the buffer.
func (s *Session) Render(out [][2]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx.Render(out)
	if s.state == Playing && s.source != nil && s.source.Ended() {
		s.offset = 0
		s.setState(Loaded)
	}
}

// AddBand appends a default band and returns its index.
func (s *Session) AddBand() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.AddBand()
}

// DeleteBand removes band i.
func (s *Session) DeleteBand(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.DeleteBand(i)
}

// UpdateBand sets all three band parameters, clamped.
func (s *Session) UpdateBand(i int, frequency, gain, q float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.UpdateBand(i, frequency, gain, q)
}

// Bands returns a copy of the band list.
func (s *Session) Bands() []eq.Band {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Bands()
}

// Input forwards one control event to the panel.
func (s *Session) Input(name string, side control.Side, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.panel.Input(name, side, value)
}

// SetHighPass moves the high-pass cutoff.
func (s *Session) SetHighPass(hz float64) error {
	return s.Input(control.HighPassName, control.Range, hz)
}

// SetLowPass moves the low-pass cutoff.
func (s *Session) SetLowPass(hz float64) error {
	return s.Input(control.LowPassName, control.Range, hz)
}

// SetVolume sets the output gain; it fails without a volume stage.
func (s *Session) SetVolume(v float64) error {
	return s.Input(control.VolumeName, control.Range, v)
}

// Frame snapshots what the spectrum view needs.
func (s *Session) Frame() render.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.graph.Tap().ByteFrequencyData(s.bins)
	bins := make([]uint8, n)
	copy(bins, s.bins[:n])
	return render.Frame{
		Bins:   bins,
		Bands:  s.store.Bands(),
		Limits: s.cfg.Limits,
	}
}

// Features returns band energies from the analysis tap.
func (s *Session) Features() analyzer.Features {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Tap().Features()
}

// Snapshot is the full observable state.
type Snapshot struct {
	State    State         `json:"state"`
	Name     string        `json:"name,omitempty"`
	Position float64       `json:"position"`
	Duration float64       `json:"duration"`
	Bands    []eq.Band     `json:"bands"`
	Controls control.State `json:"controls"`
	Chain    []string      `json:"chain"`
	Variant  Variant       `json:"variant"`
	Limits   Limits        `json:"limits"`
}

// Limits are the control ranges UIs need.
type Limits struct {
	MinFrequency float64 `json:"minFrequency"`
	MaxFrequency float64 `json:"maxFrequency"`
	MinGain      float64 `json:"minGain"`
	MaxGain      float64 `json:"maxGain"`
	MinQ         float64 `json:"minQ"`
	MaxQ         float64 `json:"maxQ"`
	MaxVolume    float64 `json:"maxVolume"`
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.cfg.Limits
	return Snapshot{
		State:    s.state,
		Name:     s.name,
		Position: s.position().Seconds(),
		Duration: s.buffer.Duration().Seconds(),
		Bands:    s.store.Bands(),
		Controls: s.panel.State(),
		Chain:    s.graph.Chain(),
		Variant:  s.cfg.Variant,
		Limits: Limits{
			MinFrequency: l.MinFrequency,
			MaxFrequency: l.MaxFrequency,
			MinGain:      l.MinGain,
			MaxGain:      l.MaxGain,
			MinQ:         l.MinQ,
			MaxQ:         l.MaxQ,
			MaxVolume:    l.MaxVolume,
		},
	}
}

// Preset captures the EQ state.
func (s *Session) Preset() preset.Preset {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := preset.Preset{
		Bands:    s.store.Bands(),
		HighPass: s.graph.HighPass(),
		LowPass:  s.graph.LowPass(),
	}
	if s.cfg.Variant.Volume {
		p.Volume = s.graph.Volume()
	}
	return p
}

// ApplyPreset replaces the EQ state. Values are clamped like any other
// input.
func (s *Session) ApplyPreset(p preset.Preset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Reset(p.Bands)
	if p.HighPass > 0 {
		s.graph.SetHighPass(p.HighPass)
	}
	if p.LowPass > 0 {
		s.graph.SetLowPass(p.LowPass)
	}
	if s.cfg.Variant.Volume && p.Volume > 0 {
		s.graph.SetVolume(p.Volume)
	}
	s.panel.Sync()
	s.logf("preset applied: %d bands", len(p.Bands))
}

// Chain returns the live node order, empty until audio is loaded.
func (s *Session) Chain() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Chain()
}

// freshSource builds an idle source over the retained buffer and rewires.
func (s *Session) freshSource() {
	src := s.ctx.NewBufferSource(s.buffer)
	s.graph.AttachSource(src)
	s.source = src
	s.used = false
}

func (s *Session) discardSource() {
	if s.source == nil {
		return
	}
	s.source.Stop()
	s.graph.DetachSource()
	s.source = nil
	s.used = false
}

func (s *Session) setState(next State) {
	prev := s.state
	s.state = next
	if prev == next {
		return
	}
	for _, r := range s.runners {
		if next == Playing {
			r.Start()
		} else {
			r.Stop()
		}
	}
	for _, fn := range s.listeners {
		fn(next)
	}
	s.logf("state %s -> %s", prev, next)
}

func (s *Session) logf(format string, args ...any) {
	if s.log == nil {
		return
	}
	s.log.Printf(format, args...)
}

// String renders a one-line status.
func (s *Session) String() string {
	snap := s.Snapshot()
	return fmt.Sprintf("%s %.1f/%.1fs bands=%d", snap.State, snap.Position, snap.Duration, len(snap.Bands))
}
