// Package graph keeps the live filter chain in step with the band list.
//
// Topology: source → hpf → lpf → band0 … bandN-1 → {tap, [volume →] sink}.
package graph

import (
	"fmt"
	"log"
	"slices"

	"github.com/guidoenr/paraeq/internal/dsp"
	"github.com/guidoenr/paraeq/internal/eq"
	"github.com/guidoenr/paraeq/internal/params"
)

// Options selects optional stages.
type Options struct {
	// VolumeStage inserts a gain node between the last band and the sink.
	VolumeStage bool
	FFTSize     int
	Log         *log.Logger
}

// Manager owns every filter-stage handle. Handles never leave the package.
type Manager struct {
	ctx    *dsp.Context
	limits params.Parameters
	log    *log.Logger

	source *dsp.BufferSource
	hpf    *dsp.Biquad
	lpf    *dsp.Biquad
	stages []*dsp.Biquad
	volume *dsp.Gain
	tap    *dsp.Analyser
}

// New builds the fixed stages on ctx. No source is attached yet, so nothing
// is connected.
func New(ctx *dsp.Context, limits params.Parameters, opts Options) *Manager {
	m := &Manager{
		ctx:    ctx,
		limits: limits,
		log:    opts.Log,
	}
	m.hpf = ctx.NewBiquad(dsp.HighPass)
	m.hpf.SetLabel("hpf")
	m.hpf.SetParams(limits.DefaultHighPass, 0, limits.PassQ)

	m.lpf = ctx.NewBiquad(dsp.LowPass)
	m.lpf.SetLabel("lpf")
	m.lpf.SetParams(limits.DefaultLowPass, 0, limits.PassQ)

	if opts.VolumeStage {
		m.volume = ctx.NewGain()
		m.volume.SetLabel("volume")
		m.volume.SetGain(limits.DefaultVolume)
	}

	m.tap = ctx.NewAnalyser(opts.FFTSize)
	m.tap.SetLabel("tap")
	return m
}

// Tap returns the analysis tap.
func (m *Manager) Tap() *dsp.Analyser { return m.tap }

// HasSource reports whether audio is attached.
func (m *Manager) HasSource() bool { return m.source != nil }

// Len returns the number of band stages.
func (m *Manager) Len() int { return len(m.stages) }

// AttachSource swaps in src as the chain head and rebuilds.
func (m *Manager) AttachSource(src *dsp.BufferSource) {
	if m.source != nil && m.source != src {
		m.ctx.Release(m.source)
	}
	m.source = src
	if src != nil {
		src.SetLabel("source")
	}
	m.RebuildChain()
}

// DetachSource drops the source and leaves every node disconnected.
func (m *Manager) DetachSource() {
	if m.source == nil {
		return
	}
	m.disconnectAll()
	m.ctx.Release(m.source)
	m.source = nil
}

// RebuildChain disconnects every node and reconnects the series chain. It is
// a no-op until a source exists.
func (m *Manager) RebuildChain() {
	if m.source == nil {
		return
	}
	m.disconnectAll()

	m.source.Connect(m.hpf)
	m.hpf.Connect(m.lpf)
	var last dsp.Node = m.lpf
	for _, st := range m.stages {
		last.Connect(st)
		last = st
	}
	last.Connect(m.tap)
	if m.volume != nil {
		last.Connect(m.volume)
		m.volume.Connect(m.ctx.Destination())
	} else {
		last.Connect(m.ctx.Destination())
	}
	m.logf("chain rebuilt: %d band stages", len(m.stages))
}

// SetStageParameters pushes values onto a live band stage. Unknown indices
// are skipped.
func (m *Manager) SetStageParameters(index int, frequency, gain, q float64) {
	if index < 0 || index >= len(m.stages) {
		return
	}
	m.stages[index].SetParams(frequency, gain, q)
}

// SetHighPass sets the high-pass cutoff, clamped to the frequency range.
func (m *Manager) SetHighPass(hz float64) float64 {
	hz = m.limits.ClampFrequency(hz)
	m.hpf.SetFrequency(hz)
	return hz
}

// SetLowPass sets the low-pass cutoff, clamped to the frequency range.
func (m *Manager) SetLowPass(hz float64) float64 {
	hz = m.limits.ClampFrequency(hz)
	m.lpf.SetFrequency(hz)
	return hz
}

// HighPass returns the current high-pass cutoff.
func (m *Manager) HighPass() float64 { return m.hpf.Frequency() }

// LowPass returns the current low-pass cutoff.
func (m *Manager) LowPass() float64 { return m.lpf.Frequency() }

// SetVolume sets the linear output gain. It is skipped without a volume stage.
func (m *Manager) SetVolume(v float64) float64 {
	if m.volume == nil {
		return 1
	}
	v = m.limits.ClampVolume(v)
	m.volume.SetGain(v)
	return v
}

// Volume returns the output gain (1 without a volume stage).
func (m *Manager) Volume() float64 {
	if m.volume == nil {
		return 1
	}
	return m.volume.Value()
}

// HasVolume reports whether the volume stage is present.
func (m *Manager) HasVolume() bool { return m.volume != nil }

// StageParameters returns the values a band stage currently runs with.
func (m *Manager) StageParameters(index int) (eq.Band, bool) {
	if index < 0 || index >= len(m.stages) {
		return eq.Band{}, false
	}
	st := m.stages[index]
	return eq.Band{Frequency: st.Frequency(), Gain: st.Gain(), Q: st.Q()}, true
}

// Connections returns the live edge set.
func (m *Manager) Connections() []dsp.Edge {
	return m.ctx.Connections()
}

// Chain walks the main path from the source and returns the node labels in
// order, ending with the sink. Empty without a source.
func (m *Manager) Chain() []string {
	if m.source == nil {
		return nil
	}
	chain := []string{m.source.Label(), m.hpf.Label(), m.lpf.Label()}
	for _, st := range m.stages {
		chain = append(chain, st.Label())
	}
	if m.volume != nil {
		chain = append(chain, m.volume.Label())
	}
	return append(chain, m.ctx.Destination().Label())
}

// BandAdded creates a peaking stage for the new band and rewires.
func (m *Manager) BandAdded(index int, b eq.Band) {
	st := m.ctx.NewBiquad(dsp.Peaking)
	st.SetParams(b.Frequency, b.Gain, b.Q)
	if index < 0 || index > len(m.stages) {
		index = len(m.stages)
	}
	m.stages = slices.Insert(m.stages, index, st)
	m.relabel()
	m.RebuildChain()
}

// BandRemoved drops the stage at index and rewires.
func (m *Manager) BandRemoved(index int) {
	if index < 0 || index >= len(m.stages) {
		return
	}
	st := m.stages[index]
	m.stages = slices.Delete(m.stages, index, index+1)
	m.ctx.Release(st)
	m.relabel()
	m.RebuildChain()
}

// BandUpdated pushes new parameters without touching topology.
func (m *Manager) BandUpdated(index int, b eq.Band) {
	m.SetStageParameters(index, b.Frequency, b.Gain, b.Q)
}

func (m *Manager) relabel() {
	for i, st := range m.stages {
		st.SetLabel(fmt.Sprintf("band%d", i))
	}
}

func (m *Manager) disconnectAll() {
	if m.source != nil {
		m.source.Disconnect()
	}
	m.hpf.Disconnect()
	m.lpf.Disconnect()
	for _, st := range m.stages {
		st.Disconnect()
	}
	m.tap.Disconnect()
	if m.volume != nil {
		m.volume.Disconnect()
	}
}

func (m *Manager) logf(format string, args ...any) {
	if m.log == nil {
		return
	}
	m.log.Printf(format, args...)
}
