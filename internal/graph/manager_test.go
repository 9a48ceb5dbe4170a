package graph

import (
	"reflect"
	"testing"

	"github.com/guidoenr/paraeq/internal/dsp"
	"github.com/guidoenr/paraeq/internal/eq"
	"github.com/guidoenr/paraeq/internal/params"
)

func setup(t *testing.T, opts Options) (*eq.Store, *Manager, *dsp.Context) {
	t.Helper()
	ctx := dsp.NewContext(48000)
	limits := params.Defaults()
	store := eq.NewStore(limits)
	m := New(ctx, limits, opts)
	store.Subscribe(m)
	return store, m, ctx
}

func attach(m *Manager, ctx *dsp.Context) *dsp.BufferSource {
	buf := &dsp.Buffer{SampleRate: 48000, Frames: make([][2]float64, 4800)}
	src := ctx.NewBufferSource(buf)
	m.AttachSource(src)
	return src
}

func TestAddBandKeepsListsEqual(t *testing.T) {
	store, m, _ := setup(t, Options{})
	for n := 0; n < 4; n++ {
		store.AddBand()
		if store.Len() != n+1 || m.Len() != n+1 {
			t.Fatalf("store=%d stages=%d want %d", store.Len(), m.Len(), n+1)
		}
	}
}

func TestTwoBandChainOrder(t *testing.T) {
	store, m, ctx := setup(t, Options{})
	store.AddBand()
	store.AddBand()
	_ = store.UpdateBand(0, 200, 3, 1)
	_ = store.UpdateBand(1, 5000, -6, 2)
	attach(m, ctx)
	m.RebuildChain()

	want := []string{"source", "hpf", "lpf", "band0", "band1", "destination"}
	if got := m.Chain(); !reflect.DeepEqual(got, want) {
		t.Fatalf("chain=%v want %v", got, want)
	}
	wantEdges := []dsp.Edge{
		{From: "band0", To: "band1"},
		{From: "band1", To: "destination"},
		{From: "band1", To: "tap"},
		{From: "hpf", To: "lpf"},
		{From: "lpf", To: "band0"},
		{From: "source", To: "hpf"},
	}
	if got := m.Connections(); !reflect.DeepEqual(got, wantEdges) {
		t.Fatalf("edges=%v want %v", got, wantEdges)
	}
	b1, _ := m.StageParameters(1)
	if b1 != (eq.Band{Frequency: 5000, Gain: -6, Q: 2}) {
		t.Fatalf("stage 1 params=%+v", b1)
	}
}

func TestRebuildIsIdempotent(t *testing.T) {
	store, m, ctx := setup(t, Options{VolumeStage: true})
	store.AddBand()
	store.AddBand()
	attach(m, ctx)

	m.RebuildChain()
	first := m.Connections()
	m.RebuildChain()
	second := m.Connections()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("rebuild changed connections:\n%v\n%v", first, second)
	}
	seen := map[dsp.Edge]bool{}
	for _, e := range second {
		if seen[e] {
			t.Fatalf("duplicate edge %v", e)
		}
		seen[e] = true
	}
}

func TestDeleteFirstBandPreservesRemaining(t *testing.T) {
	store, m, ctx := setup(t, Options{})
	store.AddBand()
	store.AddBand()
	_ = store.UpdateBand(0, 200, 3, 1)
	_ = store.UpdateBand(1, 5000, -6, 2)
	attach(m, ctx)

	if err := store.DeleteBand(0); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if m.Len() != 1 {
		t.Fatalf("stages=%d want 1", m.Len())
	}
	got, _ := m.StageParameters(0)
	if got != (eq.Band{Frequency: 5000, Gain: -6, Q: 2}) {
		t.Fatalf("remaining stage=%+v", got)
	}
	want := []string{"source", "hpf", "lpf", "band0", "destination"}
	if chain := m.Chain(); !reflect.DeepEqual(chain, want) {
		t.Fatalf("chain=%v want %v", chain, want)
	}
	for _, e := range m.Connections() {
		if e.From == "band1" || e.To == "band1" {
			t.Fatalf("dangling edge %v", e)
		}
	}
}

func TestRebuildWithoutSourceIsNoop(t *testing.T) {
	store, m, _ := setup(t, Options{})
	store.AddBand()
	m.RebuildChain()
	if n := len(m.Connections()); n != 0 {
		t.Fatalf("expected no connections without a source, got %d", n)
	}
	if m.Chain() != nil {
		t.Fatalf("expected empty chain without a source")
	}
}

func TestParameterEditDoesNotRewire(t *testing.T) {
	store, m, ctx := setup(t, Options{})
	store.AddBand()
	attach(m, ctx)
	before := m.Connections()
	_ = store.UpdateBand(0, 3000, 5, 4)
	if !reflect.DeepEqual(before, m.Connections()) {
		t.Fatalf("parameter edit changed topology")
	}
	got, _ := m.StageParameters(0)
	if got.Frequency != 3000 || got.Gain != 5 || got.Q != 4 {
		t.Fatalf("stage not updated: %+v", got)
	}
}

func TestVolumeStageOptional(t *testing.T) {
	_, m, ctx := setup(t, Options{VolumeStage: true})
	attach(m, ctx)
	want := []string{"source", "hpf", "lpf", "volume", "destination"}
	if got := m.Chain(); !reflect.DeepEqual(got, want) {
		t.Fatalf("chain=%v want %v", got, want)
	}
	if v := m.SetVolume(5); v != 2 {
		t.Fatalf("volume not clamped: %f", v)
	}

	_, plain, ctx2 := setup(t, Options{})
	attach(plain, ctx2)
	if plain.HasVolume() {
		t.Fatalf("plain manager should not have a volume stage")
	}
	if v := plain.SetVolume(0.5); v != 1 {
		t.Fatalf("SetVolume without stage should be skipped, got %f", v)
	}
}

func TestDetachSourceDisconnectsEverything(t *testing.T) {
	store, m, ctx := setup(t, Options{})
	store.AddBand()
	attach(m, ctx)
	m.DetachSource()
	if n := len(m.Connections()); n != 0 {
		t.Fatalf("expected no connections after detach, got %v", m.Connections())
	}
	if m.HasSource() {
		t.Fatalf("source still attached")
	}
}

func TestFixedStageCutoffsClamp(t *testing.T) {
	_, m, _ := setup(t, Options{})
	if got := m.SetHighPass(5); got != 20 {
		t.Fatalf("hpf=%f want 20", got)
	}
	if got := m.SetLowPass(50000); got != 20000 {
		t.Fatalf("lpf=%f want 20000", got)
	}
}
