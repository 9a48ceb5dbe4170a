package app

import (
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eiannone/keyboard"

	"github.com/guidoenr/paraeq/internal/preset"
	"github.com/guidoenr/paraeq/internal/session"
)

func newTestApp(t *testing.T, v session.Variant) (*App, *session.Session) {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	s := session.New(session.Config{SampleRate: 8000, FFTSize: 256, Variant: v, Log: logger})
	a, err := New(Config{
		Width:         40,
		Height:        10,
		ShowStatusBar: true,
		PresetPath:    filepath.Join(t.TempDir(), "preset.json"),
		Log:           logger,
	}, s)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return a, s
}

func TestStatusBarPadsAndTruncates(t *testing.T) {
	if got := statusBar("abc", 6); got != "abc   " {
		t.Fatalf("padded=%q", got)
	}
	if got := statusBar("abcdefgh", 4); got != "abcd" {
		t.Fatalf("truncated=%q", got)
	}
	if got := statusBar("abc", 0); got != "abc" {
		t.Fatalf("unbounded=%q", got)
	}
}

func TestKeyEvent(t *testing.T) {
	cases := []struct {
		char rune
		key  keyboard.Key
		want inputEvent
	}{
		{0, keyboard.KeySpace, inputTogglePlay},
		{0, keyboard.KeyEsc, inputQuit},
		{0, keyboard.KeyArrowUp, inputGainUp},
		{'a', 0, inputAddBand},
		{'H', 0, inputHighPassUp},
		{'w', 0, inputSavePreset},
	}
	for _, tc := range cases {
		got, ok := keyEvent(tc.char, tc.key)
		if !ok || got != tc.want {
			t.Fatalf("keyEvent(%q, %v)=%v,%v want %v", tc.char, tc.key, got, ok, tc.want)
		}
	}
	if _, ok := keyEvent('z', 0); ok {
		t.Fatalf("unbound key should be ignored")
	}
}

func TestHandleEditsBands(t *testing.T) {
	a, s := newTestApp(t, session.Full())
	a.handle(inputAddBand)
	a.handle(inputAddBand)
	if a.selected != 1 || len(s.Bands()) != 2 {
		t.Fatalf("selected=%d bands=%d", a.selected, len(s.Bands()))
	}

	before := s.Bands()[1]
	a.handle(inputGainUp)
	a.handle(inputFreqUp)
	after := s.Bands()[1]
	if after.Gain != before.Gain+1 {
		t.Fatalf("gain=%f want %f", after.Gain, before.Gain+1)
	}
	if math.Abs(after.Frequency-before.Frequency*math.Pow(2, 1.0/6)) > 1e-6 {
		t.Fatalf("frequency=%f", after.Frequency)
	}

	a.handle(inputDeleteBand)
	if a.selected != 0 || len(s.Bands()) != 1 {
		t.Fatalf("after delete selected=%d bands=%d", a.selected, len(s.Bands()))
	}
}

func TestHandleReportsErrors(t *testing.T) {
	a, _ := newTestApp(t, session.Plugin())
	a.handle(inputGainUp)
	if a.message == "" {
		t.Fatalf("expected a message with no band selected")
	}
	a.handle(inputVolumeUp)
	if !strings.Contains(a.message, "volume") {
		t.Fatalf("message=%q", a.message)
	}
	a.handle(inputRewind)
	if !strings.Contains(a.message, session.ErrTransportDisabled.Error()) {
		t.Fatalf("message=%q", a.message)
	}
}

func TestHandleSavesPreset(t *testing.T) {
	a, s := newTestApp(t, session.Full())
	a.handle(inputAddBand)
	a.handle(inputHighPassUp)
	a.handle(inputSavePreset)

	p, err := preset.Load(a.cfg.PresetPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(p.Bands) != 1 || p.HighPass != s.Preset().HighPass {
		t.Fatalf("preset=%+v", p)
	}
}

func TestStatusTextShowsState(t *testing.T) {
	a, s := newTestApp(t, session.Full())
	s.LoadBuffer(DemoBuffer(8000, 1, 1), "demo")
	a.handle(inputAddBand)
	text := a.statusText()
	for _, want := range []string{"LOADED", "bands 1", "[0]", "vol "} {
		if !strings.Contains(text, want) {
			t.Fatalf("status %q missing %q", text, want)
		}
	}
}

func TestDemoBuffer(t *testing.T) {
	buf := DemoBuffer(8000, 0.5, 42)
	if buf.SampleRate != 8000 || len(buf.Frames) != 4000 {
		t.Fatalf("rate=%f frames=%d", buf.SampleRate, len(buf.Frames))
	}
	var peak float64
	for _, f := range buf.Frames {
		if f[0] != f[1] {
			t.Fatalf("demo signal should be mono")
		}
		peak = math.Max(peak, math.Abs(f[0]))
	}
	if peak == 0 || peak > 1 {
		t.Fatalf("peak=%f", peak)
	}
	again := DemoBuffer(8000, 0.5, 42)
	if again.Frames[1234] != buf.Frames[1234] {
		t.Fatalf("same seed should give the same signal")
	}
}

func TestProfilerWritesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.csv")
	p := newProfiler(path, log.New(io.Discard, "", 0))
	if p == nil {
		t.Fatalf("profiler not created")
	}
	for i := 0; i < 2; i++ {
		p.beginFrame()
		p.markSection("draw")
		p.endFrame()
	}
	if !strings.HasPrefix(p.summary(), "2 frames") {
		t.Fatalf("summary=%q", p.summary())
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != "frame,section,ms" || len(lines) != 5 {
		t.Fatalf("csv=%q", data)
	}

	var disabled *profiler
	disabled.beginFrame()
	if err := disabled.Close(); err != nil {
		t.Fatalf("nil profiler close: %v", err)
	}
}
