package app

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/eiannone/keyboard"
	"golang.org/x/term"

	"github.com/guidoenr/paraeq/internal/control"
	"github.com/guidoenr/paraeq/internal/preset"
	"github.com/guidoenr/paraeq/internal/render"
	"github.com/guidoenr/paraeq/internal/session"
)

// Config configures the terminal front end.
type Config struct {
	Width         int
	Height        int
	TargetFPS     float64
	ShowStatusBar bool
	Theme         string
	UseANSI       bool
	PresetPath    string
	ProfilePath   string
	Log           *log.Logger
}

type inputEvent int

const (
	inputTogglePlay inputEvent = iota
	inputStop
	inputRewind
	inputForward
	inputAddBand
	inputDeleteBand
	inputNextBand
	inputPrevBand
	inputFreqUp
	inputFreqDown
	inputGainUp
	inputGainDown
	inputQUp
	inputQDown
	inputHighPassUp
	inputHighPassDown
	inputLowPassUp
	inputLowPassDown
	inputVolumeUp
	inputVolumeDown
	inputSavePreset
	inputQuit
)

// App draws the spectrum in the terminal and maps keys onto session
// operations.
type App struct {
	cfg      Config
	session  *session.Session
	surface  *render.Terminal
	spectrum *render.Spectrum
	loop     *render.Loop
	prof     *profiler
	log      *log.Logger

	drawMu       sync.Mutex
	width        int
	height       int
	renderHeight int
	selected     int
	lastFrame    time.Time
	fps          float64
	message      string

	inputEvents chan inputEvent
}

// New wires a terminal front end to s.
func New(cfg Config, s *session.Session) (*App, error) {
	if cfg.TargetFPS <= 0 {
		cfg.TargetFPS = 30
	}
	if cfg.Log == nil {
		cfg.Log = log.New(os.Stdout, "", log.LstdFlags)
	}
	if cfg.Width <= 0 {
		cfg.Width = 80
	}
	if cfg.Height <= 0 {
		cfg.Height = 24
	}
	renderHeight := cfg.Height
	if cfg.ShowStatusBar && renderHeight > 1 {
		renderHeight--
	}

	theme := render.Palette(cfg.Theme)
	a := &App{
		cfg:          cfg,
		session:      s,
		surface:      render.NewTerminal(cfg.Width, renderHeight, theme.Background, cfg.UseANSI),
		spectrum:     render.NewSpectrum(s.Style(cfg.Theme)),
		prof:         newProfiler(cfg.ProfilePath, cfg.Log),
		log:          cfg.Log,
		width:        cfg.Width,
		height:       cfg.Height,
		renderHeight: renderHeight,
	}
	a.loop = render.NewLoop(cfg.TargetFPS, a.frame)
	s.AttachLoop(a.loop)
	return a, nil
}

// Run handles input until ctx is cancelled or the user quits. Frames are
// drawn by the render loop while audio plays; the status bar is refreshed
// on every input.
func (a *App) Run(ctx context.Context) error {
	enterAltScreen()
	clearScreen()
	hideCursor()
	defer func() {
		a.loop.Stop()
		a.loop.Wait()
		showCursor()
		exitAltScreen()
	}()

	inputCtx, cancelInput := context.WithCancel(ctx)
	defer cancelInput()
	a.startInputListener(inputCtx)
	a.ensureDimensions()
	a.frame()

	idle := time.NewTicker(500 * time.Millisecond)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			moveCursorHome()
			return ctx.Err()
		case evt, ok := <-a.inputEvents:
			if !ok {
				a.inputEvents = nil
				continue
			}
			if evt == inputQuit {
				moveCursorHome()
				return nil
			}
			a.drawMu.Lock()
			a.handle(evt)
			a.drawMu.Unlock()
			if !a.loop.Running() {
				a.frame()
			}
		case <-idle.C:
			if !a.loop.Running() {
				a.frame()
			}
		}
	}
}

// Close releases held resources.
func (a *App) Close() error {
	return a.prof.Close()
}

// handle runs with drawMu held.
func (a *App) handle(evt inputEvent) {
	s := a.session
	var err error
	switch evt {
	case inputTogglePlay:
		s.TogglePlay()
	case inputStop:
		s.Stop()
	case inputRewind:
		err = s.Rewind()
	case inputForward:
		err = s.FastForward()
	case inputAddBand:
		a.selected = s.AddBand()
	case inputDeleteBand:
		if err = s.DeleteBand(a.selected); err == nil && a.selected > 0 {
			a.selected--
		}
	case inputNextBand, inputPrevBand:
		n := len(s.Bands())
		if n > 0 {
			step := 1
			if evt == inputPrevBand {
				step = n - 1
			}
			a.selected = (a.selected + step) % n
		}
	case inputFreqUp, inputFreqDown, inputGainUp, inputGainDown, inputQUp, inputQDown:
		err = a.nudgeBand(evt)
	case inputHighPassUp, inputHighPassDown, inputLowPassUp, inputLowPassDown, inputVolumeUp, inputVolumeDown:
		err = a.nudgeStage(evt)
	case inputSavePreset:
		if err = preset.Save(a.cfg.PresetPath, s.Preset()); err == nil {
			a.message = "preset saved to " + a.cfg.PresetPath
			a.log.Printf("preset saved to %s", a.cfg.PresetPath)
		}
	}
	if err != nil {
		a.message = err.Error()
	}
}

// nudgeBand steps one field of the selected band through its number control.
func (a *App) nudgeBand(evt inputEvent) error {
	bands := a.session.Bands()
	if a.selected < 0 || a.selected >= len(bands) {
		return fmt.Errorf("no band selected")
	}
	b := bands[a.selected]
	field, value := control.Frequency, b.Frequency
	switch evt {
	case inputFreqUp:
		value = b.Frequency * math.Pow(2, 1.0/6)
	case inputFreqDown:
		value = b.Frequency / math.Pow(2, 1.0/6)
	case inputGainUp:
		field, value = control.Gain, b.Gain+1
	case inputGainDown:
		field, value = control.Gain, b.Gain-1
	case inputQUp:
		field, value = control.Q, b.Q*1.25
	case inputQDown:
		field, value = control.Q, b.Q/1.25
	}
	return a.session.Input(control.BandControlName(a.selected, field), control.Range, value)
}

func (a *App) nudgeStage(evt inputEvent) error {
	c := a.session.Snapshot().Controls
	third := math.Pow(2, 1.0/3)
	switch evt {
	case inputHighPassUp:
		return a.session.SetHighPass(c.HighPass.Range * third)
	case inputHighPassDown:
		return a.session.SetHighPass(c.HighPass.Range / third)
	case inputLowPassUp:
		return a.session.SetLowPass(c.LowPass.Range * third)
	case inputLowPassDown:
		return a.session.SetLowPass(c.LowPass.Range / third)
	}
	if c.Volume == nil {
		return fmt.Errorf("volume control disabled")
	}
	if evt == inputVolumeUp {
		return a.session.SetVolume(c.Volume.Range + 0.05)
	}
	return a.session.SetVolume(c.Volume.Range - 0.05)
}

// frame draws one spectrum frame plus the status bar.
func (a *App) frame() {
	a.drawMu.Lock()
	defer a.drawMu.Unlock()

	a.prof.beginFrame()
	a.ensureDimensions()

	now := time.Now()
	if !a.lastFrame.IsZero() {
		if delta := now.Sub(a.lastFrame).Seconds(); delta > 0 {
			a.fps = 0.9*a.fps + 0.1/delta
		}
	}
	a.lastFrame = now

	f := a.session.Frame()
	a.prof.markSection("snapshot")
	a.spectrum.Draw(a.surface, f)
	a.prof.markSection("draw")

	var out strings.Builder
	out.WriteString("\x1b[H")
	for _, line := range a.surface.Lines() {
		out.WriteString(line)
		out.WriteByte('\n')
	}
	if a.cfg.ShowStatusBar {
		out.WriteString(statusBar(a.statusText(), a.width))
	}
	fmt.Print(out.String())
	a.prof.markSection("present")
	a.prof.endFrame()
}

func (a *App) statusText() string {
	snap := a.session.Snapshot()
	feat := a.session.Features()

	var b strings.Builder
	b.Grow(160)
	b.WriteString(strings.ToUpper(snap.State.String()))
	b.WriteString(" ")
	appendFloat(&b, snap.Position, 1)
	b.WriteString("/")
	appendFloat(&b, snap.Duration, 1)
	b.WriteString("s | hpf ")
	appendFloat(&b, snap.Controls.HighPass.Range, 0)
	b.WriteString(" lpf ")
	appendFloat(&b, snap.Controls.LowPass.Range, 0)
	if snap.Controls.Volume != nil {
		b.WriteString(" vol ")
		appendFloat(&b, snap.Controls.Volume.Range, 2)
	}
	b.WriteString(" | bands ")
	b.WriteString(strconv.Itoa(len(snap.Bands)))
	if a.selected >= 0 && a.selected < len(snap.Bands) {
		sel := snap.Bands[a.selected]
		b.WriteString(" [")
		b.WriteString(strconv.Itoa(a.selected))
		b.WriteString("] ")
		appendFloat(&b, sel.Frequency, 0)
		b.WriteString("Hz ")
		appendFloat(&b, sel.Gain, 1)
		b.WriteString("dB Q")
		appendFloat(&b, sel.Q, 2)
	}
	b.WriteString(" | bass ")
	appendFloat(&b, feat.Bass, 2)
	b.WriteString(" mid ")
	appendFloat(&b, feat.Mid, 2)
	b.WriteString(" treble ")
	appendFloat(&b, feat.Treble, 2)
	b.WriteString(" fps ")
	appendFloat(&b, a.fps, 1)
	if a.message != "" {
		b.WriteString(" | ")
		b.WriteString(a.message)
	}
	return b.String()
}

func (a *App) ensureDimensions() {
	fd := int(os.Stdout.Fd())
	if fd < 0 {
		return
	}
	w, h, err := term.GetSize(fd)
	if err != nil || w <= 0 || h <= 0 {
		return
	}

	renderHeight := h
	if a.cfg.ShowStatusBar && renderHeight > 1 {
		renderHeight--
	}
	if renderHeight <= 0 {
		renderHeight = 1
	}

	if w == a.width && h == a.height && renderHeight == a.renderHeight {
		return
	}

	a.width = w
	a.height = h
	a.renderHeight = renderHeight
	a.surface.Resize(w, renderHeight)
}

var keyBindings = map[rune]inputEvent{
	' ': inputTogglePlay,
	's': inputStop,
	'r': inputRewind,
	'f': inputForward,
	'a': inputAddBand,
	'd': inputDeleteBand,
	']': inputNextBand,
	'[': inputPrevBand,
	'+': inputQUp,
	'=': inputQUp,
	'-': inputQDown,
	'H': inputHighPassUp,
	'h': inputHighPassDown,
	'L': inputLowPassUp,
	'l': inputLowPassDown,
	'V': inputVolumeUp,
	'v': inputVolumeDown,
	'w': inputSavePreset,
	'q': inputQuit,
	'Q': inputQuit,
}

func keyEvent(char rune, key keyboard.Key) (inputEvent, bool) {
	switch key {
	case keyboard.KeyEsc, keyboard.KeyCtrlC:
		return inputQuit, true
	case keyboard.KeySpace:
		return inputTogglePlay, true
	case keyboard.KeyArrowRight:
		return inputFreqUp, true
	case keyboard.KeyArrowLeft:
		return inputFreqDown, true
	case keyboard.KeyArrowUp:
		return inputGainUp, true
	case keyboard.KeyArrowDown:
		return inputGainDown, true
	}
	evt, ok := keyBindings[char]
	return evt, ok
}

func (a *App) startInputListener(ctx context.Context) {
	if err := keyboard.Open(); err != nil {
		a.log.Printf("keyboard input disabled: %v", err)
		a.inputEvents = nil
		return
	}

	events := make(chan inputEvent, 16)
	a.inputEvents = events

	closeOnce := &sync.Once{}
	go func() {
		<-ctx.Done()
		closeOnce.Do(func() {
			_ = keyboard.Close()
		})
	}()

	go func() {
		defer close(events)
		defer closeOnce.Do(func() {
			_ = keyboard.Close()
		})
		for {
			char, key, err := keyboard.GetKey()
			if err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			evt, ok := keyEvent(char, key)
			if !ok {
				continue
			}
			if evt == inputQuit {
				events <- inputQuit
				return
			}
			select {
			case events <- evt:
			default:
			}
		}
	}()
}

func statusBar(text string, width int) string {
	if width <= 0 {
		return text
	}
	if len(text) >= width {
		return text[:width]
	}
	return text + strings.Repeat(" ", width-len(text))
}

func appendFloat(builder *strings.Builder, value float64, precision int) {
	var buf [32]byte
	b := strconv.AppendFloat(buf[:0], value, 'f', precision, 64)
	builder.Write(b)
}

func clearScreen() {
	fmt.Print("\x1b[2J")
	moveCursorHome()
}

func moveCursorHome() {
	fmt.Print("\x1b[H")
}

func hideCursor() {
	fmt.Print("\x1b[?25l")
}

func showCursor() {
	fmt.Print("\x1b[?25h")
}

func enterAltScreen() {
	fmt.Print("\x1b[?1049h")
}

func exitAltScreen() {
	fmt.Print("\x1b[?1049l\x1b[0m")
}
