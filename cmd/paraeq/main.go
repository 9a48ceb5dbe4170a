package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/guidoenr/paraeq/internal/app"
	"github.com/guidoenr/paraeq/internal/audio"
	"github.com/guidoenr/paraeq/internal/preset"
	"github.com/guidoenr/paraeq/internal/render"
	"github.com/guidoenr/paraeq/internal/session"
	"github.com/guidoenr/paraeq/internal/web"
)

// SDL wants its calls on the main thread.
func init() { runtime.LockOSThread() }

func main() {
	var (
		deviceName  = flag.String("audio-device", "", "Optional PortAudio output device name (substring match)")
		sampleRate  = flag.Float64("rate", 0, "Output sample rate (0 uses the device default)")
		frames      = flag.Int("frames", 512, "Frames per audio buffer")
		fftSize     = flag.Int("fft-size", 2048, "Analyser FFT size (power of two)")
		width       = flag.Int("width", 80, "Terminal frame width")
		height      = flag.Int("height", 24, "Terminal frame height")
		targetFPS   = flag.Float64("fps", 30, "Spectrum frames per second while playing")
		noAudio     = flag.Bool("no-audio", false, "Render into a silent clock instead of a sound card")
		debug       = flag.Bool("debug", false, "Enable verbose logging")
		showStatus  = flag.Bool("status", true, "Display status bar")
		palette     = flag.String("palette", "default", "Colour theme ("+strings.Join(render.PaletteNames(), "|")+")")
		noColor     = flag.Bool("no-color", false, "Disable ANSI color output")
		listDevs    = flag.Bool("list-audio-devices", false, "List available audio output devices and exit")
		plugin      = flag.Bool("plugin", false, "Plugin variant: no volume, no rewind or fast-forward, no zero line")
		demo        = flag.Float64("demo", 0, "Load this many seconds of a synthetic test signal when no file is given")
		autoplay    = flag.Bool("play", false, "Start playing as soon as audio is loaded")
		presetPath  = flag.String("preset", preset.DefaultPath(), "Preset file to load at start and save to")
		watchPreset = flag.Bool("watch-preset", false, "Reapply the preset whenever the file changes")
		webPort     = flag.Int("web", 0, "Serve the browser UI on this port (0 disables)")
		headless    = flag.Bool("headless", false, "Skip the terminal UI (use with -web)")
		useSDL      = flag.Bool("sdl", false, "Draw the spectrum in an SDL window")
		profilePath = flag.String("profile", "", "Write per-frame timings to this CSV file")
	)

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [audio file (%s)]\n", os.Args[0], strings.Join(audio.Formats(), " "))
		flag.PrintDefaults()
	}
	flag.Parse()

	if *width <= 0 || *height <= 0 {
		log.Fatalf("invalid dimensions: width=%d height=%d", *width, *height)
	}
	if *targetFPS <= 0 {
		log.Fatalf("fps must be positive (got %.2f)", *targetFPS)
	}
	if *fftSize <= 0 || *fftSize&(*fftSize-1) != 0 {
		log.Fatalf("fft-size must be a power of two (got %d)", *fftSize)
	}
	if *useSDL && !render.SupportsSDL() {
		log.Fatalf("this binary was built without SDL support; rebuild with -tags sdl")
	}

	if fd := int(os.Stdout.Fd()); fd >= 0 {
		if w, h, err := term.GetSize(fd); err == nil {
			if w > 0 {
				*width = w
			}
			if h > 0 {
				*height = h
			}
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New(os.Stdout, "[paraeq] ", log.LstdFlags)
	if !*debug {
		logger.SetOutput(os.Stderr)
		logger.SetFlags(0)
	}

	needAudio := !*noAudio || *listDevs
	if needAudio {
		if err := audio.Initialize(); err != nil {
			logger.Fatalf("failed to initialize PortAudio: %v", err)
		}
		defer audio.Terminate()
	}

	if *listDevs {
		devices, err := audio.ListDevices()
		if err != nil {
			logger.Fatalf("list devices: %v", err)
		}
		fmt.Printf("\n=== Audio Output Devices ===\n\n")
		for _, dev := range devices {
			fmt.Println(dev)
		}
		return
	}

	var sink audio.Sink
	if *noAudio {
		rate := *sampleRate
		if rate <= 0 {
			rate = 44100
		}
		sink = audio.NewNullOutput(rate, *frames)
	} else {
		out, err := audio.OpenOutput(audio.Config{
			DeviceName:      *deviceName,
			FramesPerBuffer: *frames,
			SampleRate:      *sampleRate,
		})
		if err != nil {
			logger.Fatalf("open output: %v", err)
		}
		sink = out
	}
	defer sink.Close()

	variant := session.Full()
	if *plugin {
		variant = session.Plugin()
	}
	var sessionLog *log.Logger
	if *debug {
		sessionLog = logger
	}
	s := session.New(session.Config{
		SampleRate: sink.SampleRate(),
		FFTSize:    *fftSize,
		Variant:    variant,
		Log:        sessionLog,
	})

	if p, err := preset.Load(*presetPath); err == nil {
		s.ApplyPreset(p)
		logger.Printf("preset loaded from %s", *presetPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		logger.Printf("preset ignored: %v", err)
	}
	if *watchPreset {
		go func() {
			if err := preset.Watch(ctx, *presetPath, logger, s.ApplyPreset); err != nil {
				logger.Printf("preset watch stopped: %v", err)
			}
		}()
	}

	switch {
	case flag.NArg() > 0:
		if err := s.LoadFile(flag.Arg(0)); err != nil {
			logger.Fatalf("load %s: %v", flag.Arg(0), err)
		}
	case *demo > 0:
		s.LoadBuffer(app.DemoBuffer(s.SampleRate(), *demo, time.Now().UnixNano()), "demo")
	}

	if err := sink.Start(s.Render); err != nil {
		logger.Fatalf("start output: %v", err)
	}
	if *autoplay {
		s.Play()
	}

	if *webPort > 0 {
		srv := web.NewServer(s, web.Config{
			Port:       *webPort,
			PresetPath: *presetPath,
			Theme:      *palette,
			TargetFPS:  *targetFPS,
			Log:        log.New(logger.Writer(), "[web] ", logger.Flags()),
		})
		go func() {
			if err := srv.Start(ctx); err != nil {
				logger.Printf("web server: %v", err)
				cancel()
			}
		}()
	}

	switch {
	case *useSDL:
		if err := runWindow(ctx, s, *palette, *targetFPS); err != nil && !errors.Is(err, render.ErrWindowClosed) {
			logger.Fatalf("window: %v", err)
		}
		return
	case *headless:
		<-ctx.Done()
		return
	}

	a, err := app.New(app.Config{
		Width:         *width,
		Height:        *height,
		TargetFPS:     *targetFPS,
		ShowStatusBar: *showStatus,
		Theme:         *palette,
		UseANSI:       !*noColor,
		PresetPath:    *presetPath,
		ProfilePath:   *profilePath,
		Log:           logger,
	}, s)
	if err != nil {
		logger.Fatalf("failed to create app: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "cleanup error: %v\n", err)
		}
	}()

	if err := a.Run(ctx); err != nil {
		if ctx.Err() != nil {
			fmt.Println("\nExiting...")
			return
		}
		logger.Fatalf("runtime error: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
}
