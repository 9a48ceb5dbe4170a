package audio

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// RenderFunc fills out with the next block of stereo frames.
type RenderFunc func(out [][2]float64)

// Sink plays rendered audio.
type Sink interface {
	SampleRate() float64
	Start(render RenderFunc) error
	Close() error
}

// Config controls how an output stream is opened.
type Config struct {
	DeviceName      string
	FramesPerBuffer int
	// SampleRate overrides the device default when positive.
	SampleRate float64
}

const defaultFramesPerBuffer = 512

var errAlreadyStarted = errors.New("output already started")

// Output wraps a PortAudio stereo output stream.
type Output struct {
	cfg        Config
	device     *portaudio.DeviceInfo
	sampleRate float64
	stream     *portaudio.Stream

	render  RenderFunc
	scratch [][2]float64
}

// OpenOutput resolves the device and sample rate. The stream opens on Start,
// once a renderer is available.
func OpenOutput(cfg Config) (*Output, error) {
	if cfg.FramesPerBuffer <= 0 {
		cfg.FramesPerBuffer = defaultFramesPerBuffer
	}
	if !initialized() {
		return nil, ErrNotInitialized
	}
	device, err := findDevice(cfg.DeviceName)
	if err != nil {
		return nil, err
	}
	rate := device.DefaultSampleRate
	if cfg.SampleRate > 0 {
		rate = cfg.SampleRate
	}
	return &Output{
		cfg:        cfg,
		device:     device,
		sampleRate: rate,
		scratch:    make([][2]float64, cfg.FramesPerBuffer),
	}, nil
}

// SampleRate returns the stream sample rate.
func (o *Output) SampleRate() float64 { return o.sampleRate }

// Device returns the PortAudio device the stream plays on.
func (o *Output) Device() *portaudio.DeviceInfo { return o.device }

// Start opens and starts the stream; render runs on the audio thread.
func (o *Output) Start(render RenderFunc) error {
	if o.stream != nil {
		return errAlreadyStarted
	}
	o.render = render

	channels := 2
	if o.device.MaxOutputChannels < 2 {
		channels = 1
	}
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{},
		Output: portaudio.StreamDeviceParameters{
			Device:   o.device,
			Channels: channels,
			Latency:  o.device.DefaultHighOutputLatency,
		},
		SampleRate:      o.sampleRate,
		FramesPerBuffer: o.cfg.FramesPerBuffer,
	}, o.processFor(channels))
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("start stream: %w", err)
	}
	o.stream = stream
	return nil
}

// Close stops and closes the underlying PortAudio stream.
func (o *Output) Close() error {
	if o.stream == nil {
		return nil
	}
	if err := o.stream.Stop(); err != nil && !errorsIsInvalidStreamState(err) {
		return err
	}
	err := o.stream.Close()
	o.stream = nil
	return err
}

func (o *Output) processFor(channels int) func(out []float32) {
	return func(out []float32) {
		frames := len(out) / channels
		if cap(o.scratch) < frames {
			o.scratch = make([][2]float64, frames)
		}
		buf := o.scratch[:frames]
		o.render(buf)
		interleave(out, buf, channels)
	}
}

// interleave writes frames into a PortAudio buffer, downmixing for mono
// devices.
func interleave(out []float32, frames [][2]float64, channels int) {
	if channels == 1 {
		for i, f := range frames {
			out[i] = float32((f[0] + f[1]) / 2)
		}
		return
	}
	for i, f := range frames {
		out[2*i] = float32(f[0])
		out[2*i+1] = float32(f[1])
	}
}

// NullOutput renders in real time without a device, paced by a ticker.
type NullOutput struct {
	sampleRate float64
	frames     int

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewNullOutput returns a sink that discards audio at sampleRate.
func NewNullOutput(sampleRate float64, framesPerBuffer int) *NullOutput {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	if framesPerBuffer <= 0 {
		framesPerBuffer = defaultFramesPerBuffer
	}
	return &NullOutput{sampleRate: sampleRate, frames: framesPerBuffer}
}

func (n *NullOutput) SampleRate() float64 { return n.sampleRate }

func (n *NullOutput) Start(render RenderFunc) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stop != nil {
		return errAlreadyStarted
	}
	n.stop = make(chan struct{})
	n.done = make(chan struct{})
	period := time.Duration(float64(n.frames) / n.sampleRate * float64(time.Second))
	go func(stop, done chan struct{}) {
		defer close(done)
		buf := make([][2]float64, n.frames)
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				render(buf)
			}
		}
	}(n.stop, n.done)
	return nil
}

func (n *NullOutput) Close() error {
	n.mu.Lock()
	stop, done := n.stop, n.done
	n.stop = nil
	n.mu.Unlock()
	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return nil
}

func findDevice(name string) (*portaudio.DeviceInfo, error) {
	if name != "" {
		return findDeviceByName(name)
	}

	if dev, err := portaudio.DefaultOutputDevice(); err == nil && dev != nil && dev.MaxOutputChannels > 0 {
		return dev, nil
	}

	if host, err := portaudio.DefaultHostApi(); err == nil {
		if host != nil && host.DefaultOutputDevice != nil && host.DefaultOutputDevice.MaxOutputChannels > 0 {
			return host.DefaultOutputDevice, nil
		}
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}

	if candidate := pickBestDevice(devices); candidate != nil {
		return candidate, nil
	}

	return nil, fmt.Errorf("no suitable audio output device found")
}

func findDeviceByName(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}

	name = strings.ToLower(name)
	for _, device := range devices {
		if device.MaxOutputChannels == 0 {
			continue
		}
		if strings.Contains(strings.ToLower(device.Name), name) {
			return device, nil
		}
	}

	return nil, fmt.Errorf("audio device %q not found", name)
}

func pickBestDevice(devices []*portaudio.DeviceInfo) *portaudio.DeviceInfo {
	type scored struct {
		dev   *portaudio.DeviceInfo
		score int
	}

	var results []scored
	for _, d := range devices {
		if d == nil || d.MaxOutputChannels <= 0 {
			continue
		}
		score := 0
		if d.MaxOutputChannels >= 2 {
			score += 30
		}
		lower := strings.ToLower(d.Name)
		if strings.Contains(lower, "default") || strings.Contains(lower, "pulse") || strings.Contains(lower, "pipewire") {
			score += 20
		}
		// HDMI sinks are usually not where the user is listening.
		if strings.Contains(lower, "hdmi") {
			score -= 10
		}
		results = append(results, scored{dev: d, score: score})
	}

	if len(results) == 0 {
		return nil
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score == results[j].score {
			return strings.ToLower(results[i].dev.Name) < strings.ToLower(results[j].dev.Name)
		}
		return results[i].score > results[j].score
	})

	return results[0].dev
}

// errorsIsInvalidStreamState checks if the provided error stems from stopping an already stopped stream.
func errorsIsInvalidStreamState(err error) bool {
	if err == nil {
		return false
	}
	const invalidStateMsg = "PaErrorCode -9986"
	return strings.Contains(err.Error(), invalidStateMsg)
}
