package dsp

import (
	"errors"
	"time"
)

// ErrSourceStarted is returned when Start is called on a source that has
// already been started. Sources are one-shot.
var ErrSourceStarted = errors.New("source already started")

// Buffer is decoded stereo PCM.
type Buffer struct {
	SampleRate float64
	Frames     [][2]float64
}

// Duration returns the playable length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(b.Frames)) / b.SampleRate * float64(time.Second))
}

type sourceState int

const (
	sourceIdle sourceState = iota
	sourcePlaying
	sourceStopped
)

// BufferSource plays a Buffer once.
type BufferSource struct {
	node
	buf   *Buffer
	pos   int
	state sourceState
	ended bool
}

// NewBufferSource creates an idle source for buf.
func (c *Context) NewBufferSource(buf *Buffer) *BufferSource {
	s := &BufferSource{buf: buf}
	c.register(s, &s.node, "source")
	return s
}

func (s *BufferSource) Connect(dst Node) { s.connect(s, dst) }
func (s *BufferSource) Disconnect() { s.disconnect(s) }

// Buffer returns the buffer the source plays.
func (s *BufferSource) Buffer() *Buffer { return s.buf }

// Start begins playback at offset.
func (s *BufferSource) Start(offset time.Duration) error {
	if s.state != sourceIdle {
		return ErrSourceStarted
	}
	s.seek(offset)
	s.state = sourcePlaying
	return nil
}

// Stop ends playback for good.
func (s *BufferSource) Stop() {
	s.state = sourceStopped
}

// Playing reports whether the source is producing samples.
func (s *BufferSource) Playing() bool { return s.state == sourcePlaying }

// Ended reports whether playback ran off the end of the buffer.
func (s *BufferSource) Ended() bool { return s.ended }

// Position returns the current playback offset.
func (s *BufferSource) Position() time.Duration {
	if s.buf == nil || s.buf.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(s.pos) / s.buf.SampleRate * float64(time.Second))
}

// Seek moves the read position, clamped to the buffer.
func (s *BufferSource) Seek(offset time.Duration) {
	s.seek(offset)
}

func (s *BufferSource) seek(offset time.Duration) {
	if s.buf == nil {
		return
	}
	pos := int(offset.Seconds() * s.buf.SampleRate)
	if pos < 0 {
		pos = 0
	}
	if pos > len(s.buf.Frames) {
		pos = len(s.buf.Frames)
	}
	s.pos = pos
}

func (s *BufferSource) render(frames int) [][2]float64 {
	out := resize(s.out, frames)
	clear(out)
	if s.state != sourcePlaying || s.buf == nil {
		return out
	}
	n := copy(out, s.buf.Frames[s.pos:])
	s.pos += n
	if s.pos >= len(s.buf.Frames) {
		s.state = sourceStopped
		s.ended = true
	}
	return out
}
