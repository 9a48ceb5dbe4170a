package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"

	"github.com/guidoenr/paraeq/internal/dsp"
)

// ErrUnsupportedFormat is returned for file extensions no decoder handles.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// MaxDuration caps how much audio a single load may buffer.
const MaxDuration = 30 * time.Minute

const resampleQuality = 4

// Formats lists the accepted file extensions.
func Formats() []string {
	return []string{".flac", ".mp3", ".ogg", ".wav"}
}

// DecodeFile opens path and decodes it.
func DecodeFile(path string, rate float64) (*dsp.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f, filepath.Base(path), rate)
}

// Decode picks a decoder from the extension of name, resamples to rate and
// buffers the whole stream.
func Decode(r io.Reader, name string, rate float64) (*dsp.Buffer, error) {
	streamer, format, err := decoderFor(r, name)
	if err != nil {
		return nil, err
	}
	defer streamer.Close()

	target := beep.SampleRate(int(rate))
	if target <= 0 {
		target = format.SampleRate
	}
	var s beep.Streamer = streamer
	if format.SampleRate != target {
		s = beep.Resample(resampleQuality, format.SampleRate, target, streamer)
	}

	limit := target.N(MaxDuration)
	buf := &dsp.Buffer{SampleRate: float64(target)}
	if n := streamer.Len(); n > 0 {
		estimate := int(float64(n) * float64(target) / float64(format.SampleRate))
		buf.Frames = make([][2]float64, 0, min(estimate+1, limit))
	}

	chunk := make([][2]float64, 1024)
	for len(buf.Frames) < limit {
		n, ok := s.Stream(chunk)
		buf.Frames = append(buf.Frames, chunk[:n]...)
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	if len(buf.Frames) > limit {
		buf.Frames = buf.Frames[:limit]
	}
	if len(buf.Frames) == 0 {
		return nil, fmt.Errorf("decode %s: no audio frames", name)
	}
	return buf, nil
}

func decoderFor(r io.Reader, name string) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	var (
		s      beep.StreamSeekCloser
		format beep.Format
		err    error
	)
	switch ext {
	case ".wav":
		s, format, err = wav.Decode(r)
	case ".mp3":
		s, format, err = mp3.Decode(readCloser(r))
	case ".flac":
		s, format, err = flac.Decode(r)
	case ".ogg", ".oga":
		s, format, err = vorbis.Decode(readCloser(r))
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("decode %s: %w", name, err)
	}
	return s, format, nil
}

func readCloser(r io.Reader) io.ReadCloser {
	if rc, ok := r.(io.ReadCloser); ok {
		return rc
	}
	return io.NopCloser(r)
}
