// Package eq holds the band list that drives the equalizer. The Store is the
// single source of truth; filter stages and UI controls follow it by
// subscribing as observers.
package eq

import (
	"errors"

	"github.com/guidoenr/paraeq/internal/params"
)

// ErrOutOfRange is returned for band indices outside the current list.
var ErrOutOfRange = errors.New("band index out of range")

// Band is one peaking stage.
type Band struct {
	Frequency float64 `json:"frequency"`
	Gain      float64 `json:"gain"`
	Q         float64 `json:"q"`
}

// Observer is notified synchronously from inside every mutating Store call,
// so observers are back in step with the Store before the call returns.
type Observer interface {
	BandAdded(index int, b Band)
	BandRemoved(index int)
	BandUpdated(index int, b Band)
}

// Store is an ordered, index-addressed band list. It is not safe for
// concurrent use.
type Store struct {
	limits    params.Parameters
	bands     []Band
	observers []Observer
}

// NewStore creates an empty band list using the given ranges.
func NewStore(limits params.Parameters) *Store {
	return &Store{limits: limits}
}

// Limits returns the ranges the store clamps to.
func (s *Store) Limits() params.Parameters { return s.limits }

// Subscribe registers an observer. Observers are called in registration order.
func (s *Store) Subscribe(o Observer) {
	if o == nil {
		return
	}
	s.observers = append(s.observers, o)
}

// Len returns the number of bands.
func (s *Store) Len() int { return len(s.bands) }

// Band returns the band at index.
func (s *Store) Band(index int) (Band, bool) {
	if index < 0 || index >= len(s.bands) {
		return Band{}, false
	}
	return s.bands[index], true
}

// Bands returns a copy of the band list.
func (s *Store) Bands() []Band {
	out := make([]Band, len(s.bands))
	copy(out, s.bands)
	return out
}

// AddBand appends a band with default values and returns its index.
func (s *Store) AddBand() int {
	b := Band{
		Frequency: s.limits.DefaultFrequency,
		Gain:      s.limits.DefaultGain,
		Q:         s.limits.DefaultQ,
	}
	return s.add(s.clampBand(b))
}

// DeleteBand removes the band at index; later bands shift down by one.
func (s *Store) DeleteBand(index int) error {
	if index < 0 || index >= len(s.bands) {
		return ErrOutOfRange
	}
	s.bands = append(s.bands[:index], s.bands[index+1:]...)
	for _, o := range s.observers {
		o.BandRemoved(index)
	}
	return nil
}

// UpdateBand overwrites all three fields after clamping each to its range.
// Out-of-range values are clamped silently; only a bad index is an error.
func (s *Store) UpdateBand(index int, frequency, gain, q float64) error {
	if index < 0 || index >= len(s.bands) {
		return ErrOutOfRange
	}
	b := s.clampBand(Band{Frequency: frequency, Gain: gain, Q: q})
	s.bands[index] = b
	for _, o := range s.observers {
		o.BandUpdated(index, b)
	}
	return nil
}

// Reset replaces the whole list, one removal or addition at a time so
// observers never see the lists diverge.
func (s *Store) Reset(bands []Band) {
	for len(s.bands) > 0 {
		_ = s.DeleteBand(len(s.bands) - 1)
	}
	for _, b := range bands {
		s.add(s.clampBand(b))
	}
}

func (s *Store) add(b Band) int {
	s.bands = append(s.bands, b)
	index := len(s.bands) - 1
	for _, o := range s.observers {
		o.BandAdded(index, b)
	}
	return index
}

func (s *Store) clampBand(b Band) Band {
	return Band{
		Frequency: s.limits.ClampFrequency(b.Frequency),
		Gain:      s.limits.ClampGain(b.Gain),
		Q:         s.limits.ClampQ(b.Q),
	}
}
