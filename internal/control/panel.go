// Package control binds twin UI controls (a range slider and a number box)
// to the band list and to the fixed filter stages. Editing either twin
// mirrors the value onto the other and pushes it immediately.
package control

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/guidoenr/paraeq/internal/eq"
	"github.com/guidoenr/paraeq/internal/params"
)

// ErrUnknownControl is returned for names that do not map to a control.
var ErrUnknownControl = errors.New("unknown control")

// Side selects which twin received the input.
type Side string

const (
	Range  Side = "range"
	Number Side = "number"
)

// Field is a band parameter.
type Field string

const (
	Frequency Field = "frequency"
	Gain      Field = "gain"
	Q         Field = "q"
)

// Fixed names of the non-band controls.
const (
	HighPassName = "hpf"
	LowPassName  = "lpf"
	VolumeName   = "volume"
)

// Stages is what the panel drives for the controls that do not belong to a
// band.
type Stages interface {
	SetHighPass(hz float64) float64
	SetLowPass(hz float64) float64
	SetVolume(v float64) float64
	HighPass() float64
	LowPass() float64
	Volume() float64
}

// Twin is one range + number pair.
type Twin struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Range  float64 `json:"range"`
	Number float64 `json:"number"`
}

// set mirrors v onto both sides. The range side clamps like a native range
// input; the number side keeps what was typed.
func (t *Twin) set(side Side, v float64) {
	clamped := params.Clamp(v, t.Min, t.Max)
	t.Range = clamped
	if side == Number {
		t.Number = v
		return
	}
	t.Number = clamped
}

// BandControls holds the three twins of one band row.
type BandControls struct {
	Frequency Twin `json:"frequency"`
	Gain      Twin `json:"gain"`
	Q         Twin `json:"q"`
}

func (b *BandControls) twin(f Field) *Twin {
	switch f {
	case Frequency:
		return &b.Frequency
	case Gain:
		return &b.Gain
	default:
		return &b.Q
	}
}

// State is a snapshot of every control.
type State struct {
	HighPass Twin           `json:"hpf"`
	LowPass  Twin           `json:"lpf"`
	Volume   *Twin          `json:"volume,omitempty"`
	Bands    []BandControls `json:"bands"`
}

// Panel keeps control rows in step with the band list. It is not safe for
// concurrent use.
type Panel struct {
	store  *eq.Store
	stages Stages
	limits params.Parameters

	hpf    Twin
	lpf    Twin
	volume *Twin
	bands  []BandControls

	// typed is the number box behind the input being handled, if any.
	typed *Twin
}

// NewPanel binds controls to store and stages and subscribes to the store.
// withVolume adds the volume slider.
func NewPanel(store *eq.Store, stages Stages, withVolume bool) *Panel {
	limits := store.Limits()
	p := &Panel{
		store:  store,
		stages: stages,
		limits: limits,
		hpf:    Twin{Min: limits.MinFrequency, Max: limits.MaxFrequency},
		lpf:    Twin{Min: limits.MinFrequency, Max: limits.MaxFrequency},
	}
	p.hpf.set(Range, stages.HighPass())
	p.lpf.set(Range, stages.LowPass())
	if withVolume {
		p.volume = &Twin{Min: 0, Max: limits.MaxVolume}
		p.volume.set(Range, stages.Volume())
	}
	for i, b := range store.Bands() {
		p.BandAdded(i, b)
	}
	store.Subscribe(p)
	return p
}

// Input handles one input event on the named control. Band controls are
// named band-<index>-<field>.
func (p *Panel) Input(name string, side Side, value float64) error {
	if side != Range && side != Number {
		return fmt.Errorf("%w: side %q", ErrUnknownControl, side)
	}
	switch name {
	case HighPassName:
		p.hpf.set(side, value)
		p.stages.SetHighPass(p.hpf.Range)
		return nil
	case LowPassName:
		p.lpf.set(side, value)
		p.stages.SetLowPass(p.lpf.Range)
		return nil
	case VolumeName:
		if p.volume == nil {
			return fmt.Errorf("%w: %s", ErrUnknownControl, name)
		}
		p.volume.set(Range, value)
		p.stages.SetVolume(p.volume.Range)
		return nil
	}

	index, field, err := ParseBandControl(name)
	if err != nil {
		return err
	}
	if index >= len(p.bands) {
		return fmt.Errorf("%w: %s", eq.ErrOutOfRange, name)
	}
	band, ok := p.store.Band(index)
	if !ok {
		return fmt.Errorf("%w: %s", eq.ErrOutOfRange, name)
	}
	row := &p.bands[index]
	tw := row.twin(field)
	tw.set(side, value)
	if side == Number {
		p.typed = tw
		defer func() { p.typed = nil }()
	}

	switch field {
	case Frequency:
		band.Frequency = value
	case Gain:
		band.Gain = value
	case Q:
		band.Q = value
	}
	return p.store.UpdateBand(index, band.Frequency, band.Gain, band.Q)
}

// State returns a copy of all control values.
func (p *Panel) State() State {
	s := State{
		HighPass: p.hpf,
		LowPass:  p.lpf,
		Bands:    make([]BandControls, len(p.bands)),
	}
	copy(s.Bands, p.bands)
	if p.volume != nil {
		v := *p.volume
		s.Volume = &v
	}
	return s
}

// Sync re-reads the fixed stages, e.g. after a preset load.
func (p *Panel) Sync() {
	p.hpf.set(Range, p.stages.HighPass())
	p.lpf.set(Range, p.stages.LowPass())
	if p.volume != nil {
		p.volume.set(Range, p.stages.Volume())
	}
}

// BandAdded inserts a control row showing b.
func (p *Panel) BandAdded(index int, b eq.Band) {
	row := p.newRow(b)
	if index < 0 || index > len(p.bands) {
		index = len(p.bands)
	}
	p.bands = append(p.bands, BandControls{})
	copy(p.bands[index+1:], p.bands[index:])
	p.bands[index] = row
}

// BandRemoved drops the row; later rows take the next lower name.
func (p *Panel) BandRemoved(index int) {
	if index < 0 || index >= len(p.bands) {
		return
	}
	p.bands = append(p.bands[:index], p.bands[index+1:]...)
}

// BandUpdated mirrors the stored (clamped) values onto both sides of every
// twin, except the number box currently being typed into.
func (p *Panel) BandUpdated(index int, b eq.Band) {
	if index < 0 || index >= len(p.bands) {
		return
	}
	row := &p.bands[index]
	p.reflect(&row.Frequency, b.Frequency)
	p.reflect(&row.Gain, b.Gain)
	p.reflect(&row.Q, b.Q)
}

func (p *Panel) reflect(t *Twin, stored float64) {
	t.Range = stored
	if t != p.typed {
		t.Number = stored
	}
}

func (p *Panel) newRow(b eq.Band) BandControls {
	row := BandControls{
		Frequency: Twin{Min: p.limits.MinFrequency, Max: p.limits.MaxFrequency},
		Gain:      Twin{Min: p.limits.MinGain, Max: p.limits.MaxGain},
		Q:         Twin{Min: p.limits.MinQ, Max: p.limits.MaxQ},
	}
	row.Frequency.set(Range, b.Frequency)
	row.Gain.set(Range, b.Gain)
	row.Q.set(Range, b.Q)
	return row
}

// BandControlName formats the logical name of a band control.
func BandControlName(index int, f Field) string {
	return fmt.Sprintf("band-%d-%s", index, f)
}

// ParseBandControl splits band-<index>-<field>.
func ParseBandControl(name string) (int, Field, error) {
	parts := strings.Split(name, "-")
	if len(parts) != 3 || parts[0] != "band" {
		return 0, "", fmt.Errorf("%w: %s", ErrUnknownControl, name)
	}
	index, err := strconv.Atoi(parts[1])
	if err != nil || index < 0 {
		return 0, "", fmt.Errorf("%w: %s", ErrUnknownControl, name)
	}
	switch f := Field(strings.ToLower(parts[2])); f {
	case Frequency, Gain, Q:
		return index, f, nil
	}
	return 0, "", fmt.Errorf("%w: %s", ErrUnknownControl, name)
}
