// Package render paints the spectrum view: analyser bars, optional zero
// line and grid, and one marker with a Q overlay per band.
package render

import (
	"github.com/guidoenr/paraeq/internal/eq"
	"github.com/guidoenr/paraeq/internal/params"
)

// Frame is everything one draw needs. It is a copy; drawing never touches
// the band store or the graph.
type Frame struct {
	Bins   []uint8
	Bands  []eq.Band
	Limits params.Parameters
}

// Style selects overlays and colours.
type Style struct {
	Theme Theme
	// ZeroLine draws a line at 0 dB (mid-height).
	ZeroLine bool
	// Grid is the number of grid divisions per axis; below 2 disables it.
	Grid int
	// BarSpread widens each bar relative to width/bins.
	BarSpread    float64
	MarkerRadius float64
}

// DefaultStyle matches the full variant: zero line and a 4x4 grid.
func DefaultStyle() Style {
	return Style{
		Theme:        Palette("default"),
		ZeroLine:     true,
		Grid:         4,
		BarSpread:    2.5,
		MarkerRadius: 5,
	}
}

// Spectrum draws frames onto a Surface.
type Spectrum struct {
	style Style
}

// NewSpectrum returns a drawer using style.
func NewSpectrum(style Style) *Spectrum {
	if style.BarSpread <= 0 {
		style.BarSpread = 1
	}
	if style.MarkerRadius <= 0 {
		style.MarkerRadius = 5
	}
	return &Spectrum{style: style}
}

// Style returns the active style.
func (s *Spectrum) Style() Style { return s.style }

// Draw clears dst and paints f.
func (s *Spectrum) Draw(dst Surface, f Frame) {
	width, height := dst.Size()
	if width <= 0 || height <= 0 {
		return
	}
	dst.ClearRect(0, 0, width, height)
	s.drawBars(dst, f.Bins, width, height)

	theme := s.style.Theme
	if s.style.ZeroLine {
		dst.StrokeLine(0, height/2, width, height/2, 1, theme.ZeroLine)
	}
	if n := s.style.Grid; n >= 2 {
		for i := 1; i < n; i++ {
			x := float64(i) / float64(n) * width
			dst.StrokeLine(x, 0, x, height, 1, theme.Grid)
		}
		for i := 1; i < n; i++ {
			y := float64(i) / float64(n) * height
			dst.StrokeLine(0, y, width, y, 1, theme.Grid)
		}
	}

	for _, b := range f.Bands {
		s.drawMarker(dst, b, f.Limits, width, height)
	}
}

func (s *Spectrum) drawBars(dst Surface, bins []uint8, width, height float64) {
	if len(bins) == 0 {
		return
	}
	barWidth := width / float64(len(bins)) * s.style.BarSpread
	x := 0.0
	// one bar per bin, including empty and off-surface ones; surfaces clip
	for _, v := range bins {
		barHeight := float64(v) / 255 * height
		dst.FillRect(x, height-barHeight, barWidth, barHeight, s.style.Theme.Bar)
		x += barWidth + 1
	}
}

func (s *Spectrum) drawMarker(dst Surface, b eq.Band, limits params.Parameters, width, height float64) {
	x, y := MarkerPosition(b, limits, width, height)
	theme := s.style.Theme
	dst.FillArc(x, y, s.style.MarkerRadius, theme.Marker)

	if limits.MaxQ <= 0 {
		return
	}
	qWidth := b.Q / limits.MaxQ * (width / 10)
	qHeight := b.Q / limits.MaxQ * (height / 2)
	var p Path
	p.MoveTo(x, y)
	p.QuadTo(x, y-qHeight, x+qWidth/2, y)
	p.QuadTo(x, y+qHeight, x-qWidth/2, y)
	p.Close()
	dst.FillPath(&p, theme.QFill)
}

// MarkerPosition maps a band to surface coordinates: x by
// frequency/MaxFrequency, y by gain/MaxGain with 0 dB at mid-height.
func MarkerPosition(b eq.Band, limits params.Parameters, width, height float64) (float64, float64) {
	var x, y float64
	if limits.MaxFrequency > 0 {
		x = b.Frequency / limits.MaxFrequency * width
	}
	y = height / 2
	if limits.MaxGain > 0 {
		y -= b.Gain / limits.MaxGain * (height / 2)
	}
	return x, y
}
