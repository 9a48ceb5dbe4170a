package render

import (
	"image/color"
	"math"
	"strconv"
	"strings"
)

var (
	resetANSI     = "\x1b[0m"
	precomputedFG [256]string
	precomputedBG [256]string
)

func init() {
	for i := range precomputedFG {
		precomputedFG[i] = "\x1b[38;5;" + strconv.Itoa(i) + "m"
		precomputedBG[i] = "\x1b[48;5;" + strconv.Itoa(i) + "m"
	}
}

// Terminal is a Surface for a character grid. Each cell shows two vertical
// pixels using an upper half block, so the raster is cols x rows*2.
type Terminal struct {
	*Raster
	cols    int
	rows    int
	useANSI bool
}

// NewTerminal creates a terminal surface. Without ANSI the output falls back
// to a luminance ramp.
func NewTerminal(cols, rows int, background color.NRGBA, useANSI bool) *Terminal {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return &Terminal{
		Raster:  NewRaster(cols, rows*2, background),
		cols:    cols,
		rows:    rows,
		useANSI: useANSI,
	}
}

// Resize changes the grid size.
func (t *Terminal) Resize(cols, rows int) {
	if cols < 1 || rows < 1 {
		return
	}
	t.cols, t.rows = cols, rows
	t.Raster.Resize(cols, rows*2)
}

// Dimensions returns columns and rows.
func (t *Terminal) Dimensions() (int, int) { return t.cols, t.rows }

var ramp = []rune(" .:-=+*#%@")

// Lines converts the raster into printable rows.
func (t *Terminal) Lines() []string {
	lines := make([]string, t.rows)
	for y := 0; y < t.rows; y++ {
		var b strings.Builder
		b.Grow(t.cols * 12)
		lastFG, lastBG := -1, -1
		for x := 0; x < t.cols; x++ {
			top := t.At(x, 2*y)
			bottom := t.At(x, 2*y+1)
			if !t.useANSI {
				l := (luma(top) + luma(bottom)) / 2
				b.WriteRune(ramp[clampInt(int(l*float64(len(ramp)-1)+0.5), 0, len(ramp)-1)])
				continue
			}
			fg := rgbToANSI(float64(top.R)/255, float64(top.G)/255, float64(top.B)/255)
			bg := rgbToANSI(float64(bottom.R)/255, float64(bottom.G)/255, float64(bottom.B)/255)
			if fg != lastFG {
				b.WriteString(colorCode(fg))
				lastFG = fg
			}
			if bg != lastBG {
				b.WriteString(precomputedBG[bg])
				lastBG = bg
			}
			b.WriteRune('▀')
		}
		if t.useANSI {
			b.WriteString(resetANSI)
		}
		lines[y] = b.String()
	}
	return lines
}

func luma(c color.RGBA) float64 {
	return (0.2126*float64(c.R) + 0.7152*float64(c.G) + 0.0722*float64(c.B)) / 255
}

func colorCode(index int) string {
	return precomputedFG[clampInt(index, 0, len(precomputedFG)-1)]
}

func rgbToANSI(r, g, b float64) int {
	r = clamp01(r)
	g = clamp01(g)
	b = clamp01(b)

	// Grayscale ramp for near-neutral colours
	if math.Abs(r-g) < 0.02 && math.Abs(g-b) < 0.02 {
		if r < 0.02 {
			return 16
		}
		gray := int(clampFloat(math.Round(r*23), 0, 23))
		return 232 + gray
	}

	ri := int(clampFloat(r*5+0.5, 0, 5))
	gi := int(clampFloat(g*5+0.5, 0, 5))
	bi := int(clampFloat(b*5+0.5, 0, 5))

	return 16 + 36*ri + 6*gi + bi
}

func clamp01(v float64) float64 {
	return clampFloat(v, 0, 1)
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
