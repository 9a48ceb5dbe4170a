package render

import "image/color"

// Theme is a set of colours for the spectrum view.
type Theme struct {
	Bar        color.NRGBA
	Marker     color.NRGBA
	QFill      color.NRGBA
	ZeroLine   color.NRGBA
	Grid       color.NRGBA
	Background color.NRGBA
}

var (
	defaultTheme = Theme{
		Bar:        color.NRGBA{75, 192, 192, 255},
		Marker:     color.NRGBA{0, 0, 255, 255},
		QFill:      color.NRGBA{0, 0, 255, 51},
		ZeroLine:   color.NRGBA{255, 255, 255, 255},
		Grid:       color.NRGBA{255, 255, 255, 26},
		Background: color.NRGBA{0, 0, 0, 255},
	}
	fireTheme = Theme{
		Bar:        color.NRGBA{230, 90, 20, 255},
		Marker:     color.NRGBA{255, 220, 60, 255},
		QFill:      color.NRGBA{255, 220, 60, 51},
		ZeroLine:   color.NRGBA{255, 240, 220, 255},
		Grid:       color.NRGBA{255, 200, 160, 26},
		Background: color.NRGBA{16, 4, 0, 255},
	}
	monoTheme = Theme{
		Bar:        color.NRGBA{200, 200, 200, 255},
		Marker:     color.NRGBA{255, 255, 255, 255},
		QFill:      color.NRGBA{255, 255, 255, 40},
		ZeroLine:   color.NRGBA{255, 255, 255, 255},
		Grid:       color.NRGBA{255, 255, 255, 26},
		Background: color.NRGBA{0, 0, 0, 255},
	}
)

// Palette returns the theme registered under name, falling back to the
// default.
func Palette(name string) Theme {
	switch name {
	case "fire":
		return fireTheme
	case "mono":
		return monoTheme
	default:
		return defaultTheme
	}
}

// PaletteNames returns all theme identifiers.
func PaletteNames() []string {
	return []string{"default", "fire", "mono"}
}
