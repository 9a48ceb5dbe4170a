//go:build !sdl

package render

import (
	"errors"
	"image/color"
)

// ErrWindowClosed is returned by Present once the user closes the window.
var ErrWindowClosed = errors.New("window closed")

// Window is unavailable without the sdl build tag.
type Window struct {
	*Raster
}

func OpenWindow(title string, width, height int, background color.NRGBA) (*Window, error) {
	return nil, errors.New("SDL window not enabled; rebuild with -tags sdl")
}

func (w *Window) Present(string) error { return ErrWindowClosed }

func (w *Window) Close() error { return nil }

func SupportsSDL() bool { return false }
