//go:build sdl

package render

import (
	"errors"
	"image/color"

	"github.com/veandco/go-sdl2/sdl"
)

// ErrWindowClosed is returned by Present once the user closes the window.
var ErrWindowClosed = errors.New("window closed")

// Window is a Surface shown in an SDL window. Drawing goes to an in-memory
// raster; Present uploads it as a streaming texture.
type Window struct {
	*Raster
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture
	title    string
}

// OpenWindow creates a width x height window.
func OpenWindow(title string, width, height int, background color.NRGBA) (*Window, error) {
	if err := sdl.InitSubSystem(sdl.INIT_VIDEO); err != nil {
		return nil, err
	}
	w := &Window{Raster: NewRaster(width, height, background), title: title}
	window, err := sdl.CreateWindow(
		title,
		sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		int32(width), int32(height),
		sdl.WINDOW_SHOWN,
	)
	if err != nil {
		w.Close()
		return nil, err
	}
	w.window = window
	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
	if err != nil {
		w.Close()
		return nil, err
	}
	w.renderer = renderer
	_ = renderer.SetLogicalSize(int32(width), int32(height))
	// image.RGBA stores bytes as R,G,B,A which is ABGR8888 on little endian.
	tex, err := renderer.CreateTexture(
		sdl.PIXELFORMAT_ABGR8888,
		sdl.TEXTUREACCESS_STREAMING,
		int32(width), int32(height),
	)
	if err != nil {
		w.Close()
		return nil, err
	}
	w.texture = tex
	return w, nil
}

// Present shows the raster and drains pending window events.
func (w *Window) Present(status string) error {
	if status != "" && status != w.title {
		w.window.SetTitle(status)
		w.title = status
	}
	img := w.Image()
	if err := w.texture.Update(nil, img.Pix, img.Stride); err != nil {
		return err
	}
	if err := w.renderer.Clear(); err != nil {
		return err
	}
	if err := w.renderer.Copy(w.texture, nil, nil); err != nil {
		return err
	}
	w.renderer.Present()
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		if _, ok := event.(*sdl.QuitEvent); ok {
			return ErrWindowClosed
		}
	}
	return nil
}

// Close releases SDL resources.
func (w *Window) Close() error {
	if w.texture != nil {
		w.texture.Destroy()
		w.texture = nil
	}
	if w.renderer != nil {
		w.renderer.Destroy()
		w.renderer = nil
	}
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
	sdl.QuitSubSystem(sdl.INIT_VIDEO)
	return nil
}

// SupportsSDL reports whether the binary was built with the sdl tag.
func SupportsSDL() bool { return true }
