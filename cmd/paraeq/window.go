package main

import (
	"context"
	"time"

	"github.com/guidoenr/paraeq/internal/render"
	"github.com/guidoenr/paraeq/internal/session"
)

const (
	windowWidth  = 1000
	windowHeight = 400
)

// runWindow draws the spectrum into an SDL window on the calling goroutine
// until ctx ends or the window is closed. The window keeps presenting while
// paused so it stays responsive; the spectrum freezes with the analyser.
func runWindow(ctx context.Context, s *session.Session, theme string, fps float64) error {
	style := s.Style(theme)
	win, err := render.OpenWindow("paraeq", windowWidth, windowHeight, style.Theme.Background)
	if err != nil {
		return err
	}
	defer win.Close()

	spectrum := render.NewSpectrum(style)
	ticker := time.NewTicker(time.Duration(float64(time.Second) / fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			spectrum.Draw(win, s.Frame())
			if err := win.Present("paraeq - " + s.String()); err != nil {
				return err
			}
		}
	}
}
