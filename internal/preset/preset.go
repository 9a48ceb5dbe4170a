// Package preset saves and loads EQ state as JSON and can follow a preset
// file as it is edited.
package preset

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/guidoenr/paraeq/internal/eq"
)

// Preset is the persisted EQ state.
type Preset struct {
	Bands    []eq.Band `json:"bands"`
	HighPass float64   `json:"hpf"`
	LowPass  float64   `json:"lpf"`
	// Volume is omitted by builds without a volume stage.
	Volume float64 `json:"volume,omitempty"`
}

// DefaultPath returns paraeq-preset.json next to the binary, or a dotfile in
// the home directory.
func DefaultPath() string {
	if exe, err := os.Executable(); err == nil {
		return filepath.Join(filepath.Dir(exe), "paraeq-preset.json")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".paraeq-preset.json")
}

// Save writes p to path.
func Save(path string, p Preset) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads a preset from path.
func Load(path string) (Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, err
	}
	var p Preset
	if err := json.Unmarshal(data, &p); err != nil {
		return Preset{}, fmt.Errorf("parse preset %s: %w", path, err)
	}
	return p, nil
}

const settle = 100 * time.Millisecond

// Watch calls fn with the freshly loaded preset whenever path is written,
// until ctx is cancelled. Bursts of events within a short window collapse
// into one reload; unreadable intermediate states are logged and skipped.
func Watch(ctx context.Context, path string, logger *log.Logger, fn func(Preset)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory so atomic replaces (rename over) are seen.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	target := filepath.Clean(path)

	go func() {
		defer watcher.Close()
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(settle)
				} else {
					timer.Reset(settle)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				p, err := Load(path)
				if err != nil {
					if logger != nil {
						logger.Printf("preset reload skipped: %v", err)
					}
					continue
				}
				fn(p)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if logger != nil {
					logger.Printf("preset watcher error: %v", err)
				}
			}
		}
	}()
	return nil
}
