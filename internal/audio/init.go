// Package audio moves samples between the engine and the outside world:
// PortAudio output, a paced null output and file decoding.
package audio

import (
	"errors"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// ErrNotInitialized is returned when a device is opened before Initialize.
var ErrNotInitialized = errors.New("portaudio not initialized")

var (
	hostMu   sync.Mutex
	hostRefs int
)

// Initialize starts PortAudio. Calls nest; each successful one needs a
// matching Terminate.
func Initialize() error {
	hostMu.Lock()
	defer hostMu.Unlock()
	if hostRefs == 0 {
		if err := portaudio.Initialize(); err != nil {
			return err
		}
	}
	hostRefs++
	return nil
}

// Terminate releases one Initialize and shuts PortAudio down with the last.
func Terminate() {
	hostMu.Lock()
	defer hostMu.Unlock()
	if hostRefs == 0 {
		return
	}
	hostRefs--
	if hostRefs == 0 {
		_ = portaudio.Terminate()
	}
}

func initialized() bool {
	hostMu.Lock()
	defer hostMu.Unlock()
	return hostRefs > 0
}
