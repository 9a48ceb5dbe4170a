package audio

import (
	"fmt"
	"sort"

	"github.com/gordonklaus/portaudio"
)

// Device describes a PortAudio output device.
type Device struct {
	Name            string
	MaxOutput       int
	DefaultSampleHz float64
	HostAPI         string
	IsDefault       bool
}

func (d Device) String() string {
	mark := " "
	if d.IsDefault {
		mark = "*"
	}
	return fmt.Sprintf("%s [%s] %s (%d ch, %.0f Hz)", mark, d.HostAPI, d.Name, d.MaxOutput, d.DefaultSampleHz)
}

// ListDevices returns every device that can play audio, sorted by host and
// name.
func ListDevices() ([]Device, error) {
	hosts, err := portaudio.HostApis()
	if err != nil {
		return nil, fmt.Errorf("host apis: %w", err)
	}

	defaultIndex := -1
	if def, err := portaudio.DefaultOutputDevice(); err == nil && def != nil {
		defaultIndex = def.Index
	}

	var devices []Device
	for _, host := range hosts {
		for _, d := range host.Devices {
			if d.MaxOutputChannels <= 0 {
				continue
			}
			devices = append(devices, Device{
				Name:            d.Name,
				MaxOutput:       d.MaxOutputChannels,
				DefaultSampleHz: d.DefaultSampleRate,
				HostAPI:         host.Name,
				IsDefault:       d.Index == defaultIndex,
			})
		}
	}

	sort.Slice(devices, func(i, j int) bool {
		if devices[i].HostAPI == devices[j].HostAPI {
			return devices[i].Name < devices[j].Name
		}
		return devices[i].HostAPI < devices[j].HostAPI
	})

	return devices, nil
}
