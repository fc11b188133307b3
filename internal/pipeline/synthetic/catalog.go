package synthetic

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/mediadevice/internal/devices"
)

// Catalog lists the devices the synthetic backend pretends to have.
type Catalog struct {
	Cameras     []CameraEntry     `toml:"camera"`
	Microphones []MicrophoneEntry `toml:"microphone"`
}

// CameraEntry describes one synthetic camera.
type CameraEntry struct {
	Key           string              `toml:"key"`
	Name          string              `toml:"name"`
	Flags         []string            `toml:"flags"`
	FieldOfView   devices.FieldOfView `toml:"field_of_view"`
	Exposure      devices.Range       `toml:"exposure"`
	MaxZoom       float32             `toml:"max_zoom"`
	MaxFrameRate  int                 `toml:"max_frame_rate"`
	MaxResolution devices.Resolution  `toml:"max_resolution"`
	FrameRate     int                 `toml:"frame_rate"`
	Preview       devices.Resolution  `toml:"preview"`
	Photo         devices.Resolution  `toml:"photo"`
}

// MicrophoneEntry describes one synthetic microphone.
type MicrophoneEntry struct {
	Key         string   `toml:"key"`
	Name        string   `toml:"name"`
	Flags       []string `toml:"flags"`
	SampleRate  int      `toml:"sample_rate"`
	Channels    int      `toml:"channels"`
	MaxChannels int      `toml:"max_channels"`
	ToneHz      float64  `toml:"tone_hz"`
}

// DefaultCatalog is used when no catalog file is configured: a rear camera
// with flash, torch and zoom, a front camera, and an internal microphone.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Cameras: []CameraEntry{
			{
				Key:  "synthetic:camera:rear",
				Name: "Rear Test Pattern",
				Flags: []string{
					"internal", "flash", "torch", "exposure_point", "focus_point",
					"exposure_lock", "focus_lock", "white_balance_lock",
				},
				FieldOfView:  devices.FieldOfView{Horizontal: 68, Vertical: 53},
				Exposure:     devices.Range{Min: -2, Max: 2},
				MaxZoom:      4,
				MaxFrameRate: 60,
				Photo:        devices.Resolution{Width: 1920, Height: 1080},
			},
			{
				Key:          "synthetic:camera:front",
				Name:         "Front Test Pattern",
				Flags:        []string{"internal", "front_facing", "exposure_lock"},
				FieldOfView:  devices.FieldOfView{Horizontal: 78, Vertical: 62},
				Exposure:     devices.Range{Min: -1, Max: 1},
				MaxZoom:      1,
				MaxFrameRate: 30,
				Preview:      devices.Resolution{Width: 640, Height: 480},
			},
		},
		Microphones: []MicrophoneEntry{
			{
				Key:         "synthetic:microphone:0",
				Name:        "Tone Generator",
				Flags:       []string{"internal", "echo_cancellation"},
				SampleRate:  48000,
				Channels:    1,
				MaxChannels: 2,
				ToneHz:      440,
			},
		},
	}
}

// LoadCatalog reads a catalog from a TOML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var c Catalog
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if _, err := c.Descriptors(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Descriptors converts the catalog into discovery descriptors.
func (c *Catalog) Descriptors() ([]devices.Descriptor, error) {
	descs := make([]devices.Descriptor, 0, len(c.Cameras)+len(c.Microphones))

	for _, cam := range c.Cameras {
		flags, err := devices.ParseFlags(cam.Flags)
		if err != nil {
			return nil, fmt.Errorf("camera %q: %w", cam.Key, err)
		}
		descs = append(descs, devices.Descriptor{
			Key:   cam.Key,
			Name:  cam.Name,
			Kind:  devices.KindCamera,
			Flags: flags,
			Camera: devices.CameraCaps{
				FieldOfView:      cam.FieldOfView,
				ExposureRange:    cam.Exposure,
				MaxZoom:          cam.MaxZoom,
				MaxFrameRate:     cam.MaxFrameRate,
				MaxResolution:    cam.MaxResolution,
				DefaultPreview:   cam.Preview,
				DefaultPhoto:     cam.Photo,
				DefaultFrameRate: cam.FrameRate,
			},
		})
	}

	for _, mic := range c.Microphones {
		flags, err := devices.ParseFlags(mic.Flags)
		if err != nil {
			return nil, fmt.Errorf("microphone %q: %w", mic.Key, err)
		}
		descs = append(descs, devices.Descriptor{
			Key:   mic.Key,
			Name:  mic.Name,
			Kind:  devices.KindMicrophone,
			Flags: flags,
			Audio: devices.AudioCaps{
				DefaultSampleRate: mic.SampleRate,
				DefaultChannels:   mic.Channels,
				MaxChannels:       mic.MaxChannels,
			},
		})
	}

	return descs, nil
}

func (c *Catalog) toneFor(key string) float64 {
	for _, mic := range c.Microphones {
		if mic.Key == key && mic.ToneHz > 0 {
			return mic.ToneHz
		}
	}
	return defaultToneHz
}
