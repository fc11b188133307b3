package devices

// Defaults applied when a discoverer leaves a field unset.
const (
	DefaultPreviewWidth  = 1280
	DefaultPreviewHeight = 720
	DefaultFrameRate     = 30
	DefaultMaxFrameRate  = 60
	DefaultMaxWidth      = 7680
	DefaultMaxHeight     = 4320
	DefaultSampleRate    = 48000
	DefaultChannelCount  = 1
)

// Descriptor is what a Discoverer reports for one piece of hardware.
type Descriptor struct {
	// Key identifies the hardware to the discoverer. It is stable across
	// discovery runs and is never exposed as the device's unique ID.
	Key    string
	Name   string
	Kind   Kind
	Flags  Flags
	Camera CameraCaps
	Audio  AudioCaps
}

// CameraCaps describes the fixed capabilities and defaults of a camera.
type CameraCaps struct {
	FieldOfView      FieldOfView
	ExposureRange    Range
	MaxZoom          float32
	MaxFrameRate     int
	MaxResolution    Resolution
	DefaultPreview   Resolution
	DefaultPhoto     Resolution
	DefaultFrameRate int
}

// AudioCaps describes the fixed capabilities and defaults of a microphone.
type AudioCaps struct {
	DefaultSampleRate int
	DefaultChannels   int
	MaxChannels       int
}

// normalize fills in defaults and repairs inconsistent capability values.
func (d Descriptor) normalize() Descriptor {
	switch d.Kind {
	case KindCamera:
		c := &d.Camera
		if c.MaxZoom < 1 {
			c.MaxZoom = 1
		}
		if c.ExposureRange.Min > c.ExposureRange.Max {
			c.ExposureRange.Min, c.ExposureRange.Max = c.ExposureRange.Max, c.ExposureRange.Min
		}
		if c.MaxFrameRate <= 0 {
			c.MaxFrameRate = DefaultMaxFrameRate
		}
		ceiling := Resolution{Width: DefaultMaxWidth, Height: DefaultMaxHeight}
		if !c.MaxResolution.fits(ceiling) {
			c.MaxResolution = ceiling
		}
		if !c.DefaultPreview.fits(c.MaxResolution) {
			c.DefaultPreview = Resolution{
				Width:  min(DefaultPreviewWidth, c.MaxResolution.Width),
				Height: min(DefaultPreviewHeight, c.MaxResolution.Height),
			}
		}
		if !c.DefaultPhoto.fits(c.MaxResolution) {
			c.DefaultPhoto = c.DefaultPreview
		}
		if c.DefaultFrameRate <= 0 || c.DefaultFrameRate > c.MaxFrameRate {
			c.DefaultFrameRate = min(DefaultFrameRate, c.MaxFrameRate)
		}
	case KindMicrophone:
		a := &d.Audio
		if a.DefaultSampleRate < MinSampleRate || a.DefaultSampleRate > MaxSampleRate {
			a.DefaultSampleRate = DefaultSampleRate
		}
		if a.MaxChannels <= 0 {
			a.MaxChannels = max(a.DefaultChannels, DefaultChannelCount)
		}
		if a.DefaultChannels <= 0 || a.DefaultChannels > a.MaxChannels {
			a.DefaultChannels = DefaultChannelCount
		}
	}
	return d
}

func (d Descriptor) defaultCamera() CameraSettings {
	c := d.Camera
	return CameraSettings{
		PreviewResolution: c.DefaultPreview,
		PhotoResolution:   c.DefaultPhoto,
		FrameRate:         c.DefaultFrameRate,
		FlashMode:         FlashOff,
		Orientation:       OrientationPortrait,
		ExposureBias:      c.ExposureRange.Clamp(0),
		ZoomRatio:         1,
		ExposurePoint:     Point{X: 0.5, Y: 0.5},
		FocusPoint:        Point{X: 0.5, Y: 0.5},
	}
}

func (d Descriptor) defaultAudio() AudioSettings {
	return AudioSettings{
		SampleRate:   d.Audio.DefaultSampleRate,
		ChannelCount: d.Audio.DefaultChannels,
	}
}
