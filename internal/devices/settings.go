package devices

import "fmt"

// Resolution is a frame size in pixels.
type Resolution struct {
	Width  int `json:"width" toml:"width"`
	Height int `json:"height" toml:"height"`
}

func (r Resolution) String() string { return fmt.Sprintf("%dx%d", r.Width, r.Height) }

func (r Resolution) valid() bool { return r.Width > 0 && r.Height > 0 }

// fits reports whether r is valid and no larger than limit on either axis.
func (r Resolution) fits(limit Resolution) bool {
	return r.valid() && r.Width <= limit.Width && r.Height <= limit.Height
}

// Range is a closed float interval.
type Range struct {
	Min float32 `json:"min" toml:"min"`
	Max float32 `json:"max" toml:"max"`
}

// Clamp limits v to the range.
func (r Range) Clamp(v float32) float32 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// FieldOfView is the camera's angular field of view in degrees.
type FieldOfView struct {
	Horizontal float32 `json:"horizontal" toml:"horizontal"`
	Vertical   float32 `json:"vertical" toml:"vertical"`
}

// Point is a normalized image coordinate; both axes are in [0, 1] with the
// origin at the top left.
type Point struct {
	X float32 `json:"x" toml:"x"`
	Y float32 `json:"y" toml:"y"`
}

// FlashMode controls the flash used for photo capture.
type FlashMode int32

const (
	FlashOff  FlashMode = 0
	FlashOn   FlashMode = 1
	FlashAuto FlashMode = 2
)

func (m FlashMode) String() string {
	switch m {
	case FlashOff:
		return "off"
	case FlashOn:
		return "on"
	case FlashAuto:
		return "auto"
	default:
		return fmt.Sprintf("flash(%d)", int32(m))
	}
}

// ParseFlashMode parses "off", "on" or "auto".
func ParseFlashMode(s string) (FlashMode, error) {
	for _, m := range []FlashMode{FlashOff, FlashOn, FlashAuto} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, errInvalidArgument("unknown flash mode %q", s)
}

// Orientation is the orientation frames are rotated to before delivery.
type Orientation int32

const (
	OrientationPortrait           Orientation = 1
	OrientationPortraitUpsideDown Orientation = 2
	OrientationLandscapeLeft      Orientation = 3
	OrientationLandscapeRight     Orientation = 4
)

func (o Orientation) String() string {
	switch o {
	case OrientationPortrait:
		return "portrait"
	case OrientationPortraitUpsideDown:
		return "portrait_upside_down"
	case OrientationLandscapeLeft:
		return "landscape_left"
	case OrientationLandscapeRight:
		return "landscape_right"
	default:
		return fmt.Sprintf("orientation(%d)", int32(o))
	}
}

// ParseOrientation parses the names produced by Orientation.String.
func ParseOrientation(s string) (Orientation, error) {
	for o := OrientationPortrait; o <= OrientationLandscapeRight; o++ {
		if o.String() == s {
			return o, nil
		}
	}
	return 0, errInvalidArgument("unknown orientation %q", s)
}

// CameraSettings is the full mutable configuration of a camera.
type CameraSettings struct {
	PreviewResolution Resolution  `json:"preview_resolution" toml:"preview_resolution"`
	PhotoResolution   Resolution  `json:"photo_resolution" toml:"photo_resolution"`
	FrameRate         int         `json:"frame_rate" toml:"frame_rate"`
	FlashMode         FlashMode   `json:"flash_mode" toml:"flash_mode"`
	Orientation       Orientation `json:"orientation" toml:"orientation"`

	ExposureBias     float32 `json:"exposure_bias" toml:"exposure_bias"`
	ZoomRatio        float32 `json:"zoom_ratio" toml:"zoom_ratio"`
	ExposureLock     bool    `json:"exposure_lock" toml:"exposure_lock"`
	FocusLock        bool    `json:"focus_lock" toml:"focus_lock"`
	WhiteBalanceLock bool    `json:"white_balance_lock" toml:"white_balance_lock"`
	TorchEnabled     bool    `json:"torch_enabled" toml:"torch_enabled"`
	ExposurePoint    Point   `json:"exposure_point" toml:"exposure_point"`
	FocusPoint       Point   `json:"focus_point" toml:"focus_point"`
}

// AudioSettings is the full mutable configuration of a microphone.
type AudioSettings struct {
	SampleRate       int  `json:"sample_rate" toml:"sample_rate"`
	ChannelCount     int  `json:"channel_count" toml:"channel_count"`
	EchoCancellation bool `json:"echo_cancellation" toml:"echo_cancellation"`
}

// Sample rate bounds accepted by SetSampleRate.
const (
	MinSampleRate = 8000
	MaxSampleRate = 192000
)
