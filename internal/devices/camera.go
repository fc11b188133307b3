package devices

import "math"

// Camera is a configuration view over a camera handle. Every call resolves
// the handle again, so a Camera becomes unusable once the handle is released.
type Camera struct {
	reg *Registry
	h   Handle
}

// Camera returns a configuration view for a camera handle.
func (r *Registry) Camera(h Handle) (*Camera, error) {
	rec, err := r.resolve(h)
	if err != nil {
		return nil, err
	}
	if rec.desc.Kind != KindCamera {
		return nil, errUnsupported("device %s is not a camera", rec.id)
	}
	return &Camera{reg: r, h: h}, nil
}

// Handle returns the handle the view was created from.
func (c *Camera) Handle() Handle { return c.h }

// with resolves the handle and runs fn with the record locked.
func (c *Camera) with(fn func(rec *record) error) error {
	rec, err := c.reg.resolve(c.h)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return fn(rec)
}

// FieldOfView returns the camera's field of view in degrees.
func (c *Camera) FieldOfView() (FieldOfView, error) {
	var fov FieldOfView
	err := c.with(func(rec *record) error {
		fov = rec.desc.Camera.FieldOfView
		return nil
	})
	return fov, err
}

// ExposureRange returns the supported exposure bias range.
func (c *Camera) ExposureRange() (Range, error) {
	var rng Range
	err := c.with(func(rec *record) error {
		rng = rec.desc.Camera.ExposureRange
		return nil
	})
	return rng, err
}

// ZoomRange returns the supported zoom ratio range. Min is always 1.
func (c *Camera) ZoomRange() (Range, error) {
	var rng Range
	err := c.with(func(rec *record) error {
		rng = Range{Min: 1, Max: rec.desc.Camera.MaxZoom}
		return nil
	})
	return rng, err
}

// MaxFrameRate returns the highest frame rate the camera accepts.
func (c *Camera) MaxFrameRate() (int, error) {
	var fps int
	err := c.with(func(rec *record) error {
		fps = rec.desc.Camera.MaxFrameRate
		return nil
	})
	return fps, err
}

// MaxResolution returns the largest preview or photo resolution the camera
// accepts.
func (c *Camera) MaxResolution() (Resolution, error) {
	var res Resolution
	err := c.with(func(rec *record) error {
		res = rec.desc.Camera.MaxResolution
		return nil
	})
	return res, err
}

// Settings returns the active configuration.
func (c *Camera) Settings() (CameraSettings, error) {
	var s CameraSettings
	err := c.with(func(rec *record) error {
		s = rec.camera
		return nil
	})
	return s, err
}

// Pending returns the configuration that will take effect at the next
// start, and whether it differs from the active one because idle-only
// settings were changed during a session.
func (c *Camera) Pending() (CameraSettings, bool, error) {
	var (
		s  CameraSettings
		ok bool
	)
	err := c.with(func(rec *record) error {
		s = rec.camera
		if rec.pendingCamera != nil {
			s, ok = *rec.pendingCamera, true
		}
		return nil
	})
	return s, ok, err
}

func (c *Camera) get(fn func(s CameraSettings)) error {
	return c.with(func(rec *record) error {
		fn(rec.camera)
		return nil
	})
}

// PreviewResolution returns the active preview resolution.
func (c *Camera) PreviewResolution() (Resolution, error) {
	var v Resolution
	err := c.get(func(s CameraSettings) { v = s.PreviewResolution })
	return v, err
}

// PhotoResolution returns the active photo resolution.
func (c *Camera) PhotoResolution() (Resolution, error) {
	var v Resolution
	err := c.get(func(s CameraSettings) { v = s.PhotoResolution })
	return v, err
}

// FrameRate returns the active preview frame rate.
func (c *Camera) FrameRate() (int, error) {
	var v int
	err := c.get(func(s CameraSettings) { v = s.FrameRate })
	return v, err
}

// FlashMode returns the active flash mode.
func (c *Camera) FlashMode() (FlashMode, error) {
	var v FlashMode
	err := c.get(func(s CameraSettings) { v = s.FlashMode })
	return v, err
}

// Orientation returns the active frame orientation.
func (c *Camera) Orientation() (Orientation, error) {
	var v Orientation
	err := c.get(func(s CameraSettings) { v = s.Orientation })
	return v, err
}

// ExposureBias returns the current exposure bias.
func (c *Camera) ExposureBias() (float32, error) {
	var v float32
	err := c.get(func(s CameraSettings) { v = s.ExposureBias })
	return v, err
}

// ZoomRatio returns the current zoom ratio.
func (c *Camera) ZoomRatio() (float32, error) {
	var v float32
	err := c.get(func(s CameraSettings) { v = s.ZoomRatio })
	return v, err
}

// ExposureLock reports whether exposure is locked.
func (c *Camera) ExposureLock() (bool, error) {
	var v bool
	err := c.get(func(s CameraSettings) { v = s.ExposureLock })
	return v, err
}

// FocusLock reports whether focus is locked.
func (c *Camera) FocusLock() (bool, error) {
	var v bool
	err := c.get(func(s CameraSettings) { v = s.FocusLock })
	return v, err
}

// WhiteBalanceLock reports whether white balance is locked.
func (c *Camera) WhiteBalanceLock() (bool, error) {
	var v bool
	err := c.get(func(s CameraSettings) { v = s.WhiteBalanceLock })
	return v, err
}

// TorchEnabled reports whether the torch is on.
func (c *Camera) TorchEnabled() (bool, error) {
	var v bool
	err := c.get(func(s CameraSettings) { v = s.TorchEnabled })
	return v, err
}

// ExposurePoint returns the exposure metering point.
func (c *Camera) ExposurePoint() (Point, error) {
	var v Point
	err := c.get(func(s CameraSettings) { v = s.ExposurePoint })
	return v, err
}

// FocusPoint returns the focus point.
func (c *Camera) FocusPoint() (Point, error) {
	var v Point
	err := c.get(func(s CameraSettings) { v = s.FocusPoint })
	return v, err
}

// SetPreviewResolution sets the preview resolution. Idle-only.
func (c *Camera) SetPreviewResolution(res Resolution) error {
	if !res.valid() {
		return errInvalidArgument("preview resolution %s must be positive", res)
	}
	return c.with(func(rec *record) error {
		if limit := rec.desc.Camera.MaxResolution; !res.fits(limit) {
			return errInvalidArgument("preview resolution %s exceeds %s", res, limit)
		}
		rec.updateIdleCamera(func(s *CameraSettings) { s.PreviewResolution = res })
		return nil
	})
}

// SetPhotoResolution sets the photo resolution. Idle-only.
func (c *Camera) SetPhotoResolution(res Resolution) error {
	if !res.valid() {
		return errInvalidArgument("photo resolution %s must be positive", res)
	}
	return c.with(func(rec *record) error {
		if limit := rec.desc.Camera.MaxResolution; !res.fits(limit) {
			return errInvalidArgument("photo resolution %s exceeds %s", res, limit)
		}
		rec.updateIdleCamera(func(s *CameraSettings) { s.PhotoResolution = res })
		return nil
	})
}

// SetFrameRate sets the preview frame rate. Idle-only.
func (c *Camera) SetFrameRate(fps int) error {
	return c.with(func(rec *record) error {
		if fps < 1 || fps > rec.desc.Camera.MaxFrameRate {
			return errInvalidArgument("frame rate %d outside [1, %d]", fps, rec.desc.Camera.MaxFrameRate)
		}
		rec.updateIdleCamera(func(s *CameraSettings) { s.FrameRate = fps })
		return nil
	})
}

// SetFlashMode sets the photo flash mode. Idle-only. Modes other than
// FlashOff need FlagFlashSupported.
func (c *Camera) SetFlashMode(mode FlashMode) error {
	if mode < FlashOff || mode > FlashAuto {
		return errInvalidArgument("unknown flash mode %d", mode)
	}
	return c.with(func(rec *record) error {
		if mode != FlashOff && !rec.desc.Flags.Flash() {
			return errUnsupported("device %s has no flash", rec.id)
		}
		rec.updateIdleCamera(func(s *CameraSettings) { s.FlashMode = mode })
		return nil
	})
}

// SetOrientation sets the delivered frame orientation. Idle-only.
func (c *Camera) SetOrientation(o Orientation) error {
	if o < OrientationPortrait || o > OrientationLandscapeRight {
		return errInvalidArgument("unknown orientation %d", o)
	}
	return c.with(func(rec *record) error {
		rec.updateIdleCamera(func(s *CameraSettings) { s.Orientation = o })
		return nil
	})
}

// SetExposureBias sets the exposure bias, clamped to ExposureRange.
func (c *Camera) SetExposureBias(bias float32) error {
	if !finite(bias) {
		return errInvalidArgument("exposure bias must be finite")
	}
	return c.with(func(rec *record) error {
		v := rec.desc.Camera.ExposureRange.Clamp(bias)
		rec.updateLiveCamera(func(s *CameraSettings) { s.ExposureBias = v })
		return nil
	})
}

// SetZoomRatio sets the zoom ratio, clamped to ZoomRange.
func (c *Camera) SetZoomRatio(ratio float32) error {
	if !finite(ratio) {
		return errInvalidArgument("zoom ratio must be finite")
	}
	return c.with(func(rec *record) error {
		v := Range{Min: 1, Max: rec.desc.Camera.MaxZoom}.Clamp(ratio)
		rec.updateLiveCamera(func(s *CameraSettings) { s.ZoomRatio = v })
		return nil
	})
}

// SetExposureLock locks or unlocks exposure.
func (c *Camera) SetExposureLock(locked bool) error {
	return c.setGated(FlagExposureLockSupported, "exposure lock", func(s *CameraSettings) { s.ExposureLock = locked })
}

// SetFocusLock locks or unlocks focus.
func (c *Camera) SetFocusLock(locked bool) error {
	return c.setGated(FlagFocusLockSupported, "focus lock", func(s *CameraSettings) { s.FocusLock = locked })
}

// SetWhiteBalanceLock locks or unlocks white balance.
func (c *Camera) SetWhiteBalanceLock(locked bool) error {
	return c.setGated(FlagWhiteBalanceLockSupported, "white balance lock", func(s *CameraSettings) { s.WhiteBalanceLock = locked })
}

// SetTorchEnabled turns the torch on or off.
func (c *Camera) SetTorchEnabled(enabled bool) error {
	return c.setGated(FlagTorchSupported, "torch", func(s *CameraSettings) { s.TorchEnabled = enabled })
}

// SetExposurePoint sets the exposure metering point.
func (c *Camera) SetExposurePoint(p Point) error {
	if !p.valid() {
		return errInvalidArgument("exposure point (%g, %g) outside [0, 1]", p.X, p.Y)
	}
	return c.setGated(FlagExposurePointSupported, "exposure point", func(s *CameraSettings) { s.ExposurePoint = p })
}

// SetFocusPoint sets the focus point.
func (c *Camera) SetFocusPoint(p Point) error {
	if !p.valid() {
		return errInvalidArgument("focus point (%g, %g) outside [0, 1]", p.X, p.Y)
	}
	return c.setGated(FlagFocusPointSupported, "focus point", func(s *CameraSettings) { s.FocusPoint = p })
}

func (c *Camera) setGated(flag Flags, what string, fn func(*CameraSettings)) error {
	return c.with(func(rec *record) error {
		if !rec.desc.Flags.Has(flag) {
			return errUnsupported("device %s does not support %s", rec.id, what)
		}
		rec.updateLiveCamera(fn)
		return nil
	})
}

func (p Point) valid() bool {
	return p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
