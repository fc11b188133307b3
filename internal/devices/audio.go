package devices

// Audio is a configuration view over a microphone handle.
type Audio struct {
	reg *Registry
	h   Handle
}

// Audio returns a configuration view for a microphone handle.
func (r *Registry) Audio(h Handle) (*Audio, error) {
	rec, err := r.resolve(h)
	if err != nil {
		return nil, err
	}
	if rec.desc.Kind != KindMicrophone {
		return nil, errUnsupported("device %s is not a microphone", rec.id)
	}
	return &Audio{reg: r, h: h}, nil
}

// Handle returns the handle the view was created from.
func (a *Audio) Handle() Handle { return a.h }

func (a *Audio) with(fn func(rec *record) error) error {
	rec, err := a.reg.resolve(a.h)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return fn(rec)
}

// Name returns the microphone's name.
func (a *Audio) Name() (string, error) {
	var name string
	err := a.with(func(rec *record) error {
		name = rec.desc.Name
		return nil
	})
	return name, err
}

// MaxChannels returns the highest channel count the microphone accepts.
func (a *Audio) MaxChannels() (int, error) {
	var n int
	err := a.with(func(rec *record) error {
		n = rec.desc.Audio.MaxChannels
		return nil
	})
	return n, err
}

// Settings returns the active configuration.
func (a *Audio) Settings() (AudioSettings, error) {
	var s AudioSettings
	err := a.with(func(rec *record) error {
		s = rec.audio
		return nil
	})
	return s, err
}

// Pending returns the configuration for the next start and whether it
// differs from the active one.
func (a *Audio) Pending() (AudioSettings, bool, error) {
	var (
		s  AudioSettings
		ok bool
	)
	err := a.with(func(rec *record) error {
		s = rec.audio
		if rec.pendingAudio != nil {
			s, ok = *rec.pendingAudio, true
		}
		return nil
	})
	return s, ok, err
}

// SampleRate returns the active sample rate in Hz.
func (a *Audio) SampleRate() (int, error) {
	s, err := a.Settings()
	return s.SampleRate, err
}

// ChannelCount returns the active channel count.
func (a *Audio) ChannelCount() (int, error) {
	s, err := a.Settings()
	return s.ChannelCount, err
}

// EchoCancellation reports whether echo cancellation is enabled.
func (a *Audio) EchoCancellation() (bool, error) {
	s, err := a.Settings()
	return s.EchoCancellation, err
}

// SetSampleRate sets the sample rate. Idle-only.
func (a *Audio) SetSampleRate(rate int) error {
	if rate < MinSampleRate || rate > MaxSampleRate {
		return errInvalidArgument("sample rate %d outside [%d, %d]", rate, MinSampleRate, MaxSampleRate)
	}
	return a.with(func(rec *record) error {
		rec.updateIdleAudio(func(s *AudioSettings) { s.SampleRate = rate })
		return nil
	})
}

// SetChannelCount sets the channel count. Idle-only.
func (a *Audio) SetChannelCount(n int) error {
	return a.with(func(rec *record) error {
		if n < 1 || n > rec.desc.Audio.MaxChannels {
			return errInvalidArgument("channel count %d outside [1, %d]", n, rec.desc.Audio.MaxChannels)
		}
		rec.updateIdleAudio(func(s *AudioSettings) { s.ChannelCount = n })
		return nil
	})
}

// SetEchoCancellation enables or disables echo cancellation. Idle-only.
// On a microphone without FlagEchoCancellationSupported the call is a
// no-op and the value stays false.
func (a *Audio) SetEchoCancellation(enabled bool) error {
	return a.with(func(rec *record) error {
		if !rec.desc.Flags.EchoCancellation() {
			return nil
		}
		rec.updateIdleAudio(func(s *AudioSettings) { s.EchoCancellation = enabled })
		return nil
	})
}
