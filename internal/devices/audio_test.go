package devices

import "testing"

func testAudio(t *testing.T, desc Descriptor) (*Registry, *Audio) {
	t.Helper()
	reg, _ := newTestRegistry(t, desc)
	a, err := reg.Audio(firstHandle(t, reg, KindMicrophone))
	if err != nil {
		t.Fatalf("Audio: %v", err)
	}
	return reg, a
}

func TestAudioDefaults(t *testing.T) {
	_, a := testAudio(t, microphone())

	s, err := a.Settings()
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if s.SampleRate != 48000 || s.ChannelCount != 1 || s.EchoCancellation {
		t.Errorf("defaults = %+v", s)
	}
	if name, _ := a.Name(); name != "Built-in Microphone" {
		t.Errorf("name = %q", name)
	}
}

func TestAudioValidation(t *testing.T) {
	_, a := testAudio(t, microphone())

	if err := a.SetSampleRate(4000); !IsCode(err, ErrCodeInvalidArgument) {
		t.Errorf("low sample rate = %v", err)
	}
	if err := a.SetChannelCount(3); !IsCode(err, ErrCodeInvalidArgument) {
		t.Errorf("too many channels = %v", err)
	}
	if err := a.SetChannelCount(2); err != nil {
		t.Errorf("SetChannelCount(2): %v", err)
	}
	if err := a.SetSampleRate(16000); err != nil {
		t.Errorf("SetSampleRate(16000): %v", err)
	}
	if s, _ := a.Settings(); s.ChannelCount != 2 || s.SampleRate != 16000 {
		t.Errorf("settings = %+v", s)
	}
}

func TestEchoCancellationUnsupportedIsNoop(t *testing.T) {
	_, a := testAudio(t, usbMicrophone())

	if err := a.SetEchoCancellation(true); err != nil {
		t.Fatalf("SetEchoCancellation: %v", err)
	}
	if on, _ := a.EchoCancellation(); on {
		t.Error("echo cancellation enabled on unsupported device")
	}
}

func TestAudioDeferredWhileRunning(t *testing.T) {
	reg, a := testAudio(t, microphone())

	lease, err := reg.BeginSession(a.Handle(), KindMicrophone, nil)
	if err != nil {
		t.Fatalf("BeginSession: %v", err)
	}
	if err := a.SetEchoCancellation(true); err != nil {
		t.Fatalf("SetEchoCancellation: %v", err)
	}
	if on, _ := a.EchoCancellation(); on {
		t.Error("echo cancellation applied during session")
	}
	lease.End()

	next, err := reg.BeginSession(a.Handle(), KindMicrophone, nil)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer next.End()
	if !next.Audio().EchoCancellation {
		t.Error("pending echo cancellation not applied at restart")
	}
}
