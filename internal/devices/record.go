package devices

import "sync"

// ControlSink receives live camera controls while a session runs.
// ApplyControls is called with the record lock held and must not call
// back into the registry.
type ControlSink interface {
	ApplyControls(settings CameraSettings)
}

// record is the single shared state of one piece of hardware. Every handle
// issued for the device points at the same record.
type record struct {
	id   string
	desc Descriptor

	// handles counts live arena slots; guarded by Registry.mu.
	handles int

	mu            sync.Mutex
	running       bool
	detached      bool
	camera        CameraSettings
	audio         AudioSettings
	pendingCamera *CameraSettings
	pendingAudio  *AudioSettings
	controls      ControlSink
}

func newRecord(id string, desc Descriptor) *record {
	rec := &record{id: id, desc: desc}
	switch desc.Kind {
	case KindCamera:
		rec.camera = desc.defaultCamera()
	case KindMicrophone:
		rec.audio = desc.defaultAudio()
	}
	return rec
}

func (rec *record) info() Info {
	rec.mu.Lock()
	running := rec.running
	rec.mu.Unlock()
	return Info{
		ID:      rec.id,
		Name:    rec.desc.Name,
		Kind:    rec.desc.Kind,
		Flags:   rec.desc.Flags,
		Running: running,
	}
}

// updateIdleCamera applies fn to the active settings, or to the pending
// settings while a session runs. Must hold rec.mu.
func (rec *record) updateIdleCamera(fn func(*CameraSettings)) {
	if rec.running {
		if rec.pendingCamera == nil {
			pending := rec.camera
			rec.pendingCamera = &pending
		}
		fn(rec.pendingCamera)
		return
	}
	fn(&rec.camera)
}

// updateLiveCamera applies fn immediately and forwards the result to the
// running pipeline. Must hold rec.mu.
func (rec *record) updateLiveCamera(fn func(*CameraSettings)) {
	fn(&rec.camera)
	if rec.pendingCamera != nil {
		fn(rec.pendingCamera)
	}
	if rec.running && rec.controls != nil {
		rec.controls.ApplyControls(rec.camera)
	}
}

// updateIdleAudio mirrors updateIdleCamera. Must hold rec.mu.
func (rec *record) updateIdleAudio(fn func(*AudioSettings)) {
	if rec.running {
		if rec.pendingAudio == nil {
			pending := rec.audio
			rec.pendingAudio = &pending
		}
		fn(rec.pendingAudio)
		return
	}
	fn(&rec.audio)
}

// Lease marks a device as running for the lifetime of one session. The
// settings captured at start stay fixed for the whole session.
type Lease struct {
	rec    *record
	camera CameraSettings
	audio  AudioSettings
	once   sync.Once
}

// DeviceID returns the unique ID of the leased device.
func (l *Lease) DeviceID() string { return l.rec.id }

// Descriptor returns the device's discovery descriptor.
func (l *Lease) Descriptor() Descriptor { return l.rec.desc }

// Camera returns the camera settings in effect when the session started.
func (l *Lease) Camera() CameraSettings { return l.camera }

// Audio returns the audio settings in effect when the session started.
func (l *Lease) Audio() AudioSettings { return l.audio }

// Detached reports whether the device has disappeared since the lease began.
func (l *Lease) Detached() bool {
	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()
	return l.rec.detached
}

// End returns the device to idle. It is safe to call more than once.
func (l *Lease) End() {
	l.once.Do(func() {
		l.rec.mu.Lock()
		l.rec.running = false
		l.rec.controls = nil
		l.rec.mu.Unlock()
	})
}
