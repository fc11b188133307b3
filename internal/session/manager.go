package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/mediadevice/internal/delivery"
	"github.com/smazurov/mediadevice/internal/devices"
	"github.com/smazurov/mediadevice/internal/pipeline"
)

// Manager runs at most one capture session per device.
type Manager struct {
	opts     Options
	logger   *slog.Logger
	mu       sync.RWMutex
	sessions map[string]*session
}

// session tracks one running device.
type session struct {
	id        string
	deviceID  string
	kind      devices.Kind
	state     State
	startedAt time.Time
	lastError error
	lease     *devices.Lease

	camera  pipeline.CameraPipeline
	audio   pipeline.AudioPipeline
	frames  *delivery.Channel[delivery.Frame]
	samples *delivery.Channel[delivery.SampleBuffer]

	// controls forwards live camera controls once the pipeline is open.
	controls atomic.Pointer[pipeline.CameraPipeline]

	photos      map[*delivery.Channel[delivery.Frame]]struct{}
	photosTaken atomic.Uint64

	firstOnce  sync.Once
	firstFrame delivery.Frame
	firstReady chan struct{}
	done       chan struct{}
}

// ApplyControls implements devices.ControlSink.
func (s *session) ApplyControls(settings devices.CameraSettings) {
	if p := s.controls.Load(); p != nil {
		(*p).ApplyControls(settings)
	}
}

// NewManager creates a session manager and registers it with the registry
// so sessions on devices that disappear are stopped.
func NewManager(opts *Options) *Manager {
	if opts == nil || opts.Registry == nil || opts.Backend == nil || opts.Gate == nil {
		panic("session: Options with Registry, Backend and Gate is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = delivery.DefaultDrainTimeout
	}

	m := &Manager{
		opts:     *opts,
		logger:   logger,
		sessions: make(map[string]*session),
	}
	opts.Registry.SetDetachHandler(func(deviceID string) {
		m.logger.Warn("Running device detached, stopping session", "device_id", deviceID)
		if err := m.stopDevice(deviceID); err != nil {
			// A session still starting notices the detach itself.
			m.logger.Debug("No running session to stop", "device_id", deviceID, "error", err)
		}
	})
	return m
}

// StartCamera starts delivering preview frames from the camera behind h to
// handler. The handler runs on a delivery goroutine.
func (m *Manager) StartCamera(ctx context.Context, h devices.Handle, handler delivery.FrameHandler) error {
	s, err := m.begin(ctx, h, devices.KindCamera)
	if err != nil {
		return err
	}

	pipe, err := m.opts.Backend.OpenCamera(ctx, s.lease.Descriptor())
	if err != nil {
		return m.abort(s, fmt.Errorf("failed to open camera: %w", err))
	}

	wrapped := func(f delivery.Frame) {
		s.firstOnce.Do(func() {
			s.firstFrame = f.Clone()
			close(s.firstReady)
		})
		handler(f)
	}
	frames := delivery.NewFrameChannel(wrapped, m.channelOptions(s, "preview"))
	m.mu.Lock()
	s.frames = frames
	s.camera = pipe
	m.mu.Unlock()
	s.controls.Store(&pipe)

	if err := pipe.Start(s.lease.Camera(), frames, m.errorFunc(s.deviceID)); err != nil {
		frames.Close()
		return m.abort(s, fmt.Errorf("failed to start camera: %w", err))
	}

	return m.running(s)
}

// StartMicrophone starts delivering sample buffers from the microphone
// behind h to handler.
func (m *Manager) StartMicrophone(ctx context.Context, h devices.Handle, handler delivery.SampleHandler) error {
	s, err := m.begin(ctx, h, devices.KindMicrophone)
	if err != nil {
		return err
	}

	pipe, err := m.opts.Backend.OpenMicrophone(ctx, s.lease.Descriptor())
	if err != nil {
		return m.abort(s, fmt.Errorf("failed to open microphone: %w", err))
	}

	samples := delivery.NewSampleChannel(handler, m.channelOptions(s, "audio"))
	m.mu.Lock()
	s.samples = samples
	s.audio = pipe
	m.mu.Unlock()

	if err := pipe.Start(s.lease.Audio(), samples, m.errorFunc(s.deviceID)); err != nil {
		samples.Close()
		return m.abort(s, fmt.Errorf("failed to start microphone: %w", err))
	}

	return m.running(s)
}

// begin validates the request, claims the device and registers a session
// in the starting state.
func (m *Manager) begin(ctx context.Context, h devices.Handle, kind devices.Kind) (*session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reg := m.opts.Registry
	actual, err := reg.Kind(h)
	if err != nil {
		return nil, err
	}
	if actual != kind {
		return nil, devices.NewError(devices.ErrCodeUnsupportedOperation,
			fmt.Sprintf("cannot start a %s session on a %s", kind, actual), nil)
	}
	if err := m.opts.Gate.Check(kind); err != nil {
		return nil, err
	}

	s := &session{
		id:         uuid.NewString(),
		kind:       kind,
		state:      StateStarting,
		photos:     make(map[*delivery.Channel[delivery.Frame]]struct{}),
		firstReady: make(chan struct{}),
		done:       make(chan struct{}),
	}

	lease, err := reg.BeginSession(h, kind, s)
	if err != nil {
		return nil, err
	}
	s.lease = lease
	s.deviceID = lease.DeviceID()

	m.mu.Lock()
	m.sessions[s.deviceID] = s
	m.mu.Unlock()

	m.notifyStateChange(s.deviceID, StateIdle, StateStarting, nil)
	return s, nil
}

// running moves a started session to the running state. A device detached
// while the session was starting has already skipped the detach hook, so
// its pipeline is torn down here instead.
func (m *Manager) running(s *session) error {
	m.mu.Lock()
	if s.lease.Detached() {
		camera, audio, frames, samples := s.camera, s.audio, s.frames, s.samples
		m.mu.Unlock()

		s.controls.Store(nil)
		switch {
		case camera != nil:
			_ = camera.Stop()
			frames.Close()
		case audio != nil:
			_ = audio.Stop()
			samples.Close()
		}
		return m.abort(s, devices.NewError(devices.ErrCodeInvalidHandle,
			fmt.Sprintf("device %s was detached while starting", s.deviceID), nil))
	}
	s.state = StateRunning
	s.startedAt = time.Now()
	m.mu.Unlock()

	m.notifyStateChange(s.deviceID, StateStarting, StateRunning, nil)
	m.logger.Info("Session started", "device_id", s.deviceID, "session_id", s.id, "kind", s.kind)
	return nil
}

// abort unwinds a session that failed to start.
func (m *Manager) abort(s *session, err error) error {
	s.lease.End()

	m.mu.Lock()
	delete(m.sessions, s.deviceID)
	m.mu.Unlock()
	close(s.done)

	m.logger.Error("Session failed to start", "device_id", s.deviceID, "error", err)
	m.notifyStateChange(s.deviceID, StateStarting, StateIdle, err)
	return err
}

// CapturePhoto delivers exactly one photo-resolution frame from a running
// camera to handler, without interrupting the preview. The request cannot
// be cancelled except by stopping the session; failures are reported
// through Options.OnError.
func (m *Manager) CapturePhoto(h devices.Handle, handler delivery.FrameHandler) error {
	deviceID, err := m.opts.Registry.UniqueID(h)
	if err != nil {
		return err
	}
	if kind, _ := m.opts.Registry.Kind(h); kind != devices.KindCamera {
		return devices.NewError(devices.ErrCodeUnsupportedOperation, "photo capture requires a camera", nil)
	}

	m.mu.Lock()
	s, ok := m.sessions[deviceID]
	if !ok || !s.state.Active() {
		m.mu.Unlock()
		return devices.NewError(devices.ErrCodeNotRunning, fmt.Sprintf("camera %s is not running", deviceID), nil)
	}

	var (
		ch   *delivery.Channel[delivery.Frame]
		once sync.Once
	)
	finish := func() { once.Do(func() { m.photoDone(s, ch) }) }

	opts := m.channelOptions(s, "photo")
	opts.Once = true
	opts.OnComplete = func(delivered bool) {
		if delivered {
			s.photosTaken.Add(1)
		}
		finish()
	}
	ch = delivery.NewFrameChannel(handler, opts)

	s.photos[ch] = struct{}{}
	old := s.state
	s.state = StateCapturing
	camera := s.camera
	m.mu.Unlock()

	if old != StateCapturing {
		m.notifyStateChange(deviceID, old, StateCapturing, nil)
	}

	onError := func(err error) {
		m.reportError(deviceID, fmt.Errorf("photo capture failed: %w", err))
		ch.Close()
		finish()
	}
	if err := camera.CapturePhoto(ch, onError); err != nil {
		ch.Close()
		finish()
		return fmt.Errorf("failed to capture photo: %w", err)
	}
	return nil
}

// photoDone removes a finished photo and leaves the capturing state when
// no photos remain.
func (m *Manager) photoDone(s *session, ch *delivery.Channel[delivery.Frame]) {
	m.mu.Lock()
	delete(s.photos, ch)
	transition := s.state == StateCapturing && len(s.photos) == 0
	if transition {
		s.state = StateRunning
	}
	m.mu.Unlock()

	if transition {
		m.notifyStateChange(s.deviceID, StateCapturing, StateRunning, nil)
	}
}

// Stop ends the session on the device behind h. When Stop returns the
// handler is not running and will not be called again.
func (m *Manager) Stop(h devices.Handle) error {
	deviceID, err := m.opts.Registry.UniqueID(h)
	if err != nil {
		return err
	}
	return m.stopDevice(deviceID)
}

// StopDevice ends the session on the device with the given unique ID.
func (m *Manager) StopDevice(deviceID string) error {
	return m.stopDevice(deviceID)
}

func (m *Manager) stopDevice(deviceID string) error {
	m.mu.Lock()
	s, ok := m.sessions[deviceID]
	if !ok || !s.state.Active() {
		m.mu.Unlock()
		return devices.NewError(devices.ErrCodeNotRunning, fmt.Sprintf("device %s is not running", deviceID), nil)
	}
	oldState := s.state
	s.state = StateStopping
	camera, audio, frames, samples := s.camera, s.audio, s.frames, s.samples
	photos := make([]*delivery.Channel[delivery.Frame], 0, len(s.photos))
	for ch := range s.photos {
		photos = append(photos, ch)
	}
	m.mu.Unlock()

	m.notifyStateChange(deviceID, oldState, StateStopping, nil)
	m.logger.Info("Stopping session", "device_id", deviceID, "session_id", s.id)

	var stopErr error
	switch {
	case camera != nil:
		stopErr = camera.Stop()
	case audio != nil:
		stopErr = audio.Stop()
	}
	if stopErr != nil {
		m.reportError(deviceID, fmt.Errorf("pipeline stop failed: %w", stopErr))
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for _, ch := range photos {
			ch.Close()
		}
		if frames != nil {
			frames.Close()
		}
		if samples != nil {
			samples.Close()
		}
	}()
	select {
	case <-drained:
	case <-time.After(m.opts.DrainTimeout):
		m.logger.Warn("Timeout waiting for handlers to drain, still waiting", "device_id", deviceID)
		<-drained
	}

	s.lease.End()

	m.mu.Lock()
	delete(m.sessions, deviceID)
	m.mu.Unlock()
	close(s.done)

	m.notifyStateChange(deviceID, StateStopping, StateIdle, nil)
	return nil
}

// Status returns session info for the device behind h. Devices without a
// session report StateIdle.
func (m *Manager) Status(h devices.Handle) (*Info, error) {
	deviceID, err := m.opts.Registry.UniqueID(h)
	if err != nil {
		return nil, err
	}
	return m.StatusByID(deviceID), nil
}

// StatusByID returns session info for a device by unique ID.
func (m *Manager) StatusByID(deviceID string) *Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[deviceID]
	if !ok {
		return &Info{DeviceID: deviceID, State: StateIdle}
	}
	return s.info()
}

// Sessions returns info for every active session.
func (m *Manager) Sessions() []*Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]*Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, s.info())
	}
	return infos
}

// info snapshots a session. Must hold m.mu.
func (s *session) info() *Info {
	info := &Info{
		DeviceID:      s.deviceID,
		SessionID:     s.id,
		Kind:          s.kind,
		State:         s.state,
		StartedAt:     s.startedAt,
		PendingPhotos: len(s.photos),
		PhotosTaken:   s.photosTaken.Load(),
		LastError:     s.lastError,
		Camera:        s.lease.Camera(),
		Audio:         s.lease.Audio(),
	}
	switch {
	case s.frames != nil:
		info.Stats = s.frames.Stats()
	case s.samples != nil:
		info.Stats = s.samples.Stats()
	}
	return info
}

// IsRunning reports whether the device behind h is delivering buffers.
func (m *Manager) IsRunning(h devices.Handle) bool {
	deviceID, err := m.opts.Registry.UniqueID(h)
	if err != nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[deviceID]
	return ok && s.state.Active()
}

// FirstFrame waits for the first preview frame of the running camera
// behind h and returns a copy of it.
func (m *Manager) FirstFrame(ctx context.Context, h devices.Handle) (delivery.Frame, error) {
	deviceID, err := m.opts.Registry.UniqueID(h)
	if err != nil {
		return delivery.Frame{}, err
	}

	m.mu.RLock()
	s, ok := m.sessions[deviceID]
	m.mu.RUnlock()
	if !ok || s.kind != devices.KindCamera {
		return delivery.Frame{}, devices.NewError(devices.ErrCodeNotRunning, fmt.Sprintf("camera %s is not running", deviceID), nil)
	}

	select {
	case <-s.firstReady:
		return s.firstFrame, nil
	case <-s.done:
		return delivery.Frame{}, devices.NewError(devices.ErrCodeNotRunning, "session stopped before the first frame", nil)
	case <-ctx.Done():
		return delivery.Frame{}, ctx.Err()
	}
}

// StopAll stops every session.
func (m *Manager) StopAll() {
	m.logger.Info("Stopping all sessions")

	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		if err := m.stopDevice(id); err != nil && !devices.IsCode(err, devices.ErrCodeNotRunning) {
			m.logger.Warn("Failed to stop session", "device_id", id, "error", err)
		}
	}
	m.logger.Info("All sessions stopped")
}

func (m *Manager) channelOptions(s *session, stream string) delivery.Options {
	return delivery.Options{
		DeviceID:     s.deviceID,
		Stream:       stream,
		DrainTimeout: m.opts.DrainTimeout,
		Logger:       m.logger,
		OnError:      m.errorFunc(s.deviceID),
	}
}

func (m *Manager) errorFunc(deviceID string) pipeline.ErrorFunc {
	return func(err error) { m.reportError(deviceID, err) }
}

// reportError records err on the session and forwards it to OnError.
func (m *Manager) reportError(deviceID string, err error) {
	m.mu.Lock()
	if s, ok := m.sessions[deviceID]; ok {
		s.lastError = err
	}
	m.mu.Unlock()

	m.logger.Error("Session error", "device_id", deviceID, "error", err)
	if m.opts.OnError != nil {
		m.opts.OnError(deviceID, err)
	}
}

// notifyStateChange invokes the OnStateChange callback if configured.
func (m *Manager) notifyStateChange(deviceID string, oldState, newState State, err error) {
	if m.opts.OnStateChange != nil {
		m.opts.OnStateChange(deviceID, oldState, newState, err)
	}
}
