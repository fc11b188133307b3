package devices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/vishalkuo/bimap"
)

// Device change actions reported to Options.OnChange.
const (
	ActionAdded   = "added"
	ActionRemoved = "removed"
)

// ErrRegistryClosed is returned by Init and Refresh after Close.
var ErrRegistryClosed = errors.New("device registry is closed")

// Discoverer enumerates the hardware currently present.
type Discoverer interface {
	Discover(ctx context.Context) ([]Descriptor, error)
}

// DiscovererFunc adapts a function to the Discoverer interface.
type DiscovererFunc func(ctx context.Context) ([]Descriptor, error)

// Discover implements Discoverer.
func (f DiscovererFunc) Discover(ctx context.Context) ([]Descriptor, error) { return f(ctx) }

// Info is a point-in-time snapshot of a device.
type Info struct {
	ID      string
	Name    string
	Kind    Kind
	Flags   Flags
	Running bool
}

// Type returns the device type derived from the flags.
func (i Info) Type() DeviceType { return i.Flags.Type() }

// Options configures a Registry.
type Options struct {
	Discoverer Discoverer
	Logger     *slog.Logger

	// OnChange is called after devices appear or disappear on Init, Refresh or Close.
	OnChange func(action string, info Info)
}

// Registry owns every discovered device and the handles that refer to them.
type Registry struct {
	opts   Options
	logger *slog.Logger

	mu          sync.RWMutex
	records     []*record
	byID        map[string]*record
	ids         *bimap.BiMap[string, string] // discovery key <-> device ID
	handles     arena
	initialized bool
	closed      bool
	onDetach    func(deviceID string)
}

// NewRegistry creates an empty registry. Call Init to run the first discovery.
func NewRegistry(opts *Options) *Registry {
	if opts == nil || opts.Discoverer == nil {
		panic("devices: Options with Discoverer is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		opts:   *opts,
		logger: logger,
		byID:   make(map[string]*record),
		ids:    bimap.NewBiMap[string, string](),
	}
}

// SetDetachHandler registers the function called with the ID of a running
// device that disappears or is torn down by Close. The session layer uses it
// to stop the orphaned session.
func (r *Registry) SetDetachHandler(fn func(deviceID string)) {
	r.mu.Lock()
	r.onDetach = fn
	r.mu.Unlock()
}

// Init runs the first discovery. Calling it again is a no-op.
func (r *Registry) Init(ctx context.Context) error {
	r.mu.RLock()
	done := r.initialized
	r.mu.RUnlock()
	if done {
		return nil
	}
	return r.Refresh(ctx)
}

// Refresh re-runs discovery. New hardware is appended in discovery order,
// vanished hardware is detached and its handles become invalid. Devices
// that stay keep their records, handles and unique IDs.
func (r *Registry) Refresh(ctx context.Context) error {
	descs, err := r.opts.Discoverer.Discover(ctx)
	if err != nil {
		return fmt.Errorf("device discovery failed: %w", err)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}

	seen := make(map[string]bool, len(descs))
	current := make(map[string]*record, len(r.records))
	for _, rec := range r.records {
		current[rec.desc.Key] = rec
	}

	var added []*record
	for _, d := range descs {
		if d.Key == "" || !d.Kind.Valid() {
			r.logger.Warn("Ignoring malformed device descriptor", "key", d.Key, "kind", d.Kind)
			continue
		}
		if seen[d.Key] {
			r.logger.Warn("Ignoring duplicate device key", "key", d.Key)
			continue
		}
		seen[d.Key] = true
		if _, ok := current[d.Key]; ok {
			continue
		}

		id, known := r.ids.Get(d.Key)
		if !known {
			id = uuid.NewString()
			r.ids.Insert(d.Key, id)
		}
		rec := newRecord(id, d.normalize())
		r.records = append(r.records, rec)
		r.byID[id] = rec
		added = append(added, rec)
	}

	var removed []*record
	kept := r.records[:0]
	for _, rec := range r.records {
		if seen[rec.desc.Key] {
			kept = append(kept, rec)
			continue
		}
		removed = append(removed, rec)
	}
	r.records = kept

	detached := r.detachLocked(removed)
	r.initialized = true
	onDetach := r.onDetach
	r.mu.Unlock()

	r.notify(added, removed, detached, onDetach)
	return nil
}

// Close detaches every device and invalidates all handles.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	removed := r.records
	r.records = nil
	detached := r.detachLocked(removed)
	r.handles.reset()
	r.closed = true
	onDetach := r.onDetach
	r.mu.Unlock()

	r.notify(nil, removed, detached, onDetach)
}

// detachLocked unlinks records and returns the IDs of those that were
// running. Must hold r.mu.
func (r *Registry) detachLocked(removed []*record) []string {
	var running []string
	for _, rec := range removed {
		r.handles.releaseAll(rec)
		delete(r.byID, rec.id)

		rec.mu.Lock()
		rec.detached = true
		if rec.running {
			running = append(running, rec.id)
		}
		rec.mu.Unlock()
	}
	return running
}

func (r *Registry) notify(added, removed []*record, detached []string, onDetach func(string)) {
	if onDetach != nil {
		for _, id := range detached {
			onDetach(id)
		}
	}

	for _, rec := range added {
		r.logger.Info("Device added", "device_id", rec.id, "kind", rec.desc.Kind, "name", rec.desc.Name)
		if r.opts.OnChange != nil {
			r.opts.OnChange(ActionAdded, rec.info())
		}
	}
	for _, rec := range removed {
		r.logger.Info("Device removed", "device_id", rec.id, "kind", rec.desc.Kind, "name", rec.desc.Name)
		if r.opts.OnChange != nil {
			r.opts.OnChange(ActionRemoved, rec.info())
		}
	}
}

// KeyOf returns the discovery key behind a device ID. It also answers for
// devices that have since been removed.
func (r *Registry) KeyOf(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ids.GetInverse(id)
}

// Count returns the number of devices of the given kind.
func (r *Registry) Count(kind Kind) int32 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int32
	for _, rec := range r.records {
		if rec.desc.Kind == kind {
			n++
		}
	}
	return n
}

// Enumerate fills buf with fresh handles to devices of the given kind, in
// discovery order, and returns how many were written.
func (r *Registry) Enumerate(kind Kind, buf []Handle) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, rec := range r.records {
		if n == len(buf) {
			break
		}
		if rec.desc.Kind == kind {
			buf[n] = r.handles.issue(rec)
			n++
		}
	}
	return n
}

// Devices returns snapshots of all devices of the given kind in discovery
// order. A zero kind returns every device.
func (r *Registry) Devices(kind Kind) []Info {
	r.mu.RLock()
	recs := make([]*record, 0, len(r.records))
	for _, rec := range r.records {
		if kind == 0 || rec.desc.Kind == kind {
			recs = append(recs, rec)
		}
	}
	r.mu.RUnlock()

	infos := make([]Info, len(recs))
	for i, rec := range recs {
		infos[i] = rec.info()
	}
	return infos
}

// Lookup issues a fresh handle for the device with the given unique ID.
func (r *Registry) Lookup(id string) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byID[id]
	if !ok {
		return 0, NewError(ErrCodeInvalidHandle, fmt.Sprintf("no device with id %q", id), nil)
	}
	return r.handles.issue(rec), nil
}

// Release invalidates h. Releasing an already released handle returns
// INVALID_HANDLE. The last handle of a running device cannot be released.
func (r *Registry) Release(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.handles.lookup(h)
	if !ok {
		return errInvalidHandle(h)
	}

	rec.mu.Lock()
	running := rec.running
	rec.mu.Unlock()
	if running && rec.handles == 1 {
		return NewError(ErrCodeAlreadyRunning, "device is running; stop it before releasing its last handle", nil)
	}

	r.handles.release(h)
	return nil
}

func (r *Registry) resolve(h Handle) (*record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.handles.lookup(h)
	if !ok {
		return nil, errInvalidHandle(h)
	}
	return rec, nil
}

// UniqueID returns the device's process-stable unique ID.
func (r *Registry) UniqueID(h Handle) (string, error) {
	rec, err := r.resolve(h)
	if err != nil {
		return "", err
	}
	return rec.id, nil
}

// Flags returns the device's capability flags.
func (r *Registry) Flags(h Handle) (Flags, error) {
	rec, err := r.resolve(h)
	if err != nil {
		return 0, err
	}
	return rec.desc.Flags, nil
}

// Kind returns the device's media kind.
func (r *Registry) Kind(h Handle) (Kind, error) {
	rec, err := r.resolve(h)
	if err != nil {
		return 0, err
	}
	return rec.desc.Kind, nil
}

// Name returns the device's human-readable name.
func (r *Registry) Name(h Handle) (string, error) {
	rec, err := r.resolve(h)
	if err != nil {
		return "", err
	}
	return rec.desc.Name, nil
}

// IsRunning reports whether a session is active on the device.
func (r *Registry) IsRunning(h Handle) (bool, error) {
	rec, err := r.resolve(h)
	if err != nil {
		return false, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.running, nil
}

// Info returns a snapshot of the device behind h.
func (r *Registry) Info(h Handle) (Info, error) {
	rec, err := r.resolve(h)
	if err != nil {
		return Info{}, err
	}
	return rec.info(), nil
}

// Descriptor returns the discovery descriptor of the device behind h.
func (r *Registry) Descriptor(h Handle) (Descriptor, error) {
	rec, err := r.resolve(h)
	if err != nil {
		return Descriptor{}, err
	}
	return rec.desc, nil
}

// BeginSession marks the device running and applies pending idle-only
// settings. The returned Lease carries the settings snapshot for the
// session; call Lease.End when the session is over. Of two concurrent
// callers exactly one succeeds, the other gets ALREADY_RUNNING.
func (r *Registry) BeginSession(h Handle, kind Kind, sink ControlSink) (*Lease, error) {
	rec, err := r.resolve(h)
	if err != nil {
		return nil, err
	}
	if rec.desc.Kind != kind {
		return nil, errUnsupported("device %s is a %s, not a %s", rec.id, rec.desc.Kind, kind)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.detached {
		return nil, errInvalidHandle(h)
	}
	if rec.running {
		return nil, NewError(ErrCodeAlreadyRunning, fmt.Sprintf("device %s is already running", rec.id), nil)
	}

	if rec.pendingCamera != nil {
		rec.camera = *rec.pendingCamera
		rec.pendingCamera = nil
	}
	if rec.pendingAudio != nil {
		rec.audio = *rec.pendingAudio
		rec.pendingAudio = nil
	}
	rec.running = true
	rec.controls = sink

	return &Lease{rec: rec, camera: rec.camera, audio: rec.audio}, nil
}
