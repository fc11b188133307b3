package devices

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
)

type fakeDiscoverer struct {
	mu    sync.Mutex
	descs []Descriptor
	err   error
}

func (f *fakeDiscoverer) Discover(context.Context) ([]Descriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Descriptor(nil), f.descs...), f.err
}

func (f *fakeDiscoverer) set(descs ...Descriptor) {
	f.mu.Lock()
	f.descs = descs
	f.mu.Unlock()
}

func backCamera() Descriptor {
	return Descriptor{
		Key:   "cam-back",
		Name:  "Back Camera",
		Kind:  KindCamera,
		Flags: FlagInternal | FlagTorchSupported | FlagFlashSupported | FlagExposurePointSupported | FlagExposureLockSupported,
		Camera: CameraCaps{
			FieldOfView:   FieldOfView{Horizontal: 65, Vertical: 48},
			ExposureRange: Range{Min: -2, Max: 2},
			MaxZoom:       4,
			MaxFrameRate:  60,
		},
	}
}

func frontCamera() Descriptor {
	return Descriptor{
		Key:   "cam-front",
		Name:  "Front Camera",
		Kind:  KindCamera,
		Flags: FlagInternal | FlagFrontFacing | FlagFocusPointSupported,
		Camera: CameraCaps{
			ExposureRange: Range{Min: -1, Max: 1},
		},
	}
}

func microphone() Descriptor {
	return Descriptor{
		Key:   "mic-0",
		Name:  "Built-in Microphone",
		Kind:  KindMicrophone,
		Flags: FlagInternal | FlagEchoCancellationSupported,
		Audio: AudioCaps{MaxChannels: 2},
	}
}

func usbMicrophone() Descriptor {
	return Descriptor{
		Key:   "mic-usb",
		Name:  "USB Microphone",
		Kind:  KindMicrophone,
		Flags: FlagExternal,
	}
}

func newTestRegistry(t *testing.T, descs ...Descriptor) (*Registry, *fakeDiscoverer) {
	t.Helper()
	disc := &fakeDiscoverer{descs: descs}
	reg := NewRegistry(&Options{
		Discoverer: disc,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err := reg.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(reg.Close)
	return reg, disc
}

func firstHandle(t *testing.T, reg *Registry, kind Kind) Handle {
	t.Helper()
	buf := make([]Handle, 1)
	if n := reg.Enumerate(kind, buf); n != 1 {
		t.Fatalf("no %s devices", kind)
	}
	return buf[0]
}

func TestRegistryCountAndEnumerate(t *testing.T) {
	reg, _ := newTestRegistry(t, backCamera(), microphone(), frontCamera())

	var cameras int32 = reg.Count(KindCamera)
	if cameras != 2 {
		t.Errorf("camera count = %d, want 2", cameras)
	}
	if got := reg.Count(KindMicrophone); got != 1 {
		t.Errorf("microphone count = %d, want 1", got)
	}

	buf := make([]Handle, 5)
	n := reg.Enumerate(KindCamera, buf)
	if n != 2 {
		t.Fatalf("Enumerate wrote %d handles, want 2", n)
	}
	names := []string{}
	for _, h := range buf[:n] {
		name, err := reg.Name(h)
		if err != nil {
			t.Fatalf("Name: %v", err)
		}
		names = append(names, name)
	}
	if names[0] != "Back Camera" || names[1] != "Front Camera" {
		t.Errorf("enumeration order = %v, want discovery order", names)
	}

	small := make([]Handle, 1)
	if n := reg.Enumerate(KindCamera, small); n != 1 {
		t.Errorf("Enumerate into short buffer wrote %d, want 1", n)
	}
}

func TestUniqueIDStableAcrossEnumerations(t *testing.T) {
	reg, _ := newTestRegistry(t, backCamera(), frontCamera())

	first := make([]Handle, 2)
	second := make([]Handle, 2)
	reg.Enumerate(KindCamera, first)
	reg.Enumerate(KindCamera, second)

	for i := range first {
		if first[i] == second[i] {
			t.Errorf("enumeration %d reused handle %s, want fresh handles", i, first[i])
		}
		id1, err := reg.UniqueID(first[i])
		if err != nil {
			t.Fatalf("UniqueID: %v", err)
		}
		id2, _ := reg.UniqueID(second[i])
		if id1 == "" {
			t.Error("unique ID is empty")
		}
		if id1 != id2 {
			t.Errorf("unique ID changed between enumerations: %q != %q", id1, id2)
		}
	}
}

func TestHandlesShareDeviceState(t *testing.T) {
	reg, _ := newTestRegistry(t, backCamera())

	h1 := firstHandle(t, reg, KindCamera)
	h2 := firstHandle(t, reg, KindCamera)

	cam1, err := reg.Camera(h1)
	if err != nil {
		t.Fatalf("Camera: %v", err)
	}
	if err := cam1.SetZoomRatio(2); err != nil {
		t.Fatalf("SetZoomRatio: %v", err)
	}

	cam2, _ := reg.Camera(h2)
	if zoom, _ := cam2.ZoomRatio(); zoom != 2 {
		t.Errorf("zoom through second handle = %v, want 2", zoom)
	}
}

func TestReleaseTwice(t *testing.T) {
	reg, _ := newTestRegistry(t, microphone())

	h := firstHandle(t, reg, KindMicrophone)
	if err := reg.Release(h); err != nil {
		t.Fatalf("first Release: %v", err)
	}

	err := reg.Release(h)
	if !IsCode(err, ErrCodeInvalidHandle) {
		t.Fatalf("second Release error = %v, want %s", err, ErrCodeInvalidHandle)
	}

	if _, err := reg.UniqueID(h); !IsCode(err, ErrCodeInvalidHandle) {
		t.Errorf("UniqueID on released handle = %v, want %s", err, ErrCodeInvalidHandle)
	}
}

func TestReleasedSlotReuseKeepsStaleHandleInvalid(t *testing.T) {
	reg, _ := newTestRegistry(t, backCamera())

	stale := firstHandle(t, reg, KindCamera)
	if err := reg.Release(stale); err != nil {
		t.Fatalf("Release: %v", err)
	}
	fresh := firstHandle(t, reg, KindCamera)

	if fresh == stale {
		t.Fatal("reused slot returned identical handle")
	}
	if _, err := reg.Flags(stale); !IsCode(err, ErrCodeInvalidHandle) {
		t.Errorf("stale handle resolved: %v", err)
	}
	if _, err := reg.Flags(fresh); err != nil {
		t.Errorf("fresh handle: %v", err)
	}
}

func TestZeroHandleInvalid(t *testing.T) {
	reg, _ := newTestRegistry(t, backCamera())
	if _, err := reg.Name(0); !IsCode(err, ErrCodeInvalidHandle) {
		t.Errorf("zero handle error = %v", err)
	}
}

func TestReleaseLastHandleOfRunningDevice(t *testing.T) {
	reg, _ := newTestRegistry(t, backCamera())

	h := firstHandle(t, reg, KindCamera)
	lease, err := reg.BeginSession(h, KindCamera, nil)
	if err != nil {
		t.Fatalf("BeginSession: %v", err)
	}

	if err := reg.Release(h); !IsCode(err, ErrCodeAlreadyRunning) {
		t.Fatalf("Release of running device = %v, want %s", err, ErrCodeAlreadyRunning)
	}

	lease.End()
	if err := reg.Release(h); err != nil {
		t.Errorf("Release after End: %v", err)
	}
}

func TestBeginSessionConcurrentSingleWinner(t *testing.T) {
	reg, _ := newTestRegistry(t, microphone())
	h := firstHandle(t, reg, KindMicrophone)

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		running int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.BeginSession(h, KindMicrophone, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case IsCode(err, ErrCodeAlreadyRunning):
				running++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || running != workers-1 {
		t.Errorf("wins = %d, already running = %d", wins, running)
	}
}

func TestBeginSessionKindMismatch(t *testing.T) {
	reg, _ := newTestRegistry(t, microphone())
	h := firstHandle(t, reg, KindMicrophone)

	if _, err := reg.BeginSession(h, KindCamera, nil); !IsCode(err, ErrCodeUnsupportedOperation) {
		t.Errorf("error = %v, want %s", err, ErrCodeUnsupportedOperation)
	}
}

func TestRefreshHotplug(t *testing.T) {
	var changes []string
	disc := &fakeDiscoverer{descs: []Descriptor{backCamera(), usbMicrophone()}}
	reg := NewRegistry(&Options{
		Discoverer: disc,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		OnChange: func(action string, info Info) {
			changes = append(changes, action+":"+info.Name)
		},
	})
	defer reg.Close()

	var detached []string
	reg.SetDetachHandler(func(id string) { detached = append(detached, id) })

	ctx := context.Background()
	if err := reg.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}

	cam := firstHandle(t, reg, KindCamera)
	camID, _ := reg.UniqueID(cam)
	mic := firstHandle(t, reg, KindMicrophone)
	micID, _ := reg.UniqueID(mic)
	lease, err := reg.BeginSession(mic, KindMicrophone, nil)
	if err != nil {
		t.Fatalf("BeginSession: %v", err)
	}

	disc.set(backCamera(), frontCamera())
	if err := reg.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if got, _ := reg.UniqueID(cam); got != camID {
		t.Errorf("surviving device changed id: %q -> %q", camID, got)
	}
	if _, err := reg.UniqueID(mic); !IsCode(err, ErrCodeInvalidHandle) {
		t.Errorf("handle to removed device still valid: %v", err)
	}
	if !lease.Detached() {
		t.Error("lease of removed device not marked detached")
	}
	if len(detached) != 1 || detached[0] != micID {
		t.Errorf("detach handler calls = %v, want [%s]", detached, micID)
	}
	if key, ok := reg.KeyOf(micID); !ok || key != usbMicrophone().Key {
		t.Errorf("KeyOf(removed mic) = %q, %v", key, ok)
	}
	if _, ok := reg.KeyOf("no-such-id"); ok {
		t.Error("KeyOf(unknown) reported a key")
	}
	if reg.Count(KindCamera) != 2 || reg.Count(KindMicrophone) != 0 {
		t.Errorf("counts after refresh = %d cameras, %d microphones", reg.Count(KindCamera), reg.Count(KindMicrophone))
	}

	// Replugging the same hardware restores its ID.
	lease.End()
	disc.set(backCamera(), frontCamera(), usbMicrophone())
	if err := reg.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	h := firstHandle(t, reg, KindMicrophone)
	if got, _ := reg.UniqueID(h); got != micID {
		t.Errorf("replugged device id = %q, want %q", got, micID)
	}

	want := []string{
		"added:Back Camera", "added:USB Microphone",
		"added:Front Camera", "removed:USB Microphone",
		"added:USB Microphone",
	}
	if len(changes) != len(want) {
		t.Fatalf("changes = %v, want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("change %d = %q, want %q", i, changes[i], want[i])
		}
	}
}

func TestRefreshDiscoveryError(t *testing.T) {
	reg, disc := newTestRegistry(t, backCamera())
	disc.err = errors.New("bus reset")

	if err := reg.Refresh(context.Background()); err == nil {
		t.Fatal("expected discovery error")
	}
	if reg.Count(KindCamera) != 1 {
		t.Error("failed refresh must keep existing devices")
	}
}

func TestRefreshSkipsMalformedDescriptors(t *testing.T) {
	bad := backCamera()
	bad.Key = ""
	dup := frontCamera()
	dup.Key = "cam-back"

	reg, _ := newTestRegistry(t, backCamera(), bad, dup, Descriptor{Key: "x", Kind: 9})
	if got := reg.Count(KindCamera); got != 1 {
		t.Errorf("camera count = %d, want 1", got)
	}
}

func TestCloseInvalidatesHandles(t *testing.T) {
	reg, _ := newTestRegistry(t, backCamera())
	h := firstHandle(t, reg, KindCamera)

	reg.Close()
	if _, err := reg.Name(h); !IsCode(err, ErrCodeInvalidHandle) {
		t.Errorf("handle valid after Close: %v", err)
	}
	if err := reg.Refresh(context.Background()); !errors.Is(err, ErrRegistryClosed) {
		t.Errorf("Refresh after Close = %v", err)
	}
}

func TestDeviceTypeFromFlags(t *testing.T) {
	reg, _ := newTestRegistry(t, backCamera(), usbMicrophone())

	infos := reg.Devices(0)
	if len(infos) != 2 {
		t.Fatalf("Devices = %d, want 2", len(infos))
	}
	if infos[0].Type() != TypeInternal {
		t.Errorf("camera type = %s, want internal", infos[0].Type())
	}
	if infos[1].Type() != TypeExternal {
		t.Errorf("microphone type = %s, want external", infos[1].Type())
	}
}

func TestLookupByID(t *testing.T) {
	reg, _ := newTestRegistry(t, backCamera())
	h := firstHandle(t, reg, KindCamera)
	id, _ := reg.UniqueID(h)

	h2, err := reg.Lookup(id)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got, _ := reg.UniqueID(h2); got != id {
		t.Errorf("Lookup returned device %q, want %q", got, id)
	}
	if _, err := reg.Lookup("missing"); !IsCode(err, ErrCodeInvalidHandle) {
		t.Errorf("Lookup missing = %v", err)
	}
}
