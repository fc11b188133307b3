// Package devices holds the device registry and the per-device capability
// and configuration model.
//
// # Registry
//
// A Registry owns every discovered camera and microphone. Callers never hold
// device records directly; they hold Handles issued by Enumerate or Lookup.
// A Handle is a generation-checked arena reference, so using it after
// Release (or after the device disappeared on Refresh) fails with an
// INVALID_HANDLE error instead of touching a recycled slot.
//
//	reg := devices.NewRegistry(&devices.Options{Discoverer: backend})
//	if err := reg.Init(ctx); err != nil { ... }
//	defer reg.Close()
//
//	handles := make([]devices.Handle, reg.Count(devices.KindCamera))
//	n := reg.Enumerate(devices.KindCamera, handles)
//
// Unique IDs are assigned on first discovery and reused whenever the
// discoverer reports the same hardware key again during the process lifetime.
//
// # Configuration
//
// Camera and Audio are thin views over a handle. Live controls (exposure
// bias, zoom, locks, torch, metering points) apply immediately, including
// to a running session. Geometry and format settings (resolutions, frame
// rate, flash mode, orientation, sample rate, channel count, echo
// cancellation) are idle-only: set while running, they are validated and
// held as pending until the next session start.
//
// Range setters clamp, every other setter rejects out-of-range input with
// INVALID_ARGUMENT, and capability-gated setters fail with
// UNSUPPORTED_OPERATION when the device flags lack the capability.
package devices
