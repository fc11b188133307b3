// Package session runs capture sessions on registry devices.
//
// A Manager owns at most one session per device. Starting a session checks
// the permission gate, marks the device running in the registry (the first
// of two concurrent starts wins), opens a backend pipeline and connects it
// to a delivery channel that feeds the caller's handler.
//
// State machine per device:
//
//	idle -> starting -> running <-> capturing
//	                       |            |
//	                       +-> stopping <+
//	stopping -> idle
//
// Capturing is running with at least one photo pending. Stop halts the
// pipeline, cancels pending photos and returns only once no handler is
// executing and none will be invoked again.
//
// Example:
//
//	mgr := session.NewManager(&session.Options{
//	    Registry: reg,
//	    Backend:  backend,
//	    Gate:     gate,
//	    OnStateChange: func(id string, old, new session.State, err error) {
//	        log.Printf("%s: %s -> %s", id, old, new)
//	    },
//	})
//	defer mgr.StopAll()
//
//	err := mgr.StartCamera(ctx, h, func(f delivery.Frame) { ... })
package session
