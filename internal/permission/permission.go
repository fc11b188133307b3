// Package permission gates capture on the outcome of an asynchronous
// authorization request per device kind.
package permission

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/smazurov/mediadevice/internal/devices"
)

// Status is the last observed authorization outcome for a kind.
type Status int

const (
	StatusUnknown Status = iota
	StatusGranted
	StatusDenied
)

func (s Status) String() string {
	switch s {
	case StatusGranted:
		return "granted"
	case StatusDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// ResultHandler receives the outcome of a Request. It runs on a goroutine
// owned by the Gate, never on the caller's.
type ResultHandler func(granted bool)

// Authorizer decides whether capture of a kind is allowed. It may block,
// e.g. while a user answers a prompt.
type Authorizer interface {
	Authorize(ctx context.Context, kind devices.Kind) (bool, error)
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context, kind devices.Kind) (bool, error)

// Authorize implements Authorizer.
func (f AuthorizerFunc) Authorize(ctx context.Context, kind devices.Kind) (bool, error) {
	return f(ctx, kind)
}

// Options configures a Gate.
type Options struct {
	Authorizer Authorizer
	Logger     *slog.Logger

	// OnResult is called after every completed request, before the
	// request's own handler.
	OnResult func(kind devices.Kind, granted bool)
}

// Gate tracks permission outcomes per kind.
type Gate struct {
	opts   Options
	logger *slog.Logger

	mu     sync.RWMutex
	status map[devices.Kind]Status

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewGate creates a permission gate.
func NewGate(opts *Options) *Gate {
	if opts == nil || opts.Authorizer == nil {
		panic("permission: Options with Authorizer is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Gate{
		opts:   *opts,
		logger: logger,
		status: make(map[devices.Kind]Status),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Request asks the authorizer for permission and reports the result to
// handler asynchronously. An authorizer error counts as a denial.
func (g *Gate) Request(kind devices.Kind, handler ResultHandler) error {
	if !kind.Valid() {
		return devices.NewError(devices.ErrCodeInvalidArgument, fmt.Sprintf("unknown permission kind %d", kind), nil)
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()

		granted, err := g.opts.Authorizer.Authorize(g.ctx, kind)
		if err != nil {
			g.logger.Warn("Permission request failed", "kind", kind, "error", err)
			granted = false
		}
		if g.ctx.Err() != nil {
			g.logger.Debug("Permission request abandoned on shutdown", "kind", kind)
			return
		}

		g.record(kind, granted)
		g.logger.Info("Permission resolved", "kind", kind, "granted", granted)

		if g.opts.OnResult != nil {
			g.opts.OnResult(kind, granted)
		}
		if handler != nil {
			g.deliver(kind, handler, granted)
		}
	}()
	return nil
}

// RequestAndWait requests permission and blocks until the result arrives
// or ctx is done.
func (g *Gate) RequestAndWait(ctx context.Context, kind devices.Kind) (bool, error) {
	result := make(chan bool, 1)
	if err := g.Request(kind, func(granted bool) { result <- granted }); err != nil {
		return false, err
	}

	select {
	case granted := <-result:
		return granted, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Status returns the last outcome observed for kind.
func (g *Gate) Status(kind devices.Kind) Status {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.status[kind]
}

// Granted reports whether the last outcome for kind was positive.
func (g *Gate) Granted(kind devices.Kind) bool {
	return g.Status(kind) == StatusGranted
}

// Check returns a PERMISSION_DENIED error unless kind has been granted.
func (g *Gate) Check(kind devices.Kind) error {
	switch st := g.Status(kind); st {
	case StatusGranted:
		return nil
	case StatusDenied:
		return devices.NewError(devices.ErrCodePermissionDenied, fmt.Sprintf("%s permission denied", kind), nil)
	default:
		return devices.NewError(devices.ErrCodePermissionDenied, fmt.Sprintf("%s permission has not been requested", kind), nil)
	}
}

// Close abandons outstanding requests and waits for their goroutines.
func (g *Gate) Close() {
	g.cancel()
	g.wg.Wait()
}

func (g *Gate) record(kind devices.Kind, granted bool) {
	st := StatusDenied
	if granted {
		st = StatusGranted
	}
	g.mu.Lock()
	g.status[kind] = st
	g.mu.Unlock()
}

func (g *Gate) deliver(kind devices.Kind, handler ResultHandler, granted bool) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("Permission result handler panicked", "kind", kind, "panic", r)
		}
	}()
	handler(granted)
}
