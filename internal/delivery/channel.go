package delivery

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultDrainTimeout is how long Close waits for an in-flight handler
// before logging a warning. Close keeps waiting after the warning.
const DefaultDrainTimeout = 10 * time.Second

// poolSize bounds the number of recycled buffers kept per channel: one in
// the pending slot and one in flight.
const poolSize = 2

// Options configures a Channel.
type Options struct {
	DeviceID string
	// Stream labels the channel in logs and metrics, e.g. "preview".
	Stream string

	// Once closes the channel after the first delivered buffer.
	Once bool

	DrainTimeout time.Duration
	Logger       *slog.Logger

	// OnError receives handler panics as errors.
	OnError func(err error)
	// OnComplete is called from the dispatcher after a Once channel handed
	// its buffer to the handler. delivered is false if the handler panicked.
	OnComplete func(delivered bool)
}

// Stats are monotonic counters for one channel.
type Stats struct {
	Offered           uint64 `json:"offered"`
	Delivered         uint64 `json:"delivered"`
	DroppedOverrun    uint64 `json:"dropped_overrun"`
	DroppedOutOfOrder uint64 `json:"dropped_out_of_order"`
	DroppedClosed     uint64 `json:"dropped_closed"`
	DroppedInvalid    uint64 `json:"dropped_invalid"`
	HandlerPanics     uint64 `json:"handler_panics"`
}

// Dropped returns the total number of dropped buffers.
func (s Stats) Dropped() uint64 {
	return s.DroppedOverrun + s.DroppedOutOfOrder + s.DroppedClosed + s.DroppedInvalid
}

// Channel delivers buffers of type T to a single handler.
type Channel[T any] struct {
	opts    Options
	logger  *slog.Logger
	handler func(T)
	copyTo  func(dst, src T) T
	stamp   func(T) int64
	valid   func(T) bool

	mu         sync.Mutex
	pending    T
	hasPending bool
	free       []T
	lastTS     int64
	hasLast    bool
	closed     bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}

	offered        atomic.Uint64
	delivered      atomic.Uint64
	overrun        atomic.Uint64
	outOfOrder     atomic.Uint64
	droppedClosed  atomic.Uint64
	droppedInvalid atomic.Uint64
	panics         atomic.Uint64
}

// NewFrameChannel starts a channel delivering frames to handler.
func NewFrameChannel(handler FrameHandler, opts Options) *Channel[Frame] {
	return newChannel[Frame](handler, copyFrame, frameTimestamp, Frame.Valid, opts)
}

// NewSampleChannel starts a channel delivering sample buffers to handler.
func NewSampleChannel(handler SampleHandler, opts Options) *Channel[SampleBuffer] {
	valid := func(b SampleBuffer) bool { return b.Channels > 0 && len(b.Samples)%b.Channels == 0 }
	return newChannel[SampleBuffer](handler, copySamples, sampleTimestamp, valid, opts)
}

func newChannel[T any](handler func(T), copyTo func(dst, src T) T, stamp func(T) int64, valid func(T) bool, opts Options) *Channel[T] {
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = DefaultDrainTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Channel[T]{
		opts:    opts,
		logger:  logger.With("device_id", opts.DeviceID, "stream", opts.Stream),
		handler: handler,
		copyTo:  copyTo,
		stamp:   stamp,
		valid:   valid,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	activeChannels.Inc()
	go c.dispatch()
	return c
}

// Offer copies buf into the pending slot. It never blocks. It returns false
// when the buffer was rejected (closed channel, invalid buffer, or a
// timestamp that does not advance). A waiting older buffer is dropped.
func (c *Channel[T]) Offer(buf T) bool {
	c.offered.Add(1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.drop(&c.droppedClosed, ReasonClosed)
		return false
	}
	if !c.valid(buf) {
		c.mu.Unlock()
		c.drop(&c.droppedInvalid, ReasonInvalid)
		return false
	}
	ts := c.stamp(buf)
	if c.hasLast && ts <= c.lastTS {
		c.mu.Unlock()
		c.drop(&c.outOfOrder, ReasonOutOfOrder)
		return false
	}
	c.lastTS, c.hasLast = ts, true

	overran := false
	if c.hasPending {
		c.recycleLocked(c.pending)
		overran = true
	}
	c.pending = c.copyTo(c.takeLocked(), buf)
	c.hasPending = true
	c.mu.Unlock()

	if overran {
		c.drop(&c.overrun, ReasonOverrun)
	}

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return true
}

// Close stops delivery and waits for an in-flight handler call to finish.
// The pending buffer, if any, is discarded. Close must not be called from
// inside the handler.
func (c *Channel[T]) Close() {
	if !c.markClosed() {
		<-c.done
		return
	}
	close(c.stop)

	select {
	case <-c.done:
		return
	case <-time.After(c.opts.DrainTimeout):
		c.logger.Warn("Handler still running after drain timeout, waiting", "timeout", c.opts.DrainTimeout)
	}
	<-c.done
}

// Done is closed once the dispatcher has exited.
func (c *Channel[T]) Done() <-chan struct{} { return c.done }

// Stats returns a snapshot of the channel counters.
func (c *Channel[T]) Stats() Stats {
	return Stats{
		Offered:           c.offered.Load(),
		Delivered:         c.delivered.Load(),
		DroppedOverrun:    c.overrun.Load(),
		DroppedOutOfOrder: c.outOfOrder.Load(),
		DroppedClosed:     c.droppedClosed.Load(),
		DroppedInvalid:    c.droppedInvalid.Load(),
		HandlerPanics:     c.panics.Load(),
	}
}

// markClosed flips the closed flag and discards the pending buffer. It
// reports whether this call did the closing.
func (c *Channel[T]) markClosed() bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.closed = true
	discarded := c.hasPending
	if c.hasPending {
		c.recycleLocked(c.pending)
		c.hasPending = false
	}
	c.mu.Unlock()

	if discarded {
		c.drop(&c.droppedClosed, ReasonClosed)
	}
	return true
}

func (c *Channel[T]) dispatch() {
	defer activeChannels.Dec()
	defer close(c.done)

	for {
		select {
		case <-c.stop:
			return
		case <-c.wake:
		}

		for {
			c.mu.Lock()
			if c.closed || !c.hasPending {
				c.mu.Unlock()
				break
			}
			item := c.pending
			var zero T
			c.pending = zero
			c.hasPending = false
			c.mu.Unlock()

			ok := c.invoke(item)

			c.mu.Lock()
			c.recycleLocked(item)
			c.mu.Unlock()

			if ok {
				c.delivered.Add(1)
				buffersDelivered.WithLabelValues(c.opts.DeviceID, c.opts.Stream).Inc()
			}

			if c.opts.Once {
				c.markClosed()
				if c.opts.OnComplete != nil {
					c.opts.OnComplete(ok)
				}
				return
			}
		}
	}
}

// invoke runs the handler, converting a panic into an error report.
func (c *Channel[T]) invoke(item T) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			c.panics.Add(1)
			handlerPanics.WithLabelValues(c.opts.DeviceID, c.opts.Stream).Inc()
			err := fmt.Errorf("%s handler panicked: %v", c.opts.Stream, r)
			c.logger.Error("Handler panicked", "error", err)
			if c.opts.OnError != nil {
				c.opts.OnError(err)
			}
		}
	}()
	c.handler(item)
	return true
}

func (c *Channel[T]) drop(counter *atomic.Uint64, reason string) {
	counter.Add(1)
	buffersDropped.WithLabelValues(c.opts.DeviceID, c.opts.Stream, reason).Inc()
	c.logger.Debug("Buffer dropped", "reason", reason)
}

func (c *Channel[T]) takeLocked() T {
	var buf T
	if n := len(c.free); n > 0 {
		buf = c.free[n-1]
		c.free = c.free[:n-1]
	}
	return buf
}

func (c *Channel[T]) recycleLocked(buf T) {
	if len(c.free) < poolSize {
		c.free = append(c.free, buf)
	}
}
