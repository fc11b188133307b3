package api

import (
	"bytes"
	"image/png"
	"math"
	"sync"

	"github.com/smazurov/mediadevice/internal/delivery"
	"github.com/smazurov/mediadevice/internal/devices"
)

// capture is a session started through the API. It owns the handle the
// session runs on and keeps the latest buffer for previews and levels.
type capture struct {
	handle devices.Handle
	kind   devices.Kind

	mu      sync.Mutex
	frame   delivery.Frame
	level   float64
	buffers uint64
	ready   chan struct{}
	once    sync.Once
}

func newCapture(h devices.Handle, kind devices.Kind) *capture {
	return &capture{handle: h, kind: kind, ready: make(chan struct{})}
}

// onFrame copies f; the channel reuses its buffers after the handler returns.
func (c *capture) onFrame(f delivery.Frame) {
	c.mu.Lock()
	c.frame.Data = append(c.frame.Data[:0], f.Data...)
	c.frame.Width, c.frame.Height, c.frame.Timestamp = f.Width, f.Height, f.Timestamp
	c.buffers++
	c.mu.Unlock()
	c.once.Do(func() { close(c.ready) })
}

func (c *capture) onSamples(b delivery.SampleBuffer) {
	level := rms(b.Samples)
	c.mu.Lock()
	c.level = level
	c.buffers++
	c.mu.Unlock()
	c.once.Do(func() { close(c.ready) })
}

// latestFrame returns a copy of the most recent preview frame.
func (c *capture) latestFrame() (delivery.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buffers == 0 {
		return delivery.Frame{}, false
	}
	return c.frame.Clone(), true
}

func (c *capture) latestLevel() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level, c.buffers > 0
}

func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// encodePNG encodes an RGBA frame.
func encodePNG(f delivery.Frame) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, f.Image()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
