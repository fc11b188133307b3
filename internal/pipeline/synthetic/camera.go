package synthetic

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/mediadevice/internal/delivery"
	"github.com/smazurov/mediadevice/internal/devices"
	"github.com/smazurov/mediadevice/internal/pipeline"
)

var (
	errNotStarted     = errors.New("pipeline not started")
	errAlreadyStarted = errors.New("pipeline already started")
)

type camera struct {
	desc   devices.Descriptor
	now    func() int64
	logger *slog.Logger

	controls atomic.Pointer[devices.CameraSettings]
	frames   atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	ctx    context.Context
	wg     sync.WaitGroup
}

func newCamera(desc devices.Descriptor, now func() int64, logger *slog.Logger) *camera {
	return &camera{desc: desc, now: now, logger: logger}
}

func (c *camera) ApplyControls(settings devices.CameraSettings) {
	c.controls.Store(&settings)
}

func (c *camera) Start(settings devices.CameraSettings, preview pipeline.FrameSink, _ pipeline.ErrorFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return errAlreadyStarted
	}
	c.controls.Store(&settings)
	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.wg.Add(1)
	go c.run(c.ctx, settings, preview)

	c.logger.Debug("Synthetic camera started",
		"resolution", settings.PreviewResolution, "frame_rate", settings.FrameRate)
	return nil
}

func (c *camera) run(ctx context.Context, settings devices.CameraSettings, preview pipeline.FrameSink) {
	defer c.wg.Done()

	fps := settings.FrameRate
	if fps <= 0 {
		fps = devices.DefaultFrameRate
	}
	interval := time.Second / time.Duration(fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	width, height := frameSize(settings.PreviewResolution, settings.Orientation)
	var buf []byte

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		live := *c.controls.Load()
		// Geometry stays fixed for the session; only live controls change.
		live.PreviewResolution = settings.PreviewResolution
		live.Orientation = settings.Orientation

		n := c.frames.Add(1)
		buf = render(buf, renderParams{width: width, height: height, frame: n, settings: live})
		preview.Offer(delivery.Frame{Data: buf, Width: width, Height: height, Timestamp: c.now()})
	}
}

func (c *camera) CapturePhoto(photo pipeline.FrameSink, onError pipeline.ErrorFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel == nil {
		return errNotStarted
	}
	ctx := c.ctx

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		settings := *c.controls.Load()
		flash := settings.FlashMode == devices.FlashOn ||
			(settings.FlashMode == devices.FlashAuto && settings.ExposureBias < 0)

		// Simulated shutter latency.
		select {
		case <-ctx.Done():
			return
		case <-time.After(20 * time.Millisecond):
		}

		width, height := frameSize(settings.PhotoResolution, settings.Orientation)
		data := render(nil, renderParams{
			width: width, height: height, frame: c.frames.Load(),
			settings: settings, flash: flash,
		})
		if !photo.Offer(delivery.Frame{Data: data, Width: width, Height: height, Timestamp: c.now()}) && onError != nil {
			if ctx.Err() == nil {
				onError(errors.New("photo frame rejected by delivery channel"))
			}
		}
	}()
	return nil
}

func (c *camera) Stop() error {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return errNotStarted
	}
	cancel()
	c.wg.Wait()
	c.logger.Debug("Synthetic camera stopped", "frames", c.frames.Load())
	return nil
}
