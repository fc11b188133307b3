package synthetic

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/smazurov/mediadevice/internal/delivery"
	"github.com/smazurov/mediadevice/internal/devices"
	"github.com/smazurov/mediadevice/internal/pipeline"
)

const (
	defaultToneHz  = 440.0
	bufferDuration = 10 * time.Millisecond
	toneAmplitude  = 0.25
)

// frameClock splits a sample rate into whole frames per buffer, carrying
// the remainder so every second adds up to exactly rate frames.
type frameClock struct {
	rate      int
	perSecond int
	remainder int
}

func newFrameClock(rate int) *frameClock {
	return &frameClock{rate: rate, perSecond: int(time.Second / bufferDuration)}
}

// next returns the frame count of the next buffer.
func (c *frameClock) next() int {
	total := c.rate + c.remainder
	c.remainder = total % c.perSecond
	return total / c.perSecond
}

type microphone struct {
	desc   devices.Descriptor
	toneHz float64
	now    func() int64
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newMicrophone(desc devices.Descriptor, toneHz float64, now func() int64, logger *slog.Logger) *microphone {
	return &microphone{desc: desc, toneHz: toneHz, now: now, logger: logger}
}

func (m *microphone) Start(settings devices.AudioSettings, sink pipeline.SampleSink, _ pipeline.ErrorFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return errAlreadyStarted
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.wg.Add(1)
	go m.run(ctx, settings, sink)

	m.logger.Debug("Synthetic microphone started",
		"sample_rate", settings.SampleRate, "channels", settings.ChannelCount)
	return nil
}

func (m *microphone) run(ctx context.Context, settings devices.AudioSettings, sink pipeline.SampleSink) {
	defer m.wg.Done()

	ticker := time.NewTicker(bufferDuration)
	defer ticker.Stop()

	clock := newFrameClock(settings.SampleRate)
	channels := settings.ChannelCount
	maxFrames := settings.SampleRate/clock.perSecond + 1
	samples := make([]float32, maxFrames*channels)

	amplitude := toneAmplitude
	if settings.EchoCancellation {
		amplitude *= 0.8
	}
	step := 2 * math.Pi * m.toneHz / float64(settings.SampleRate)
	phase := 0.0

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frames := clock.next()
		for i := 0; i < frames; i++ {
			v := float32(amplitude * math.Sin(phase))
			for ch := 0; ch < channels; ch++ {
				samples[i*channels+ch] = v
			}
			phase += step
			if phase > 2*math.Pi {
				phase -= 2 * math.Pi
			}
		}

		sink.Offer(delivery.SampleBuffer{
			Samples:    samples[:frames*channels],
			Channels:   channels,
			SampleRate: settings.SampleRate,
			Timestamp:  m.now(),
		})
	}
}

func (m *microphone) Stop() error {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return errNotStarted
	}
	cancel()
	m.wg.Wait()
	m.logger.Debug("Synthetic microphone stopped")
	return nil
}
