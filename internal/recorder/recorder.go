// Package recorder writes microphone sample buffers to 16-bit PCM WAV,
// optionally converting the sample rate on the way.
package recorder

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/oov/audio/resampler"

	"github.com/smazurov/mediadevice/internal/delivery"
)

const (
	bitDepth        = 16
	pcmFormat       = 1
	resampleQuality = 10
)

// ErrClosed is returned when writing to a closed recorder.
var ErrClosed = errors.New("recorder closed")

// Options configures a Recorder.
type Options struct {
	// SampleRate of the input buffers (required).
	SampleRate int

	// Channels of the input buffers (required).
	Channels int

	// OutputRate of the file. Zero keeps the input rate.
	OutputRate int

	// Logger for recorder operations. If nil, uses slog.Default().
	Logger *slog.Logger
}

// Recorder encodes interleaved float sample buffers into a WAV stream.
type Recorder struct {
	opts    Options
	logger  *slog.Logger
	encoder *wav.Encoder
	closer  io.Closer

	mu        sync.Mutex
	closed    bool
	err       error
	frames    int64
	resampler *resampler.Resampler
	planarIn  [][]float32
	planarOut [][]float32
	buf       goaudio.IntBuffer
}

// New creates a recorder writing to w. The WAV header is finalized by Close.
func New(w io.WriteSeeker, opts Options) (*Recorder, error) {
	if opts.SampleRate <= 0 || opts.Channels <= 0 {
		return nil, fmt.Errorf("invalid input format: %d Hz, %d channels", opts.SampleRate, opts.Channels)
	}
	if opts.OutputRate <= 0 {
		opts.OutputRate = opts.SampleRate
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		opts:    opts,
		logger:  logger,
		encoder: wav.NewEncoder(w, opts.OutputRate, bitDepth, opts.Channels, pcmFormat),
	}
	r.buf.Format = &goaudio.Format{SampleRate: opts.OutputRate, NumChannels: opts.Channels}
	r.buf.SourceBitDepth = bitDepth

	if opts.OutputRate != opts.SampleRate {
		r.resampler = resampler.New(opts.Channels, opts.SampleRate, opts.OutputRate, resampleQuality)
		r.planarIn = make([][]float32, opts.Channels)
		r.planarOut = make([][]float32, opts.Channels)
		logger.Debug("Resampling enabled", "from", opts.SampleRate, "to", opts.OutputRate)
	}
	return r, nil
}

// Create opens path for writing and returns a recorder that closes the
// file on Close.
func Create(path string, opts Options) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	r, err := New(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// Write encodes one buffer. Buffers must match the configured input format.
func (r *Recorder) Write(b delivery.SampleBuffer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if b.Channels != r.opts.Channels || b.SampleRate != r.opts.SampleRate {
		return fmt.Errorf("buffer format %d Hz/%d ch does not match recorder %d Hz/%d ch",
			b.SampleRate, b.Channels, r.opts.SampleRate, r.opts.Channels)
	}

	samples := b.Samples[:b.Frames()*b.Channels]
	if r.resampler != nil {
		samples = r.resample(samples)
	}

	r.buf.Data = r.buf.Data[:0]
	for _, s := range samples {
		r.buf.Data = append(r.buf.Data, toInt16(s))
	}
	if err := r.encoder.Write(&r.buf); err != nil {
		return fmt.Errorf("failed to encode samples: %w", err)
	}
	r.frames += int64(len(samples) / r.opts.Channels)
	return nil
}

// resample converts interleaved samples per channel and re-interleaves
// them. Must hold r.mu.
func (r *Recorder) resample(samples []float32) []float32 {
	ch := r.opts.Channels
	n := len(samples) / ch
	capacity := n*r.opts.OutputRate/r.opts.SampleRate + 64

	for c := 0; c < ch; c++ {
		in := r.planarIn[c][:0]
		for i := 0; i < n; i++ {
			in = append(in, samples[i*ch+c])
		}
		r.planarIn[c] = in
		if cap(r.planarOut[c]) < capacity {
			r.planarOut[c] = make([]float32, capacity)
		}
		r.planarOut[c] = r.planarOut[c][:capacity]
	}

	written := capacity
	for c := 0; c < ch; c++ {
		_, w := r.resampler.ProcessFloat32(c, r.planarIn[c], r.planarOut[c])
		written = min(written, w)
	}

	out := make([]float32, 0, written*ch)
	for i := 0; i < written; i++ {
		for c := 0; c < ch; c++ {
			out = append(out, r.planarOut[c][i])
		}
	}
	return out
}

func toInt16(s float32) int {
	if math.IsNaN(float64(s)) {
		return 0
	}
	s = max(-1, min(1, s))
	return int(s * math.MaxInt16)
}

// Handler returns a delivery handler that records every buffer. The first
// write error is kept and returned by Close; later buffers are dropped.
func (r *Recorder) Handler() delivery.SampleHandler {
	return func(b delivery.SampleBuffer) {
		if err := r.Write(b); err != nil {
			r.mu.Lock()
			if r.err == nil && !errors.Is(err, ErrClosed) {
				r.err = err
				r.logger.Error("Recording failed", "error", err)
			}
			r.mu.Unlock()
		}
	}
}

// Frames returns the number of sample frames written at the output rate.
func (r *Recorder) Frames() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Duration returns the length of the recorded audio.
func (r *Recorder) Duration() time.Duration {
	return time.Duration(r.Frames()) * time.Second / time.Duration(r.opts.OutputRate)
}

// Close finalizes the WAV header and closes the file opened by Create.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	errs := []error{r.err}
	if err := r.encoder.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to finalize wav: %w", err))
	}
	if r.closer != nil {
		errs = append(errs, r.closer.Close())
	}

	r.logger.Info("Recording finished", "frames", r.frames, "rate", r.opts.OutputRate, "channels", r.opts.Channels)
	return errors.Join(errs...)
}
