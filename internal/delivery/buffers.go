package delivery

import "image"

// BytesPerPixel is the size of one RGBA8888 pixel.
const BytesPerPixel = 4

// Frame is a tightly packed RGBA8888 image.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Timestamp int64 // monotonic nanoseconds
}

// Valid reports whether Data holds exactly Width*Height pixels.
func (f Frame) Valid() bool {
	if f.Width <= 0 || f.Height <= 0 {
		return false
	}
	// Divide rather than multiply so huge dimensions cannot overflow.
	pixels := len(f.Data) / BytesPerPixel
	return len(f.Data)%BytesPerPixel == 0 && pixels%f.Width == 0 && pixels/f.Width == f.Height
}

// Clone returns a copy that owns its pixel data.
func (f Frame) Clone() Frame {
	f.Data = append([]byte(nil), f.Data...)
	return f
}

// Image wraps the pixel data without copying. The frame must be Valid.
func (f Frame) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    f.Data,
		Stride: f.Width * BytesPerPixel,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// SampleBuffer is interleaved 32-bit float PCM.
type SampleBuffer struct {
	Samples    []float32
	Channels   int
	SampleRate int
	Timestamp  int64 // monotonic nanoseconds
}

// SampleCount returns the number of samples across all channels.
func (b SampleBuffer) SampleCount() int { return len(b.Samples) }

// Frames returns the number of sample frames (samples per channel).
func (b SampleBuffer) Frames() int {
	if b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Clone returns a copy that owns its sample data.
func (b SampleBuffer) Clone() SampleBuffer {
	b.Samples = append([]float32(nil), b.Samples...)
	return b
}

// FrameHandler consumes preview or photo frames.
type FrameHandler func(Frame)

// SampleHandler consumes microphone sample buffers.
type SampleHandler func(SampleBuffer)

func copyFrame(dst, src Frame) Frame {
	dst.Data = append(dst.Data[:0], src.Data...)
	dst.Width = src.Width
	dst.Height = src.Height
	dst.Timestamp = src.Timestamp
	return dst
}

func copySamples(dst, src SampleBuffer) SampleBuffer {
	dst.Samples = append(dst.Samples[:0], src.Samples...)
	dst.Channels = src.Channels
	dst.SampleRate = src.SampleRate
	dst.Timestamp = src.Timestamp
	return dst
}

func frameTimestamp(f Frame) int64         { return f.Timestamp }
func sampleTimestamp(b SampleBuffer) int64 { return b.Timestamp }
