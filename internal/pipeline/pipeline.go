// Package pipeline defines the boundary between the device core and a
// capture backend that produces frames and samples.
package pipeline

import (
	"context"

	"github.com/smazurov/mediadevice/internal/delivery"
	"github.com/smazurov/mediadevice/internal/devices"
)

// FrameSink accepts produced frames. Offer must never block.
type FrameSink interface {
	Offer(frame delivery.Frame) bool
}

// SampleSink accepts produced sample buffers. Offer must never block.
type SampleSink interface {
	Offer(buf delivery.SampleBuffer) bool
}

// ErrorFunc receives failures that happen after a pipeline has started.
type ErrorFunc func(err error)

// Backend discovers hardware and opens capture pipelines on it.
type Backend interface {
	devices.Discoverer
	OpenCamera(ctx context.Context, desc devices.Descriptor) (CameraPipeline, error)
	OpenMicrophone(ctx context.Context, desc devices.Descriptor) (AudioPipeline, error)
}

// CameraPipeline produces preview frames and photos for one camera.
type CameraPipeline interface {
	// ApplyControls updates live controls of a running pipeline.
	devices.ControlSink

	// Start begins pushing preview frames into preview with the given settings.
	Start(settings devices.CameraSettings, preview FrameSink, onError ErrorFunc) error

	// CapturePhoto asynchronously pushes exactly one photo-resolution frame
	// into photo. Must only be called between Start and Stop.
	CapturePhoto(photo FrameSink, onError ErrorFunc) error

	// Stop halts production and returns once no more frames will be offered.
	Stop() error
}

// AudioPipeline produces sample buffers for one microphone.
type AudioPipeline interface {
	Start(settings devices.AudioSettings, sink SampleSink, onError ErrorFunc) error
	Stop() error
}
