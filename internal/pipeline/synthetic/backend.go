// Package synthetic is a capture backend that generates test patterns and
// tones for the devices listed in a Catalog.
package synthetic

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/mediadevice/internal/devices"
	"github.com/smazurov/mediadevice/internal/pipeline"
)

// Backend implements pipeline.Backend on top of a Catalog. The catalog can
// be swapped at runtime to simulate hot-plug.
type Backend struct {
	mu      sync.RWMutex
	catalog *Catalog
	logger  *slog.Logger
	epoch   time.Time
}

var _ pipeline.Backend = (*Backend)(nil)

// New creates a backend. A nil catalog means DefaultCatalog.
func New(catalog *Catalog, logger *slog.Logger) *Backend {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{catalog: catalog, logger: logger, epoch: time.Now()}
}

// SetCatalog replaces the catalog used by the next Discover.
func (b *Backend) SetCatalog(c *Catalog) {
	b.mu.Lock()
	b.catalog = c
	b.mu.Unlock()
}

// Discover implements devices.Discoverer.
func (b *Backend) Discover(ctx context.Context) ([]devices.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.catalog.Descriptors()
}

// OpenCamera implements pipeline.Backend.
func (b *Backend) OpenCamera(_ context.Context, desc devices.Descriptor) (pipeline.CameraPipeline, error) {
	return newCamera(desc, b.now, b.logger.With("device_key", desc.Key)), nil
}

// OpenMicrophone implements pipeline.Backend.
func (b *Backend) OpenMicrophone(_ context.Context, desc devices.Descriptor) (pipeline.AudioPipeline, error) {
	b.mu.RLock()
	tone := b.catalog.toneFor(desc.Key)
	b.mu.RUnlock()
	return newMicrophone(desc, tone, b.now, b.logger.With("device_key", desc.Key)), nil
}

// now returns monotonic nanoseconds since the backend was created.
func (b *Backend) now() int64 {
	return time.Since(b.epoch).Nanoseconds()
}
