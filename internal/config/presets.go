package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/mediadevice/internal/devices"
)

// Preset is the saved configuration of one device, keyed by the device's
// discovery key so it survives restarts and re-plugging.
type Preset struct {
	Key       string                  `toml:"key" json:"key"`
	Name      string                  `toml:"name" json:"name"`
	Camera    *devices.CameraSettings `toml:"camera,omitempty" json:"camera,omitempty"`
	Audio     *devices.AudioSettings  `toml:"audio,omitempty" json:"audio,omitempty"`
	UpdatedAt time.Time               `toml:"updated_at" json:"updated_at"`
}

// PresetsFile is the on-disk layout of the presets file.
type PresetsFile struct {
	Version int               `toml:"version" json:"version"`
	Presets map[string]Preset `toml:"presets" json:"presets"`
}

// PresetStore persists device presets in a TOML file.
type PresetStore struct {
	path string
	mu   sync.RWMutex
	file PresetsFile
}

// DefaultPresetsPath returns the presets file under the XDG state
// directory, creating the parent directory. It falls back to the working
// directory when no state directory is usable.
func DefaultPresetsPath() string {
	path, err := xdg.StateFile("mediadevice/presets.toml")
	if err != nil {
		return "presets.toml"
	}
	return path
}

// NewPresetStore creates a store backed by path, or DefaultPresetsPath when
// path is empty. Load must be called to read existing presets.
func NewPresetStore(path string) *PresetStore {
	if path == "" {
		path = DefaultPresetsPath()
	}
	return &PresetStore{
		path: path,
		file: PresetsFile{Version: 1, Presets: make(map[string]Preset)},
	}
}

// Load reads the presets file. A missing file leaves the store empty.
func (ps *PresetStore) Load() error {
	data, err := os.ReadFile(ps.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read presets: %w", err)
	}

	var file PresetsFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse presets: %w", err)
	}
	if file.Presets == nil {
		file.Presets = make(map[string]Preset)
	}
	if file.Version == 0 {
		file.Version = 1
	}

	ps.mu.Lock()
	ps.file = file
	ps.mu.Unlock()
	return nil
}

// saveLocked writes the file atomically. Must hold ps.mu.
func (ps *PresetStore) saveLocked() error {
	dir := filepath.Dir(ps.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create presets directory: %w", err)
	}

	data, err := toml.Marshal(ps.file)
	if err != nil {
		return fmt.Errorf("failed to marshal presets: %w", err)
	}

	tmp := ps.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write presets: %w", err)
	}
	if err := os.Rename(tmp, ps.path); err != nil {
		return fmt.Errorf("failed to replace presets: %w", err)
	}
	return nil
}

// SaveCamera records camera settings for a device and writes the file.
func (ps *PresetStore) SaveCamera(key, name string, settings devices.CameraSettings) error {
	return ps.update(key, name, func(p *Preset) { p.Camera = &settings })
}

// SaveAudio records audio settings for a device and writes the file.
func (ps *PresetStore) SaveAudio(key, name string, settings devices.AudioSettings) error {
	return ps.update(key, name, func(p *Preset) { p.Audio = &settings })
}

func (ps *PresetStore) update(key, name string, apply func(*Preset)) error {
	if key == "" {
		return errors.New("preset key cannot be empty")
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	p := ps.file.Presets[key]
	p.Key = key
	if name != "" {
		p.Name = name
	}
	apply(&p)
	p.UpdatedAt = time.Now().UTC()
	ps.file.Presets[key] = p
	return ps.saveLocked()
}

// Remove deletes the preset for key.
func (ps *PresetStore) Remove(key string) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if _, ok := ps.file.Presets[key]; !ok {
		return fmt.Errorf("preset %s not found", key)
	}
	delete(ps.file.Presets, key)
	return ps.saveLocked()
}

// Get returns the preset for key.
func (ps *PresetStore) Get(key string) (Preset, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	p, ok := ps.file.Presets[key]
	return p, ok
}

// All returns every preset sorted by key.
func (ps *PresetStore) All() []Preset {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	out := make([]Preset, 0, len(ps.file.Presets))
	for _, p := range ps.file.Presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Apply restores the saved preset of the device behind h through the
// regular setters, so values are validated against the device's
// capabilities. Unsupported controls are skipped.
func (ps *PresetStore) Apply(reg *devices.Registry, h devices.Handle) error {
	desc, err := reg.Descriptor(h)
	if err != nil {
		return err
	}
	p, ok := ps.Get(desc.Key)
	if !ok {
		return nil
	}

	var errs []error
	if p.Camera != nil && desc.Kind == devices.KindCamera {
		cam, err := reg.Camera(h)
		if err != nil {
			return err
		}
		errs = append(errs, applyCamera(cam, desc.Flags, *p.Camera)...)
	}
	if p.Audio != nil && desc.Kind == devices.KindMicrophone {
		mic, err := reg.Audio(h)
		if err != nil {
			return err
		}
		errs = append(errs,
			mic.SetSampleRate(p.Audio.SampleRate),
			mic.SetChannelCount(p.Audio.ChannelCount),
			mic.SetEchoCancellation(p.Audio.EchoCancellation),
		)
	}
	return errors.Join(errs...)
}

func applyCamera(cam *devices.Camera, flags devices.Flags, s devices.CameraSettings) []error {
	errs := []error{
		cam.SetPreviewResolution(s.PreviewResolution),
		cam.SetPhotoResolution(s.PhotoResolution),
		cam.SetFrameRate(s.FrameRate),
		cam.SetOrientation(s.Orientation),
		cam.SetExposureBias(s.ExposureBias),
		cam.SetZoomRatio(s.ZoomRatio),
	}
	if flags.Flash() {
		errs = append(errs, cam.SetFlashMode(s.FlashMode))
	}
	if flags.Torch() {
		errs = append(errs, cam.SetTorchEnabled(s.TorchEnabled))
	}
	if flags.ExposureLock() {
		errs = append(errs, cam.SetExposureLock(s.ExposureLock))
	}
	if flags.FocusLock() {
		errs = append(errs, cam.SetFocusLock(s.FocusLock))
	}
	if flags.WhiteBalanceLock() {
		errs = append(errs, cam.SetWhiteBalanceLock(s.WhiteBalanceLock))
	}
	if flags.ExposurePoint() {
		errs = append(errs, cam.SetExposurePoint(s.ExposurePoint))
	}
	if flags.FocusPoint() {
		errs = append(errs, cam.SetFocusPoint(s.FocusPoint))
	}
	return errs
}
