package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/aurora/engine/core"
)

// RendererConfig holds every option the resource lifecycle components accept.
// FramesInFlight is both the descriptor cache history size and the uploader's
// max-frames-ahead; the two must match for the temporal safety argument to hold,
// so only one knob is exposed.
type RendererConfig struct {
	FramesInFlight           int    `toml:"frames_in_flight"`
	DefaultStagingBufferSize uint64 `toml:"default_staging_buffer_size"`
	StagingAlignment         uint64 `toml:"staging_alignment"`
	MaxDescriptorSets        uint32 `toml:"max_descriptor_sets"`
	DescriptorsPerType       uint32 `toml:"descriptors_per_type"`
	UploadFenceTimeoutMS     uint64 `toml:"upload_fence_timeout_ms"`
	DebugChecks              bool   `toml:"debug_checks"`
}

type Config struct {
	AppName  string         `toml:"app_name"`
	Renderer RendererConfig `toml:"renderer"`
}

func Default() *Config {
	return &Config{
		AppName: "Aurora Testbed",
		Renderer: RendererConfig{
			FramesInFlight:           3,
			DefaultStagingBufferSize: 16 * 1024 * 1024,
			StagingAlignment:         4,
			MaxDescriptorSets:        4096,
			DescriptorsPerType:       1024,
			UploadFenceTimeoutMS:     10000,
			DebugChecks:              false,
		},
	}
}

// Load reads a TOML config file. Options missing from the file keep their
// defaults. The file itself is optional.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			core.LogWarn("config file %s not found, using defaults", path)
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	r := c.Renderer
	if r.FramesInFlight <= 0 {
		return fmt.Errorf("frames_in_flight must be positive, got %d", r.FramesInFlight)
	}
	if r.DefaultStagingBufferSize == 0 {
		return fmt.Errorf("default_staging_buffer_size must be positive")
	}
	if r.StagingAlignment == 0 || r.StagingAlignment&(r.StagingAlignment-1) != 0 {
		return fmt.Errorf("staging_alignment must be a power of two, got %d", r.StagingAlignment)
	}
	if r.MaxDescriptorSets == 0 {
		return fmt.Errorf("max_descriptor_sets must be positive")
	}
	if r.DescriptorsPerType == 0 {
		return fmt.Errorf("descriptors_per_type must be positive")
	}
	return nil
}

// Watcher reports edits to the config file while the engine runs. Changes are
// not applied live; the lifecycle constants cannot change under a running frame
// ring, so the watcher only tells the user a restart is needed.
type Watcher struct {
	fsnotify *fsnotify.Watcher
	done     chan struct{}
}

func Watch(path string) (*Watcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fsWatch.Add(filepath.Dir(path)); err != nil {
		fsWatch.Close()
		return nil, err
	}

	w := &Watcher{
		fsnotify: fsWatch,
		done:     make(chan struct{}),
	}

	go func() {
		target := filepath.Clean(path)
		for {
			select {
			case <-w.done:
				return
			case event, ok := <-w.fsnotify.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) == target && event.Op.Has(fsnotify.Write) {
					core.LogInfo("config file %s changed; restart to apply", path)
				}
			case err, ok := <-w.fsnotify.Errors:
				if !ok {
					return
				}
				core.LogError("config watcher: %s", err.Error())
			}
		}
	}()

	return w, nil
}

func (w *Watcher) Close() error {
	close(w.done)
	return w.fsnotify.Close()
}
