package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DynamicConfig is the part of the configuration that can change at runtime
type DynamicConfig struct {
	Sync     SyncSettings    `yaml:"sync"`
	Articles ArticleSettings `yaml:"articles"`
	Metadata ConfigMetadata  `yaml:"metadata"`
}

// SyncSettings tunes snapshot delivery
type SyncSettings struct {
	PollInterval time.Duration `yaml:"pollInterval"`
}

// ArticleSettings holds the defaults used for lazily created articles
type ArticleSettings struct {
	DefaultTitle        string `yaml:"defaultTitle"`
	UseDescriptionTitle bool   `yaml:"useDescriptionTitle"`
}

// ConfigMetadata holds metadata about the configuration
type ConfigMetadata struct {
	Version   string    `yaml:"version"`
	UpdatedAt time.Time `yaml:"updatedAt"`
}

// Validate checks the dynamic configuration
func (c *DynamicConfig) Validate() error {
	if c.Sync.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("sync.pollInterval must be at least 100ms")
	}
	if c.Articles.DefaultTitle == "" {
		return fmt.Errorf("articles.defaultTitle must not be empty")
	}
	return nil
}

// ConfigWatcher reloads a DynamicConfig file whenever it changes on disk
type ConfigWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	mu       sync.RWMutex
	current  *DynamicConfig
	onChange []func(*DynamicConfig)
	logger   *zap.Logger
	debounce time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewConfigWatcher loads the file and starts tracking it
func NewConfigWatcher(path string, logger *zap.Logger) (*ConfigWatcher, error) {
	cfg, err := loadDynamicConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// editors save by rename, so the directory is watched rather than the file
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	return &ConfigWatcher{
		path:     path,
		watcher:  watcher,
		current:  cfg,
		logger:   logger,
		debounce: 100 * time.Millisecond,
		stopCh:   make(chan struct{}),
	}, nil
}

// Current returns the active configuration
func (w *ConfigWatcher) Current() *DynamicConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers a listener called with every accepted reload
func (w *ConfigWatcher) OnChange(fn func(*DynamicConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Run watches for changes until Stop is called
func (w *ConfigWatcher) Run() {
	w.logger.Info("Configuration watcher started", zap.String("path", w.path))

	var timer *time.Timer
	for {
		select {
		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

// Stop stops watching
func (w *ConfigWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
		w.logger.Info("Configuration watcher stopped")
	})
}

func (w *ConfigWatcher) reload() {
	cfg, err := loadDynamicConfig(w.path)
	if err != nil {
		w.logger.Error("Failed to reload configuration, keeping current", zap.Error(err))
		return
	}

	w.mu.Lock()
	old := w.current
	w.current = cfg
	listeners := append([]func(*DynamicConfig){}, w.onChange...)
	w.mu.Unlock()

	if old.Sync.PollInterval != cfg.Sync.PollInterval {
		w.logger.Info("Poll interval changed",
			zap.Duration("old", old.Sync.PollInterval),
			zap.Duration("new", cfg.Sync.PollInterval),
		)
	}
	for _, fn := range listeners {
		fn(cfg)
	}
	w.logger.Info("Configuration reloaded", zap.String("version", cfg.Metadata.Version))
}

func loadDynamicConfig(path string) (*DynamicConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg DynamicConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
