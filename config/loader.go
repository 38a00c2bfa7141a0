package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
)

// Environment overrides
const (
	EnvAPIKey  = "AITYPING_API_KEY"
	EnvBaseURL = "AITYPING_BASE_URL"
	EnvModel   = "AITYPING_MODEL"
)

const reloadDebounce = 100 * time.Millisecond

// Loader owns the current configuration: it loads the file, resolves the
// API key, saves changes and reloads when the file changes on disk.
type Loader struct {
	path    string
	envPath string
	secrets SecretStore

	mu       sync.RWMutex
	config   *Config
	onChange []func(*Config)

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithSecretStore overrides the keyring used for the API key. A nil store
// disables keyring lookups.
func WithSecretStore(s SecretStore) LoaderOption {
	return func(l *Loader) { l.secrets = s }
}

// WithEnvFile loads overrides from a .env file before reading the environment
func WithEnvFile(path string) LoaderOption {
	return func(l *Loader) { l.envPath = path }
}

// NewLoader creates a loader for the file at path
func NewLoader(path string, opts ...LoaderOption) *Loader {
	l := &Loader{
		path:    path,
		envPath: filepath.Join(filepath.Dir(path), ".env"),
		secrets: NewKeyringStore(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the configuration file path
func (l *Loader) Path() string {
	return l.path
}

// Load reads, resolves and validates the configuration
func (l *Loader) Load() (*Config, error) {
	cfg, err := l.read()
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.config = cfg
	l.mu.Unlock()
	return cfg, nil
}

func (l *Loader) read() (*Config, error) {
	cfg, err := LoadFile(l.path)
	if err != nil {
		return nil, err
	}

	l.applyEnv(cfg)
	l.resolveAPIKey(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", l.path, err)
	}
	return cfg, nil
}

func (l *Loader) applyEnv(cfg *Config) {
	if l.envPath != "" {
		if _, err := os.Stat(l.envPath); err == nil {
			if err := godotenv.Load(l.envPath); err != nil {
				slog.Warn("Failed to load env file", "path", l.envPath, "error", err)
			}
		}
	}

	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.apiKey = v
	}
}

func (l *Loader) resolveAPIKey(cfg *Config) {
	if cfg.apiKey != "" || cfg.LLM.APIKey != "" || l.secrets == nil {
		return
	}

	key, err := l.secrets.Get(APIKeySecret)
	switch {
	case err == nil:
		cfg.apiKey = key
	case errors.Is(err, ErrSecretNotFound):
		slog.Debug("No API key in keyring")
	default:
		slog.Warn("Failed to read API key from keyring", "error", err)
	}
}

// Config returns the current configuration
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// Update validates cfg, writes it to disk and makes it current
func (l *Loader) Update(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := Save(l.path, cfg); err != nil {
		return err
	}

	l.mu.Lock()
	if l.config != nil && cfg.apiKey == "" {
		cfg.apiKey = l.config.apiKey
	}
	l.config = cfg
	l.mu.Unlock()

	l.notify(cfg)
	return nil
}

// SetAPIKey stores key in the keyring and applies it to the current config
func (l *Loader) SetAPIKey(key string) error {
	if l.secrets == nil {
		return fmt.Errorf("no secret store configured")
	}
	if err := l.secrets.Set(APIKeySecret, key); err != nil {
		return err
	}

	l.mu.Lock()
	if l.config != nil {
		l.config.apiKey = key
	}
	l.mu.Unlock()
	return nil
}

// DeleteAPIKey removes the key from the keyring
func (l *Loader) DeleteAPIKey() error {
	if l.secrets == nil {
		return fmt.Errorf("no secret store configured")
	}
	err := l.secrets.Remove(APIKeySecret)
	if errors.Is(err, ErrSecretNotFound) {
		return nil
	}
	return err
}

// OnChange registers fn to run after every successful reload or update
func (l *Loader) OnChange(fn func(*Config)) {
	l.mu.Lock()
	l.onChange = append(l.onChange, fn)
	l.mu.Unlock()
}

func (l *Loader) notify(cfg *Config) {
	l.mu.RLock()
	callbacks := append([]func(*Config){}, l.onChange...)
	l.mu.RUnlock()

	for _, fn := range callbacks {
		fn(cfg)
	}
}

// Watch reloads the configuration whenever the file changes until ctx is
// done or Close is called. An invalid file is logged and ignored.
func (l *Loader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// Editors replace files on save, so watch the directory
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	l.watcher = watcher
	l.cancel = cancel
	l.done = make(chan struct{})

	go l.watchLoop(ctx)
	return nil
}

func (l *Loader) watchLoop(ctx context.Context) {
	defer close(l.done)
	defer l.watcher.Close()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(l.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, l.reload)

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Config watcher error", "error", err)
		}
	}
}

func (l *Loader) reload() {
	cfg, err := l.read()
	if err != nil {
		slog.Error("Failed to reload config, keeping previous", "error", err)
		return
	}

	l.mu.Lock()
	l.config = cfg
	l.mu.Unlock()

	slog.Info("Configuration reloaded", "path", l.path)
	l.notify(cfg)
}

// Close stops watching
func (l *Loader) Close() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
}
