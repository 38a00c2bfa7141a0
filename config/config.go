package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const appName = "aityping"

type Config struct {
	Hotkey     HotkeyConfig     `toml:"hotkey" json:"hotkey"`
	LLM        LLMConfig        `toml:"llm" json:"llm"`
	Language   LanguageConfig   `toml:"language" json:"language"`
	Clipboard  ClipboardConfig  `toml:"clipboard" json:"clipboard"`
	Automation AutomationConfig `toml:"automation" json:"automation"`
	Storage    StorageConfig    `toml:"storage" json:"storage"`
	Web        WebConfig        `toml:"web" json:"web"`
	Feedback   FeedbackConfig   `toml:"feedback" json:"feedback"`
	Log        LogConfig        `toml:"log" json:"log"`

	// apiKey is the key in effect after env and keyring resolution
	apiKey string
}

type HotkeyConfig struct {
	Enabled  bool       `toml:"enabled" json:"enabled"`
	Selected HotkeySpec `toml:"selected" json:"selected"`
	Full     HotkeySpec `toml:"full" json:"full"`
}

type LLMConfig struct {
	BaseURL            string            `toml:"base_url" json:"base_url"`
	APIKey             string            `toml:"api_key" json:"-"`
	Model              string            `toml:"model" json:"model"`
	Temperature        float64           `toml:"temperature" json:"temperature"`
	TopP               float64           `toml:"top_p" json:"top_p"`
	SystemPrompt       string            `toml:"system_prompt" json:"system_prompt"`
	UserPromptTemplate string            `toml:"user_prompt_template" json:"user_prompt_template"`
	Streaming          bool              `toml:"streaming" json:"streaming"`
	BatchTimeout       Duration          `toml:"batch_timeout" json:"batch_timeout"`
	StreamTimeout      Duration          `toml:"stream_timeout" json:"stream_timeout"`
	GlossaryPath       string            `toml:"glossary_path" json:"glossary_path"`
	Cleanup            []string          `toml:"cleanup" json:"cleanup"`
	Replacements       map[string]string `toml:"replacements,omitempty" json:"replacements,omitempty"`
}

type Language struct {
	Code string `toml:"code" json:"code"`
	Name string `toml:"name" json:"name"`
}

type LanguageConfig struct {
	CurrentTarget string     `toml:"current_target" json:"current_target"`
	Favorites     []Language `toml:"favorites" json:"favorites"`
}

type ClipboardConfig struct {
	Backend         string `toml:"backend" json:"backend"`
	RestoreAfterRun bool   `toml:"restore_after_run" json:"restore_after_run"`
}

type AutomationConfig struct {
	Backend     string `toml:"backend" json:"backend"`
	KeyListener string `toml:"key_listener" json:"key_listener"`
}

type StorageConfig struct {
	DataDir      string `toml:"data_dir" json:"data_dir"`
	HistoryLimit int    `toml:"history_limit" json:"history_limit"`
}

type WebConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled"`
	Addr    string `toml:"addr" json:"addr"`
}

type FeedbackConfig struct {
	Notifications bool `toml:"notifications" json:"notifications"`
	Sound         bool `toml:"sound" json:"sound"`
}

type LogConfig struct {
	Level string `toml:"level" json:"level"`
}

// Default prompts
const (
	DefaultSystemPrompt       = "You are a professional translator. Maintain the original formatting of the text."
	DefaultUserPromptTemplate = "Translate the following text into {target_language}, keeping the original formatting. Reply with the translation only:\n\n{text}"
)

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Hotkey: HotkeyConfig{
			Enabled:  true,
			Selected: Combination("k", ModControl),
			Full:     Combination("j", ModControl),
		},
		LLM: LLMConfig{
			BaseURL:            "https://api.openai.com/v1",
			Model:              "gpt-4o-mini",
			Temperature:        0.3,
			TopP:               1.0,
			SystemPrompt:       DefaultSystemPrompt,
			UserPromptTemplate: DefaultUserPromptTemplate,
			BatchTimeout:       Duration{30 * time.Second},
			StreamTimeout:      Duration{120 * time.Second},
			Cleanup:            []string{"trim", "fences", "quotes"},
		},
		Language: LanguageConfig{
			CurrentTarget: "en-US",
			Favorites: []Language{
				{Code: "en-US", Name: "English"},
				{Code: "zh-CN", Name: "简体中文"},
				{Code: "ja-JP", Name: "日本語"},
				{Code: "ko-KR", Name: "한국어"},
				{Code: "fr-FR", Name: "Français"},
				{Code: "es-ES", Name: "Español"},
			},
		},
		Clipboard: ClipboardConfig{
			Backend:         "default",
			RestoreAfterRun: true,
		},
		Automation: AutomationConfig{
			Backend:     "default",
			KeyListener: "default",
		},
		Storage: StorageConfig{
			HistoryLimit: 500,
		},
		Web: WebConfig{
			Enabled: true,
			Addr:    "127.0.0.1:7878",
		},
		Feedback: FeedbackConfig{
			Notifications: true,
			Sound:         true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Dir returns the per-user configuration directory, creating it if needed
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}

	dir := filepath.Join(base, appName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// ConfigPath returns the path to the configuration file
func ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// LoadFile decodes path on top of the defaults. A missing file is created
// with default values.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	md, err := toml.Decode(string(data), &struct{}{})
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Hotkeys and favorites given in the file replace the defaults whole,
	// so a default modifier never sticks to a spec that omits it.
	cfg := Default()
	if md.IsDefined("hotkey", "selected") {
		cfg.Hotkey.Selected = HotkeySpec{}
	}
	if md.IsDefined("hotkey", "full") {
		cfg.Hotkey.Full = HotkeySpec{}
	}
	if md.IsDefined("language", "favorites") {
		cfg.Language.Favorites = nil
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to a TOML file
func Save(path string, cfg *Config) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, path)
}

// Validate checks the configuration for values the agent cannot run with
func (c *Config) Validate() error {
	var errs []error

	if err := c.Hotkey.Selected.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("hotkey.selected: %w", err))
	} else if !c.Hotkey.Selected.ValidForSelected() {
		errs = append(errs, fmt.Errorf("hotkey.selected: must be a combination with at least one modifier"))
	}
	if err := c.Hotkey.Full.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("hotkey.full: %w", err))
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("llm.temperature must be between 0 and 2"))
	}
	if c.LLM.TopP < 0 || c.LLM.TopP > 1 {
		errs = append(errs, fmt.Errorf("llm.top_p must be between 0 and 1"))
	}
	if !strings.Contains(c.LLM.UserPromptTemplate, "{text}") {
		errs = append(errs, fmt.Errorf("llm.user_prompt_template must contain {text}"))
	}

	if strings.TrimSpace(c.Language.CurrentTarget) == "" {
		errs = append(errs, fmt.Errorf("language.current_target is empty"))
	}
	if c.Storage.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("storage.history_limit must not be negative"))
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be one of debug, info, warn, error"))
	}

	return errors.Join(errs...)
}

// APIKey returns the key in effect: environment, then file, then keyring
func (c *Config) APIKey() string {
	if c.apiKey != "" {
		return c.apiKey
	}
	return c.LLM.APIKey
}

// LanguageName returns the display name of code, or code itself when it is
// not a favorite
func (c *Config) LanguageName(code string) string {
	for _, l := range c.Language.Favorites {
		if strings.EqualFold(l.Code, code) {
			return l.Name
		}
	}
	return code
}

// SwitchLanguage sets the current target language
func (c *Config) SwitchLanguage(code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("language code is empty")
	}
	c.Language.CurrentTarget = code
	return nil
}

// DataDir returns the directory for the database and glossary
func (c *Config) DataDir() (string, error) {
	if c.Storage.DataDir != "" {
		if err := os.MkdirAll(c.Storage.DataDir, 0755); err != nil {
			return "", fmt.Errorf("failed to create data directory: %w", err)
		}
		return c.Storage.DataDir, nil
	}
	return Dir()
}

// Clone returns a deep copy of c
func (c *Config) Clone() *Config {
	out := *c
	out.Hotkey.Selected.Modifiers = slices.Clone(c.Hotkey.Selected.Modifiers)
	out.Hotkey.Full.Modifiers = slices.Clone(c.Hotkey.Full.Modifiers)
	out.LLM.Cleanup = slices.Clone(c.LLM.Cleanup)
	out.Language.Favorites = slices.Clone(c.Language.Favorites)
	if c.LLM.Replacements != nil {
		out.LLM.Replacements = make(map[string]string, len(c.LLM.Replacements))
		for k, v := range c.LLM.Replacements {
			out.LLM.Replacements[k] = v
		}
	}
	return &out
}
