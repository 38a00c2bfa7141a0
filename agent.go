package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"

	"markestedt/aityping/audio"
	"markestedt/aityping/clipboard"
	"markestedt/aityping/config"
	"markestedt/aityping/feedback"
	"markestedt/aityping/hotkey"
	"markestedt/aityping/orchestrator"
	"markestedt/aityping/platform"
	"markestedt/aityping/postprocess"
	"markestedt/aityping/storage"
	"markestedt/aityping/textio"
	"markestedt/aityping/translate"
	"markestedt/aityping/web"
)

// Agent wires hotkeys, capture, translation, injection and recording
type Agent struct {
	loader     *config.Loader
	db         *storage.DB
	translator *liveTranslator
	orch       *orchestrator.Orchestrator
	binder     *hotkey.Binder
	notifier   *feedback.Notifier
	player     *audio.Player
	web        *web.Server

	mu          sync.Mutex
	boundHotkey config.HotkeyConfig
	onConfig    []func(*config.Config)
}

// NewAgent creates the platform backends and the translation pipeline
func NewAgent(loader *config.Loader) (*Agent, error) {
	cfg := loader.Config()

	cb, err := platform.NewClipboard(cfg.Clipboard.Backend)
	if err != nil {
		return nil, fmt.Errorf("failed to create clipboard: %w", err)
	}
	auto, err := platform.NewAutomation(cfg.Automation.Backend)
	if err != nil {
		return nil, fmt.Errorf("failed to create automation: %w", err)
	}

	var listener platform.KeyListener
	if l, err := platform.NewKeyListener(cfg.Automation.KeyListener); err != nil {
		slog.Warn("Key listener unavailable, consecutive-press hotkeys disabled", "error", err)
	} else {
		listener = l
	}

	translator, err := newLiveTranslator(cfg)
	if err != nil {
		return nil, err
	}

	db, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	exchange := clipboard.New(cb)
	a := &Agent{
		loader:     loader,
		db:         db,
		translator: translator,
		binder:     hotkey.NewBinder(listener),
	}

	a.orch = orchestrator.New(orchestrator.Deps{
		Capturer:   textio.NewCapturer(exchange, auto),
		Injector:   textio.NewInjector(exchange, auto),
		Clipboard:  exchange,
		Translator: translator,
		Recorder:   db,
		Settings:   func() orchestrator.Settings { return settingsFrom(loader.Config()) },
	})

	var player feedback.Player
	if cfg.Feedback.Sound {
		if p, err := audio.NewPlayer(); err != nil {
			slog.Warn("Audio output unavailable, cues disabled", "error", err)
		} else {
			a.player = p
			player = p
		}
	}
	a.notifier = feedback.New(func() config.FeedbackConfig { return loader.Config().Feedback }, player)
	a.orch.AddObserver(a.notifier)

	if cfg.Web.Enabled {
		a.web = web.NewServer(web.Deps{
			Store:          db,
			Config:         loader,
			Runner:         a.orch,
			TestConnection: a.testConnection,
		}, cfg.Web.Addr)
		a.orch.AddObserver(a.web.Hub())
	}

	return a, nil
}

// DashboardURL returns the dashboard address, or "" when it is disabled
func (a *Agent) DashboardURL() string {
	if a.web == nil {
		return ""
	}
	return a.web.URL()
}

// OnConfigChange registers fn to run after the agent applied a new config
func (a *Agent) OnConfigChange(fn func(*config.Config)) {
	a.mu.Lock()
	a.onConfig = append(a.onConfig, fn)
	a.mu.Unlock()
}

// Run binds the hotkeys and serves triggers until ctx is done
func (a *Agent) Run(ctx context.Context) error {
	cfg := a.loader.Config()

	if err := a.db.Maintain(ctx); err != nil {
		slog.Warn("Storage maintenance failed", "error", err)
	}

	if err := a.bind(ctx, cfg); err != nil {
		return err
	}
	defer a.binder.Close()

	a.loader.OnChange(func(cfg *config.Config) { a.applyConfig(ctx, cfg) })
	if err := a.loader.Watch(ctx); err != nil {
		slog.Warn("Config hot reload disabled", "error", err)
	}
	defer a.loader.Close()

	if a.web != nil {
		go func() {
			if err := a.web.Start(ctx); err != nil {
				slog.Error("Web server stopped", "error", err)
			}
		}()
	}

	slog.Info("aityping started",
		"selected", cfg.Hotkey.Selected.Format(),
		"full", cfg.Hotkey.Full.Format(),
		"target", cfg.Language.CurrentTarget,
		"model", cfg.LLM.Model,
		"streaming", cfg.LLM.Streaming,
	)

	var runs sync.WaitGroup
	defer runs.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil

		case tr := <-a.binder.Triggers():
			runs.Add(1)
			go func() {
				defer runs.Done()
				a.handleTrigger(ctx, tr)
			}()
		}
	}
}

func (a *Agent) handleTrigger(ctx context.Context, tr hotkey.Trigger) {
	slog.Debug("Trigger received", "mode", tr.Mode, "hotkey", tr.Hotkey)

	run, err := a.orch.Trigger(ctx, tr.Mode)
	switch {
	case errors.Is(err, orchestrator.ErrBusy):
		slog.Debug("Translation in progress, ignoring trigger", "hotkey", tr.Hotkey)
	case errors.Is(err, orchestrator.ErrDisabled):
		slog.Info("Translation paused, ignoring trigger", "hotkey", tr.Hotkey)
	case run == nil && err == nil:
		slog.Info("Nothing to translate", "mode", tr.Mode)
	case run != nil && run.TokensPerSecond != nil:
		slog.Debug("Run stats", "tokens", *run.Tokens, "tokens_per_second", fmt.Sprintf("%.1f", *run.TokensPerSecond))
	}
}

func (a *Agent) bind(ctx context.Context, cfg *config.Config) error {
	bindings := []hotkey.Binding{
		{Mode: orchestrator.ModeSelected, Spec: cfg.Hotkey.Selected},
		{Mode: orchestrator.ModeFull, Spec: cfg.Hotkey.Full},
	}
	for _, b := range bindings {
		if conflicts := b.Spec.Conflicts(); len(conflicts) > 0 {
			slog.Warn("Hotkey shadows a known shortcut", "hotkey", b.Spec.Format(), "conflicts", conflicts)
		}
	}

	if err := a.binder.Bind(ctx, bindings); err != nil {
		return fmt.Errorf("failed to bind hotkeys: %w", err)
	}

	a.mu.Lock()
	a.boundHotkey = cfg.Hotkey
	a.mu.Unlock()
	return nil
}

// applyConfig reacts to a reloaded or updated configuration
func (a *Agent) applyConfig(ctx context.Context, cfg *config.Config) {
	setLogLevel(cfg.Log.Level)

	if err := a.translator.Reload(cfg); err != nil {
		slog.Error("Keeping previous translation settings", "error", err)
	}

	a.mu.Lock()
	rebind := !reflect.DeepEqual(a.boundHotkey.Selected, cfg.Hotkey.Selected) ||
		!reflect.DeepEqual(a.boundHotkey.Full, cfg.Hotkey.Full)
	callbacks := append([]func(*config.Config){}, a.onConfig...)
	a.mu.Unlock()

	if rebind {
		slog.Info("Hotkeys changed, rebinding")
		if err := a.bind(ctx, cfg); err != nil {
			slog.Error("Failed to rebind hotkeys", "error", err)
		}
	}

	for _, fn := range callbacks {
		fn(cfg)
	}
}

func (a *Agent) testConnection(ctx context.Context) (string, error) {
	return a.translator.TestConnection(ctx, a.loader.Config().Language.CurrentTarget)
}

// Close releases storage and audio
func (a *Agent) Close() {
	a.notifier.Wait()
	if a.player != nil {
		a.player.Close()
	}
	if err := a.db.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
}

func settingsFrom(cfg *config.Config) orchestrator.Settings {
	return orchestrator.Settings{
		Enabled:         cfg.Hotkey.Enabled,
		Streaming:       cfg.LLM.Streaming,
		TargetLang:      cfg.Language.CurrentTarget,
		RestoreAfterRun: cfg.Clipboard.RestoreAfterRun,
	}
}

func openStore(cfg *config.Config) (*storage.DB, error) {
	dir, err := cfg.DataDir()
	if err != nil {
		return nil, err
	}
	db, err := storage.Open(dir, storage.WithHistoryLimit(cfg.Storage.HistoryLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// newClient builds a translation client from the LLM settings
func newClient(cfg *config.Config) (*translate.OpenAIClient, error) {
	pipeline, err := postprocess.FromNames(cfg.LLM.Cleanup, cfg.LLM.Replacements)
	if err != nil {
		return nil, fmt.Errorf("invalid llm.cleanup: %w", err)
	}

	glossary, err := translate.LoadGlossary(cfg.LLM.GlossaryPath)
	if err != nil {
		return nil, err
	}
	if n := len(glossary.Entries); n > 0 {
		slog.Info("Loaded glossary", "path", cfg.LLM.GlossaryPath, "entries", n)
	}

	return translate.NewOpenAIClient(translate.Config{
		BaseURL:       cfg.LLM.BaseURL,
		APIKey:        cfg.APIKey(),
		Model:         cfg.LLM.Model,
		Temperature:   cfg.LLM.Temperature,
		TopP:          cfg.LLM.TopP,
		SystemPrompt:  cfg.LLM.SystemPrompt,
		UserPrompt:    cfg.LLM.UserPromptTemplate,
		BatchTimeout:  cfg.LLM.BatchTimeout.Duration,
		StreamTimeout: cfg.LLM.StreamTimeout.Duration,
		Glossary:      glossary,
	}, pipeline), nil
}

// liveTranslator swaps its client when the configuration changes. Runs in
// flight keep the client they started with.
type liveTranslator struct {
	client atomic.Pointer[translate.OpenAIClient]
}

func newLiveTranslator(cfg *config.Config) (*liveTranslator, error) {
	t := &liveTranslator{}
	if err := t.Reload(cfg); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *liveTranslator) Reload(cfg *config.Config) error {
	c, err := newClient(cfg)
	if err != nil {
		return err
	}
	t.client.Store(c)
	return nil
}

func (t *liveTranslator) Translate(ctx context.Context, text, targetLang string) (translate.Result, error) {
	return t.client.Load().Translate(ctx, text, targetLang)
}

func (t *liveTranslator) TranslateStream(ctx context.Context, text, targetLang string) (<-chan translate.StreamEvent, error) {
	return t.client.Load().TranslateStream(ctx, text, targetLang)
}

func (t *liveTranslator) TestConnection(ctx context.Context, targetLang string) (string, error) {
	return t.client.Load().TestConnection(ctx, targetLang)
}
