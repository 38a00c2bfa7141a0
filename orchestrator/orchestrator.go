package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"markestedt/aityping/apperr"
	"markestedt/aityping/clipboard"
	"markestedt/aityping/textio"
	"markestedt/aityping/translate"
)

const (
	defaultRestoreDelay = 100 * time.Millisecond
	sourceLangAuto      = "auto"
)

var (
	// ErrBusy is returned when a trigger arrives during another run
	ErrBusy = errors.New("translation already running")

	// ErrDisabled is returned when translation is switched off
	ErrDisabled = errors.New("translation disabled")
)

// Deps are the collaborators of an Orchestrator
type Deps struct {
	Capturer   Capturer
	Injector   Injector
	Clipboard  ClipboardBackup
	Translator translate.Translator
	Recorder   Recorder
	Settings   func() Settings
}

// Orchestrator drives translation runs. At most one run is active; triggers
// arriving meanwhile are dropped.
type Orchestrator struct {
	deps Deps

	run sync.Mutex

	mu        sync.Mutex
	state     State
	observers []Observer

	now          func() time.Time
	sleep        clipboard.SleepFunc
	restoreDelay time.Duration
}

// New creates an Orchestrator
func New(deps Deps) *Orchestrator {
	return &Orchestrator{
		deps:         deps,
		now:          time.Now,
		sleep:        clipboard.Sleep,
		restoreDelay: defaultRestoreDelay,
	}
}

// AddObserver registers o for state and run notifications
func (o *Orchestrator) AddObserver(obs Observer) {
	o.mu.Lock()
	o.observers = append(o.observers, obs)
	o.mu.Unlock()
}

// State returns the current state
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	observers := append([]Observer(nil), o.observers...)
	o.mu.Unlock()

	for _, obs := range observers {
		obs.StateChanged(s)
	}
}

// Trigger runs one translation in mode and blocks until it ends. It returns
// ErrBusy or ErrDisabled without side effects, and (nil, nil) when there was
// nothing to translate. Otherwise the finished run is returned with its error.
func (o *Orchestrator) Trigger(ctx context.Context, mode Mode) (*Run, error) {
	if !o.run.TryLock() {
		slog.Debug("Translation already running, trigger dropped", "mode", mode)
		return nil, ErrBusy
	}
	defer o.run.Unlock()

	settings := o.deps.Settings()
	if !settings.Enabled {
		return nil, ErrDisabled
	}

	run := &Run{Mode: mode, TargetLang: settings.TargetLang, StartedAt: o.now()}
	defer o.setState(Idle)

	o.setState(Capturing)
	if err := o.deps.Clipboard.Backup(ctx); err != nil {
		return o.finish(ctx, run, err)
	}
	defer o.deps.Clipboard.ClearBackup()

	text, err := o.capture(ctx, mode)
	if errors.Is(err, textio.ErrNothingSelected) || (err == nil && strings.TrimSpace(text) == "") {
		slog.Debug("Nothing to translate", "mode", mode)
		return nil, nil
	}
	if err != nil {
		return o.finish(ctx, run, err)
	}

	run.Original = text
	run.CharCount = utf8.RuneCountInString(text)
	slog.Info("Translating", "mode", mode, "chars", run.CharCount, "target", settings.TargetLang, "streaming", settings.Streaming)

	o.setState(Translating)
	if settings.Streaming {
		err = o.stream(ctx, run)
	} else {
		err = o.batch(ctx, run)
	}

	if err == nil && settings.RestoreAfterRun {
		o.restoreAfterRun(ctx)
	}
	return o.finish(ctx, run, err)
}

func (o *Orchestrator) capture(ctx context.Context, mode Mode) (string, error) {
	if mode == ModeFull {
		return o.deps.Capturer.CaptureFull(ctx)
	}
	return o.deps.Capturer.CaptureSelected(ctx)
}

// batch leaves the clipboard as captured when translation fails, since
// nothing has been injected yet.
func (o *Orchestrator) batch(ctx context.Context, run *Run) error {
	res, err := o.deps.Translator.Translate(ctx, run.Original, run.TargetLang)
	if err != nil {
		return err
	}
	run.Translated = res.Text
	run.Tokens = res.CompletionTokens
	run.Duration = res.Duration
	run.TokensPerSecond = res.TokensPerSecond

	o.setState(Injecting)
	if err := o.deps.Injector.Replace(ctx, res.Text); err != nil {
		o.rollback(ctx)
		return err
	}
	return nil
}

// stream deletes the original text once the stream is open and then pastes
// every delta as it arrives. On failure only the clipboard is restored; text
// already typed into the application stays.
func (o *Orchestrator) stream(ctx context.Context, run *Run) error {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := o.deps.Translator.TranslateStream(streamCtx, run.Original, run.TargetLang)
	if err != nil {
		return err
	}

	if err := o.deps.Injector.DeleteSelection(ctx); err != nil {
		o.rollback(ctx)
		return err
	}

	var typed strings.Builder
	defer func() { run.Translated = typed.String() }()

	for ev := range events {
		switch ev.Kind {
		case translate.EventDelta:
			o.setState(Injecting)
			if err := o.deps.Injector.TypeChunk(ctx, ev.Text); err != nil {
				o.rollback(ctx)
				return err
			}
			typed.WriteString(ev.Text)
			o.setState(Translating)

		case translate.EventDone:
			run.Tokens = ev.Tokens
			run.Duration = ev.Duration
			if run.Duration <= 0 {
				run.Duration = o.now().Sub(run.StartedAt)
			}
			run.TokensPerSecond = translate.TokensPerSecond(run.Tokens, run.Duration)
			return nil

		case translate.EventError:
			o.rollback(ctx)
			if ev.Err == nil {
				return apperr.New(apperr.API, "translation stream failed")
			}
			return ev.Err
		}
	}

	o.rollback(ctx)
	return apperr.New(apperr.Network, "translation stream ended unexpectedly")
}

func (o *Orchestrator) rollback(ctx context.Context) {
	o.setState(RollingBack)
	if err := o.deps.Clipboard.Restore(context.WithoutCancel(ctx)); err != nil {
		slog.Warn("Failed to restore clipboard after failed run", "error", err)
	}
}

func (o *Orchestrator) restoreAfterRun(ctx context.Context) {
	// Give the target application time to read the pasted text first.
	if err := o.sleep(ctx, o.restoreDelay); err != nil {
		return
	}
	if err := o.deps.Clipboard.Restore(ctx); err != nil {
		slog.Warn("Failed to restore clipboard", "error", err)
	}
}

// finish records the run exactly once and notifies observers
func (o *Orchestrator) finish(ctx context.Context, run *Run, err error) (*Run, error) {
	run.Err = err
	elapsed := o.now().Sub(run.StartedAt)
	recCtx := context.WithoutCancel(ctx)

	if err != nil {
		slog.Error("Translation failed", "mode", run.Mode, "category", apperr.CategoryOf(err), "error", err)
	} else {
		slog.Info("Translation completed", "mode", run.Mode, "chars", run.CharCount, "duration", elapsed)
	}

	if o.deps.Recorder != nil {
		entry := Entry{
			Original:   run.Original,
			Translated: run.Translated,
			SourceLang: sourceLangAuto,
			TargetLang: run.TargetLang,
			Mode:       run.Mode,
			Success:    err == nil,
			Timestamp:  run.StartedAt,
		}
		if rerr := o.deps.Recorder.RecordTranslation(recCtx, entry); rerr != nil {
			slog.Error("Failed to record translation", "error", rerr)
		}

		metric := Metric{
			Timestamp:       run.StartedAt,
			Mode:            run.Mode,
			Duration:        elapsed,
			Success:         err == nil,
			ErrorCategory:   apperr.CategoryOf(err),
			CharCount:       run.CharCount,
			Tokens:          run.Tokens,
			TokensPerSecond: run.TokensPerSecond,
		}
		if rerr := o.deps.Recorder.RecordMetric(recCtx, metric); rerr != nil {
			slog.Error("Failed to record metric", "error", rerr)
		}
	}

	o.mu.Lock()
	observers := append([]Observer(nil), o.observers...)
	o.mu.Unlock()
	for _, obs := range observers {
		obs.RunFinished(run)
	}

	return run, err
}

// TranslateText translates text without touching the clipboard or the
// focused application, recording it like any other run. It shares the run
// lock with Trigger.
func (o *Orchestrator) TranslateText(ctx context.Context, text string) (*Run, error) {
	if !o.run.TryLock() {
		return nil, ErrBusy
	}
	defer o.run.Unlock()

	settings := o.deps.Settings()
	run := &Run{
		Mode:       ModeManual,
		Original:   text,
		TargetLang: settings.TargetLang,
		CharCount:  utf8.RuneCountInString(text),
		StartedAt:  o.now(),
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	defer o.setState(Idle)
	o.setState(Translating)

	res, err := o.deps.Translator.Translate(ctx, text, settings.TargetLang)
	if err == nil {
		run.Translated = res.Text
		run.Tokens = res.CompletionTokens
		run.Duration = res.Duration
		run.TokensPerSecond = res.TokensPerSecond
	}
	return o.finish(ctx, run, err)
}
