package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markestedt/aityping/apperr"
	"markestedt/aityping/clipboard"
	"markestedt/aityping/platform/platformtest"
	"markestedt/aityping/textio"
	"markestedt/aityping/translate"
)

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

type fakeTranslator struct {
	mu      sync.Mutex
	result  translate.Result
	err     error
	events  []translate.StreamEvent
	openErr error
	block   chan struct{}
	started chan struct{}
	texts   []string
}

func (f *fakeTranslator) Translate(ctx context.Context, text, targetLang string) (translate.Result, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
	return f.result, f.err
}

func (f *fakeTranslator) TranslateStream(ctx context.Context, text, targetLang string) (<-chan translate.StreamEvent, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	ch := make(chan translate.StreamEvent, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []Entry
	metrics []Metric
}

func (r *fakeRecorder) RecordTranslation(ctx context.Context, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *fakeRecorder) RecordMetric(ctx context.Context, m Metric) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, m)
	return nil
}

type stateLog struct {
	mu     sync.Mutex
	states []State
	runs   []*Run
}

func (s *stateLog) StateChanged(st State) {
	s.mu.Lock()
	s.states = append(s.states, st)
	s.mu.Unlock()
}

func (s *stateLog) RunFinished(r *Run) {
	s.mu.Lock()
	s.runs = append(s.runs, r)
	s.mu.Unlock()
}

type harness struct {
	cb       *platformtest.Clipboard
	auto     *platformtest.Automation
	tr       *fakeTranslator
	rec      *fakeRecorder
	log      *stateLog
	settings Settings
	o        *Orchestrator
}

func newHarness(field, selection string) *harness {
	h := &harness{
		cb:       platformtest.NewClipboard("user data"),
		tr:       &fakeTranslator{},
		rec:      &fakeRecorder{},
		log:      &stateLog{},
		settings: Settings{Enabled: true, TargetLang: "es"},
	}
	h.auto = platformtest.NewAutomation(h.cb, field, selection)
	ex := clipboard.New(h.cb, clipboard.WithSleep(noSleep))

	h.o = New(Deps{
		Capturer:   textio.NewCapturer(ex, h.auto, textio.WithCaptureSleep(noSleep)),
		Injector:   textio.NewInjector(ex, h.auto),
		Clipboard:  ex,
		Translator: h.tr,
		Recorder:   h.rec,
		Settings:   func() Settings { return h.settings },
	})
	h.o.sleep = noSleep
	h.o.AddObserver(h.log)
	return h
}

func (h *harness) assertRecordedOnce(t *testing.T, success bool) {
	t.Helper()
	require.Len(t, h.rec.entries, 1)
	require.Len(t, h.rec.metrics, 1)
	assert.Equal(t, success, h.rec.entries[0].Success)
	assert.Equal(t, success, h.rec.metrics[0].Success)
	assert.Equal(t, "auto", h.rec.entries[0].SourceLang)
	require.Len(t, h.log.runs, 1)
}

func intPtr(n int) *int { return &n }

func TestTriggerBatchSuccess(t *testing.T) {
	h := newHarness("say hello world", "hello")
	h.tr.result = translate.Result{Text: "hola", CompletionTokens: intPtr(92), Duration: 1200 * time.Millisecond}
	h.tr.result.TokensPerSecond = translate.TokensPerSecond(h.tr.result.CompletionTokens, h.tr.result.Duration)

	run, err := h.o.Trigger(context.Background(), ModeSelected)
	require.NoError(t, err)

	assert.Equal(t, "hello", run.Original)
	assert.Equal(t, "hola", run.Translated)
	assert.Equal(t, 5, run.CharCount)
	assert.Equal(t, "say hola world", h.auto.Field())
	assert.Equal(t, "hola", h.cb.Text())
	require.NotNil(t, run.TokensPerSecond)
	assert.InDelta(t, 76.67, *run.TokensPerSecond, 0.01)

	h.assertRecordedOnce(t, true)
	assert.Equal(t, ModeSelected, h.rec.entries[0].Mode)
	assert.Equal(t, "es", h.rec.entries[0].TargetLang)
	assert.Equal(t, apperr.Category(""), h.rec.metrics[0].ErrorCategory)
	assert.Equal(t, []State{Capturing, Translating, Injecting, Idle}, h.log.states)
	assert.Equal(t, Idle, h.o.State())
}

func TestTriggerRestoresClipboardAfterRun(t *testing.T) {
	h := newHarness("say hello world", "hello")
	h.settings.RestoreAfterRun = true
	h.tr.result = translate.Result{Text: "hola"}

	_, err := h.o.Trigger(context.Background(), ModeSelected)
	require.NoError(t, err)
	assert.Equal(t, "say hola world", h.auto.Field())
	assert.Equal(t, "user data", h.cb.Text())
}

func TestTriggerFullMode(t *testing.T) {
	h := newHarness("whole field", "")
	h.tr.result = translate.Result{Text: "campo entero"}

	run, err := h.o.Trigger(context.Background(), ModeFull)
	require.NoError(t, err)
	assert.Equal(t, "whole field", run.Original)
	assert.Equal(t, "campo entero", h.auto.Field())
	assert.Equal(t, ModeFull, h.rec.metrics[0].Mode)
}

func TestTriggerTranslationFailureLeavesCapturedClipboard(t *testing.T) {
	h := newHarness("say hello world", "hello")
	h.tr.err = apperr.New(apperr.API, "rate limited: slow down")

	run, err := h.o.Trigger(context.Background(), ModeSelected)
	require.Error(t, err)
	assert.Equal(t, err, run.Err)

	assert.Equal(t, "say hello world", h.auto.Field())
	assert.Equal(t, "hello", h.cb.Text())
	assert.NotContains(t, h.auto.Calls(), "Paste")

	h.assertRecordedOnce(t, false)
	assert.Equal(t, apperr.CategoryAPI, h.rec.metrics[0].ErrorCategory)
	assert.Equal(t, "hello", h.rec.entries[0].Original)
}

func TestTriggerInjectionFailureRollsBack(t *testing.T) {
	h := newHarness("say hello world", "hello")
	h.tr.result = translate.Result{Text: "hola"}
	h.auto.Fail("Paste")

	_, err := h.o.Trigger(context.Background(), ModeSelected)
	assert.Equal(t, apperr.Permission, apperr.KindOf(err))
	assert.Equal(t, "user data", h.cb.Text())
	assert.Contains(t, h.log.states, RollingBack)

	h.assertRecordedOnce(t, false)
	assert.Equal(t, apperr.CategoryPermission, h.rec.metrics[0].ErrorCategory)
}

func TestTriggerCaptureFailures(t *testing.T) {
	tests := []struct {
		name      string
		selection string
		prepare   func(h *harness)
		recorded  bool
		wantCat   apperr.Category
	}{
		{
			name:      "nothing selected is skipped",
			selection: "   ",
		},
		{
			name:      "copy failed",
			selection: "",
			recorded:  true,
			wantCat:   apperr.CategoryClipboard,
		},
		{
			name:      "copy denied",
			selection: "hello",
			prepare:   func(h *harness) { h.auto.Fail("Copy") },
			recorded:  true,
			wantCat:   apperr.CategoryPermission,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness("say hello world", tt.selection)
			if tt.prepare != nil {
				tt.prepare(h)
			}

			run, err := h.o.Trigger(context.Background(), ModeSelected)
			assert.Empty(t, h.tr.texts)
			assert.Equal(t, "user data", h.cb.Text())
			assert.Equal(t, Idle, h.o.State())

			if !tt.recorded {
				assert.NoError(t, err)
				assert.Nil(t, run)
				assert.Empty(t, h.rec.entries)
				assert.Empty(t, h.rec.metrics)
				return
			}
			require.Error(t, err)
			h.assertRecordedOnce(t, false)
			assert.Equal(t, tt.wantCat, h.rec.metrics[0].ErrorCategory)
		})
	}
}

func TestTriggerUnreadableClipboard(t *testing.T) {
	t.Run("unreadable at start continues without restore", func(t *testing.T) {
		h := newHarness("say hello world", "hello")
		h.settings.RestoreAfterRun = true
		h.tr.result = translate.Result{Text: "hola"}
		h.cb.FailGets(3)

		run, err := h.o.Trigger(context.Background(), ModeSelected)
		require.NoError(t, err)
		require.NotNil(t, run)
		assert.Equal(t, "say hola world", h.auto.Field())
		assert.Equal(t, []string{"hello"}, h.tr.texts)
		assert.Equal(t, "hola", h.cb.Text())
		assert.Equal(t, Idle, h.o.State())
		h.assertRecordedOnce(t, true)
	})

	t.Run("unreadable throughout fails capture", func(t *testing.T) {
		h := newHarness("say hello world", "hello")
		h.cb.FailGets(9)

		_, err := h.o.Trigger(context.Background(), ModeSelected)
		require.Error(t, err)
		assert.Empty(t, h.tr.texts)
		assert.Equal(t, "say hello world", h.auto.Field())
		h.assertRecordedOnce(t, false)
		assert.Equal(t, apperr.CategoryClipboard, h.rec.metrics[0].ErrorCategory)
	})
}

func TestTriggerStreaming(t *testing.T) {
	h := newHarness("say hello world", "hello")
	h.settings.Streaming = true
	h.tr.events = []translate.StreamEvent{
		{Kind: translate.EventDelta, Text: "d1"},
		{Kind: translate.EventDelta, Text: "d2"},
		{Kind: translate.EventDelta, Text: "d3"},
		{Kind: translate.EventDone, Tokens: intPtr(92), Duration: 1200 * time.Millisecond},
		{Kind: translate.EventDelta, Text: "late"},
	}

	run, err := h.o.Trigger(context.Background(), ModeSelected)
	require.NoError(t, err)

	assert.Equal(t, []string{"d1", "d2", "d3"}, h.auto.Pastes())
	assert.Equal(t, "say d1d2d3 world", h.auto.Field())
	assert.Equal(t, "d1d2d3", run.Translated)
	require.NotNil(t, run.Tokens)
	assert.Equal(t, 92, *run.Tokens)
	require.NotNil(t, run.TokensPerSecond)
	assert.InDelta(t, 76.67, *run.TokensPerSecond, 0.01)

	calls := h.auto.Calls()
	assert.Equal(t, []string{"Copy", "DeleteSelection", "Paste", "Paste", "Paste"}, calls)
	h.assertRecordedOnce(t, true)
}

func TestTriggerStreamingFailures(t *testing.T) {
	tests := []struct {
		name       string
		events     []translate.StreamEvent
		openErr    error
		wantKind   apperr.Kind
		wantPastes []string
		wantField  string
	}{
		{
			name: "error mid stream",
			events: []translate.StreamEvent{
				{Kind: translate.EventDelta, Text: "d1"},
				{Kind: translate.EventError, Err: apperr.New(apperr.API, "malformed stream chunk")},
				{Kind: translate.EventDelta, Text: "d2"},
			},
			wantKind:   apperr.API,
			wantPastes: []string{"d1"},
			wantField:  "say d1 world",
		},
		{
			name: "closed without done",
			events: []translate.StreamEvent{
				{Kind: translate.EventDelta, Text: "d1"},
			},
			wantKind:   apperr.Network,
			wantPastes: []string{"d1"},
			wantField:  "say d1 world",
		},
		{
			name:      "stream never opens",
			openErr:   apperr.New(apperr.API, "authentication failed: bad key"),
			wantKind:  apperr.API,
			wantField: "say hello world",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness("say hello world", "hello")
			h.settings.Streaming = true
			h.tr.events = tt.events
			h.tr.openErr = tt.openErr

			_, err := h.o.Trigger(context.Background(), ModeSelected)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))
			assert.Equal(t, tt.wantPastes, h.auto.Pastes())
			assert.Equal(t, tt.wantField, h.auto.Field())
			if tt.openErr == nil {
				assert.Equal(t, "user data", h.cb.Text())
				assert.Contains(t, h.log.states, RollingBack)
			}
			h.assertRecordedOnce(t, false)
		})
	}
}

func TestTriggerDisabled(t *testing.T) {
	h := newHarness("say hello world", "hello")
	h.settings.Enabled = false

	run, err := h.o.Trigger(context.Background(), ModeSelected)
	assert.ErrorIs(t, err, ErrDisabled)
	assert.Nil(t, run)
	assert.Empty(t, h.auto.Calls())
	assert.Empty(t, h.rec.entries)
}

func TestTriggerDropsWhileBusy(t *testing.T) {
	h := newHarness("say hello world", "hello")
	h.tr.result = translate.Result{Text: "hola"}
	h.tr.block = make(chan struct{})
	h.tr.started = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := h.o.Trigger(context.Background(), ModeSelected)
		done <- err
	}()
	<-h.tr.started

	_, err := h.o.Trigger(context.Background(), ModeFull)
	assert.ErrorIs(t, err, ErrBusy)
	_, err = h.o.TranslateText(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrBusy)

	close(h.tr.block)
	require.NoError(t, <-done)

	assert.Len(t, h.tr.texts, 1)
	h.assertRecordedOnce(t, true)
}

func TestTranslateText(t *testing.T) {
	h := newHarness("field", "")
	h.tr.result = translate.Result{Text: "campo"}

	run, err := h.o.TranslateText(context.Background(), "field")
	require.NoError(t, err)
	assert.Equal(t, "campo", run.Translated)
	assert.Empty(t, h.auto.Calls())
	assert.Equal(t, "user data", h.cb.Text())
	h.assertRecordedOnce(t, true)
	assert.Equal(t, ModeManual, h.rec.entries[0].Mode)

	run, err = h.o.TranslateText(context.Background(), "  ")
	assert.NoError(t, err)
	assert.Nil(t, run)
}

func TestTranslateTextFailureRecorded(t *testing.T) {
	h := newHarness("field", "")
	h.tr.err = apperr.Wrap(apperr.Network, "translation request failed", errors.New("dial tcp"))

	_, err := h.o.TranslateText(context.Background(), "field")
	require.Error(t, err)
	h.assertRecordedOnce(t, false)
	assert.Equal(t, apperr.CategoryNetwork, h.rec.metrics[0].ErrorCategory)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "capturing", Capturing.String())
	assert.Equal(t, "translating", Translating.String())
	assert.Equal(t, "injecting", Injecting.String())
	assert.Equal(t, "rolling_back", RollingBack.String())
}
