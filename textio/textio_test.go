package textio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markestedt/aityping/apperr"
	"markestedt/aityping/clipboard"
	"markestedt/aityping/platform/platformtest"
)

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func setup(field, selection string) (*platformtest.Clipboard, *platformtest.Automation, *Capturer, *Injector) {
	cb := platformtest.NewClipboard("user data")
	auto := platformtest.NewAutomation(cb, field, selection)
	ex := clipboard.New(cb, clipboard.WithSleep(noSleep))
	return cb, auto, NewCapturer(ex, auto, WithCaptureSleep(noSleep)), NewInjector(ex, auto)
}

func TestCaptureSelected(t *testing.T) {
	cb, auto, capt, _ := setup("say hello world", "hello")

	text, err := capt.CaptureSelected(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, "hello", cb.Text())
	assert.Equal(t, []string{"Copy"}, auto.Calls())
	assert.Equal(t, []string{"", "hello"}, cb.Writes())
}

func TestCaptureSelectedIdempotent(t *testing.T) {
	_, _, capt, _ := setup("say hello world", "hello")

	first, err := capt.CaptureSelected(context.Background())
	require.NoError(t, err)
	second, err := capt.CaptureSelected(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCaptureFull(t *testing.T) {
	_, auto, capt, _ := setup("whole field", "")

	text, err := capt.CaptureFull(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "whole field", text)
	assert.Equal(t, []string{"SelectAll", "Copy"}, auto.Calls())
}

func TestCaptureFailuresRestoreClipboard(t *testing.T) {
	tests := []struct {
		name      string
		selection string
		prepare   func(a *platformtest.Automation)
		wantErr   error
		wantKind  apperr.Kind
	}{
		{
			name:      "copy never lands",
			selection: "hello",
			prepare:   func(a *platformtest.Automation) { a.CopyNoop = true },
			wantErr:   ErrCopyFailed,
			wantKind:  apperr.Clipboard,
		},
		{
			name:      "nothing selected",
			selection: "",
			wantErr:   ErrCopyFailed,
			wantKind:  apperr.Clipboard,
		},
		{
			name:      "whitespace only",
			selection: "   ",
			wantErr:   ErrNothingSelected,
			wantKind:  apperr.Clipboard,
		},
		{
			name:      "copy denied",
			selection: "hello",
			prepare:   func(a *platformtest.Automation) { a.Fail("Copy") },
			wantKind:  apperr.Permission,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, auto, capt, _ := setup("say hello   world", tt.selection)
			if tt.prepare != nil {
				tt.prepare(auto)
			}

			_, err := capt.CaptureSelected(context.Background())
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))
			assert.Equal(t, "user data", cb.Text())
		})
	}
}

func TestCaptureFullSelectAllDenied(t *testing.T) {
	cb, auto, capt, _ := setup("field", "")
	auto.Fail("SelectAll")

	_, err := capt.CaptureFull(context.Background())
	assert.Equal(t, apperr.Permission, apperr.KindOf(err))
	assert.Equal(t, "user data", cb.Text())
	assert.NotContains(t, auto.Calls(), "Copy")
}

func TestInjectorReplace(t *testing.T) {
	_, auto, _, inj := setup("say hello world", "hello")

	require.NoError(t, inj.Replace(context.Background(), "hola"))
	assert.Equal(t, "say hola world", auto.Field())
}

func TestInjectorStreamsInOrder(t *testing.T) {
	_, auto, _, inj := setup("say hello world", "hello")
	ctx := context.Background()

	require.NoError(t, inj.DeleteSelection(ctx))
	for _, chunk := range []string{"ho", "", "la"} {
		require.NoError(t, inj.TypeChunk(ctx, chunk))
	}

	assert.Equal(t, []string{"ho", "la"}, auto.Pastes())
	assert.Equal(t, "say hola world", auto.Field())
}

func TestInjectorPermissionErrors(t *testing.T) {
	_, auto, _, inj := setup("x", "x")
	auto.Fail("Paste")
	auto.Fail("DeleteSelection")

	err := inj.Replace(context.Background(), "y")
	assert.Equal(t, apperr.Permission, apperr.KindOf(err))
	assert.Contains(t, apperr.Message(err), "accessibility")

	err = inj.DeleteSelection(context.Background())
	assert.Equal(t, apperr.Permission, apperr.KindOf(err))
}
