package clipboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markestedt/aityping/apperr"
	"markestedt/aityping/platform/platformtest"
)

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
	hook  func(n int)
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	n := len(s.waits)
	hook := s.hook
	s.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return ctx.Err()
}

func newExchange(cb *platformtest.Clipboard) (*Exchange, *sleepRecorder) {
	rec := &sleepRecorder{}
	return New(cb, WithSleep(rec.sleep)), rec
}

func TestReadRetries(t *testing.T) {
	cb := platformtest.NewClipboard("hello")
	cb.FailGets(2)
	ex, rec := newExchange(cb)

	text, err := ex.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, []time.Duration{50 * time.Millisecond, 50 * time.Millisecond}, rec.waits)
}

func TestReadGivesUpAfterThreeAttempts(t *testing.T) {
	cb := platformtest.NewClipboard("hello")
	cb.FailGets(3)
	ex, _ := newExchange(cb)

	_, err := ex.Read(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.Clipboard, apperr.KindOf(err))
	assert.True(t, errors.Is(err, platformtest.ErrInjected))
	assert.Equal(t, 3, cb.Gets())
}

func TestWriteRetries(t *testing.T) {
	cb := platformtest.NewClipboard("")
	cb.FailSets(1)
	ex, _ := newExchange(cb)

	require.NoError(t, ex.Write(context.Background(), "x"))
	assert.Equal(t, "x", cb.Text())

	cb.FailSets(3)
	err := ex.Write(context.Background(), "y")
	assert.Equal(t, apperr.Clipboard, apperr.KindOf(err))
	assert.Equal(t, "x", cb.Text())
}

func TestWithBackupRestoreRestoresOnFailure(t *testing.T) {
	cb := platformtest.NewClipboard("user data")
	ex, _ := newExchange(cb)
	opErr := errors.New("op failed")

	err := ex.WithBackupRestore(context.Background(), func(ctx context.Context) error {
		require.NoError(t, ex.Write(ctx, ""))
		return opErr
	})

	assert.ErrorIs(t, err, opErr)
	assert.Equal(t, "user data", cb.Text())
}

func TestWithBackupRestoreSuccessLeavesClipboard(t *testing.T) {
	cb := platformtest.NewClipboard("user data")
	ex, _ := newExchange(cb)

	err := ex.WithBackupRestore(context.Background(), func(ctx context.Context) error {
		return ex.Write(ctx, "captured")
	})
	require.NoError(t, err)
	assert.Equal(t, "captured", cb.Text())
	assert.False(t, ex.HasBackup())
}

func TestRunBackupSurvivesNestedSnapshot(t *testing.T) {
	cb := platformtest.NewClipboard("user data")
	ex, _ := newExchange(cb)
	ctx := context.Background()

	require.NoError(t, ex.Backup(ctx))
	require.NoError(t, ex.WithBackupRestore(ctx, func(ctx context.Context) error {
		return ex.Write(ctx, "captured")
	}))
	require.NoError(t, ex.Write(ctx, "translated"))

	require.NoError(t, ex.Restore(ctx))
	assert.Equal(t, "user data", cb.Text())
	assert.False(t, ex.HasBackup())
}

func TestWithBackupRestoreRestoreFailureKeepsOriginalError(t *testing.T) {
	cb := platformtest.NewClipboard("user data")
	ex, _ := newExchange(cb)
	opErr := errors.New("op failed")

	err := ex.WithBackupRestore(context.Background(), func(ctx context.Context) error {
		cb.FailSets(3)
		return opErr
	})
	assert.ErrorIs(t, err, opErr)
}

func TestRestoreWithoutBackupIsNoop(t *testing.T) {
	cb := platformtest.NewClipboard("a")
	ex, _ := newExchange(cb)

	require.NoError(t, ex.Restore(context.Background()))
	assert.Empty(t, cb.Writes())

	require.NoError(t, ex.Backup(context.Background()))
	ex.ClearBackup()
	require.NoError(t, ex.Restore(context.Background()))
	assert.Empty(t, cb.Writes())
}

func TestBackupUnreadableClipboard(t *testing.T) {
	cb := platformtest.NewClipboard("user data")
	ex, _ := newExchange(cb)
	ctx := context.Background()

	require.NoError(t, ex.Backup(ctx))
	require.True(t, ex.HasBackup())

	cb.FailGets(3)
	require.NoError(t, ex.Backup(ctx))
	assert.False(t, ex.HasBackup())

	require.NoError(t, ex.Write(ctx, "translated"))
	require.NoError(t, ex.Restore(ctx))
	assert.Equal(t, "translated", cb.Text())
}

func TestBackupCancelled(t *testing.T) {
	cb := platformtest.NewClipboard("user data")
	ex, _ := newExchange(cb)
	cb.FailGets(3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, ex.Backup(ctx), context.Canceled)
	assert.False(t, ex.HasBackup())
}

func TestWithBackupRestoreUnreadableClipboard(t *testing.T) {
	tests := []struct {
		name  string
		opErr error
	}{
		{name: "op succeeds"},
		{name: "op fails", opErr: errors.New("op failed")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := platformtest.NewClipboard("user data")
			ex, _ := newExchange(cb)
			cb.FailGets(3)

			ran := false
			err := ex.WithBackupRestore(context.Background(), func(ctx context.Context) error {
				ran = true
				require.NoError(t, ex.Write(ctx, "captured"))
				return tt.opErr
			})

			assert.True(t, ran)
			if tt.opErr != nil {
				assert.ErrorIs(t, err, tt.opErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, []string{"captured"}, cb.Writes())
		})
	}
}

func TestWaitForChange(t *testing.T) {
	cb := platformtest.NewClipboard("")
	ex, rec := newExchange(cb)
	rec.hook = func(n int) {
		if n == 3 {
			cb.Set("selected")
		}
	}

	text, err := ex.WaitForChange(context.Background(), "", 5)
	require.NoError(t, err)
	assert.Equal(t, "selected", text)
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		150 * time.Millisecond,
		200 * time.Millisecond,
	}, rec.waits)
}

func TestWaitForChangeReturnsLastValue(t *testing.T) {
	cb := platformtest.NewClipboard("same")
	ex, rec := newExchange(cb)

	text, err := ex.WaitForChange(context.Background(), "same", 3)
	require.NoError(t, err)
	assert.Equal(t, "same", text)
	assert.Len(t, rec.waits, 3)
}

func TestWaitForChangeCancelled(t *testing.T) {
	cb := platformtest.NewClipboard("")
	ex := New(cb)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ex.WaitForChange(ctx, "", 5)
	assert.ErrorIs(t, err, context.Canceled)
}
