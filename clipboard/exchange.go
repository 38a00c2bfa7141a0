// Package clipboard is the single point of access to the system clipboard.
// Reads and writes are retried, and multi-step operations can keep a backup
// of the user's clipboard to restore when they fail.
package clipboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"markestedt/aityping/apperr"
	"markestedt/aityping/platform"
)

const (
	defaultAttempts = 3
	defaultBackoff  = 50 * time.Millisecond

	waitBase = 100 * time.Millisecond
	waitStep = 50 * time.Millisecond
)

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Exchange wraps a platform clipboard with retries and backup/restore
type Exchange struct {
	cb       platform.Clipboard
	attempts int
	backoff  time.Duration
	sleep    SleepFunc

	// io serializes individual reads and writes
	io sync.Mutex

	// seq serializes backup/op/restore sequences
	seq sync.Mutex

	mu     sync.Mutex
	backup *string
}

// Option configures an Exchange
type Option func(*Exchange)

// WithRetry overrides the attempt count and fixed backoff of Read and Write
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(e *Exchange) {
		if attempts > 0 {
			e.attempts = attempts
		}
		e.backoff = backoff
	}
}

// WithSleep replaces the wait function, mainly for tests
func WithSleep(fn SleepFunc) Option {
	return func(e *Exchange) {
		e.sleep = fn
	}
}

// New creates an Exchange over cb
func New(cb platform.Clipboard, opts ...Option) *Exchange {
	e := &Exchange{
		cb:       cb,
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
		sleep:    Sleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Read returns the clipboard text, retrying transient failures
func (e *Exchange) Read(ctx context.Context) (string, error) {
	var lastErr error
	for i := 0; i < e.attempts; i++ {
		if i > 0 {
			if err := e.sleep(ctx, e.backoff); err != nil {
				return "", err
			}
		}
		e.io.Lock()
		text, err := e.cb.Get()
		e.io.Unlock()
		if err == nil {
			return text, nil
		}
		lastErr = err
		slog.Debug("Clipboard read failed", "attempt", i+1, "error", err)
	}
	return "", apperr.Wrap(apperr.Clipboard, "failed to read clipboard", lastErr)
}

// Write replaces the clipboard text, retrying transient failures
func (e *Exchange) Write(ctx context.Context, text string) error {
	var lastErr error
	for i := 0; i < e.attempts; i++ {
		if i > 0 {
			if err := e.sleep(ctx, e.backoff); err != nil {
				return err
			}
		}
		e.io.Lock()
		err := e.cb.Set(text)
		e.io.Unlock()
		if err == nil {
			return nil
		}
		lastErr = err
		slog.Debug("Clipboard write failed", "attempt", i+1, "error", err)
	}
	return apperr.Wrap(apperr.Clipboard, "failed to write clipboard", lastErr)
}

// Backup stores the current clipboard text in the run-level slot, replacing
// any earlier backup. An unreadable clipboard leaves the slot empty so the
// run continues without a restore; only cancellation is returned.
func (e *Exchange) Backup(ctx context.Context) error {
	text, err := e.Read(ctx)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		slog.Debug("Clipboard unreadable, continuing without backup", "error", err)
		e.ClearBackup()
		return nil
	}
	e.mu.Lock()
	e.backup = &text
	e.mu.Unlock()
	return nil
}

// HasBackup reports whether a backup is outstanding
func (e *Exchange) HasBackup() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.backup != nil
}

// ClearBackup drops the outstanding backup without touching the clipboard
func (e *Exchange) ClearBackup() {
	e.mu.Lock()
	e.backup = nil
	e.mu.Unlock()
}

// Restore writes the backup back and clears it. Without a backup it does nothing.
func (e *Exchange) Restore(ctx context.Context) error {
	e.mu.Lock()
	b := e.backup
	e.backup = nil
	e.mu.Unlock()

	if b == nil {
		return nil
	}
	return e.Write(ctx, *b)
}

// WithBackupRestore snapshots the clipboard, runs op, and writes the snapshot
// back if op fails. A failed restore is logged and op's error returned. If the
// clipboard cannot be read op still runs, with nothing to restore. The
// snapshot is independent of the run-level backup slot. op must not call
// WithBackupRestore itself.
func (e *Exchange) WithBackupRestore(ctx context.Context, op func(ctx context.Context) error) error {
	e.seq.Lock()
	defer e.seq.Unlock()

	snapshot, err := e.Read(ctx)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		slog.Debug("Clipboard unreadable, running without snapshot", "error", err)
		return op(ctx)
	}

	if err := op(ctx); err != nil {
		// The run context may already be cancelled; restore on a detached one.
		if rerr := e.Write(context.WithoutCancel(ctx), snapshot); rerr != nil {
			slog.Warn("Failed to restore clipboard", "error", rerr)
		}
		return err
	}
	return nil
}

// WaitForChange polls until the clipboard differs from excluded, waiting
// 100ms + 50ms*attempt before each read. After maxAttempts it returns the last
// value read, which may still equal excluded.
func (e *Exchange) WaitForChange(ctx context.Context, excluded string, maxAttempts int) (string, error) {
	last := excluded
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := e.sleep(ctx, waitBase+time.Duration(attempt)*waitStep); err != nil {
			return last, err
		}
		text, err := e.Read(ctx)
		if err != nil {
			return last, err
		}
		last = text
		if text != excluded {
			return text, nil
		}
	}
	return last, nil
}
