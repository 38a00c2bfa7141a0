package textio

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"markestedt/aityping/clipboard"
	"markestedt/aityping/platform"
)

const (
	defaultSettleDelay  = 100 * time.Millisecond
	defaultWaitAttempts = 3

	// sentinel is written before copying so a landed copy is observable
	sentinel = ""
)

// Capturer reads the selected or full text of the focused application
type Capturer struct {
	ex           *clipboard.Exchange
	auto         platform.Automation
	sleep        clipboard.SleepFunc
	settle       time.Duration
	waitAttempts int
}

// CapturerOption configures a Capturer
type CapturerOption func(*Capturer)

// WithSettleDelay sets the pause between select-all and copy
func WithSettleDelay(d time.Duration) CapturerOption {
	return func(c *Capturer) { c.settle = d }
}

// WithWaitAttempts sets how many times the clipboard is polled after copy
func WithWaitAttempts(n int) CapturerOption {
	return func(c *Capturer) {
		if n > 0 {
			c.waitAttempts = n
		}
	}
}

// WithCaptureSleep replaces the settle wait, mainly for tests
func WithCaptureSleep(fn clipboard.SleepFunc) CapturerOption {
	return func(c *Capturer) { c.sleep = fn }
}

// NewCapturer creates a Capturer
func NewCapturer(ex *clipboard.Exchange, auto platform.Automation, opts ...CapturerOption) *Capturer {
	c := &Capturer{
		ex:           ex,
		auto:         auto,
		sleep:        clipboard.Sleep,
		settle:       defaultSettleDelay,
		waitAttempts: defaultWaitAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CaptureSelected copies the current selection. On failure the clipboard is
// left as it was before the call.
func (c *Capturer) CaptureSelected(ctx context.Context) (string, error) {
	return c.capture(ctx, false)
}

// CaptureFull selects the whole field and copies it. On failure the clipboard
// is left as it was before the call.
func (c *Capturer) CaptureFull(ctx context.Context) (string, error) {
	return c.capture(ctx, true)
}

func (c *Capturer) capture(ctx context.Context, selectAll bool) (string, error) {
	var text string

	err := c.ex.WithBackupRestore(ctx, func(ctx context.Context) error {
		if selectAll {
			if err := c.auto.SelectAll(); err != nil {
				return permissionError("select all", err)
			}
			if err := c.sleep(ctx, c.settle); err != nil {
				return err
			}
		}

		if err := c.ex.Write(ctx, sentinel); err != nil {
			return err
		}
		if err := c.auto.Copy(); err != nil {
			return permissionError("copy", err)
		}

		got, err := c.ex.WaitForChange(ctx, sentinel, c.waitAttempts)
		if err != nil {
			return err
		}
		if got == sentinel {
			return ErrCopyFailed
		}
		if strings.TrimSpace(got) == "" {
			return ErrNothingSelected
		}
		text = got
		return nil
	})
	if err != nil {
		return "", err
	}

	slog.Debug("Captured text", "chars", len([]rune(text)), "full", selectAll)
	return text, nil
}
