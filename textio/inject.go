package textio

import (
	"context"

	"markestedt/aityping/clipboard"
	"markestedt/aityping/platform"
)

// Injector writes text into the focused application
type Injector struct {
	ex   *clipboard.Exchange
	auto platform.Automation
}

// NewInjector creates an Injector
func NewInjector(ex *clipboard.Exchange, auto platform.Automation) *Injector {
	return &Injector{ex: ex, auto: auto}
}

// Replace pastes text over the current selection
func (i *Injector) Replace(ctx context.Context, text string) error {
	return i.paste(ctx, text)
}

// DeleteSelection removes the current selection
func (i *Injector) DeleteSelection(ctx context.Context) error {
	if err := i.auto.DeleteSelection(); err != nil {
		return permissionError("delete", err)
	}
	return nil
}

// TypeChunk pastes one streamed fragment at the cursor
func (i *Injector) TypeChunk(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	return i.paste(ctx, text)
}

func (i *Injector) paste(ctx context.Context, text string) error {
	if err := i.ex.Write(ctx, text); err != nil {
		return err
	}
	if err := i.auto.Paste(); err != nil {
		return permissionError("paste", err)
	}
	return nil
}
