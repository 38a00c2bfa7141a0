// Package platformtest provides in-memory clipboard and automation fakes.
package platformtest

import (
	"errors"
	"strings"
	"sync"
)

// ErrInjected is returned by fakes configured to fail
var ErrInjected = errors.New("injected failure")

// Clipboard is an in-memory platform.Clipboard
type Clipboard struct {
	mu       sync.Mutex
	text     string
	getFails int
	setFails int
	writes   []string
	gets     int
}

// NewClipboard creates a fake holding text
func NewClipboard(text string) *Clipboard {
	return &Clipboard{text: text}
}

// FailGets makes the next n Get calls fail
func (c *Clipboard) FailGets(n int) {
	c.mu.Lock()
	c.getFails = n
	c.mu.Unlock()
}

// FailSets makes the next n Set calls fail
func (c *Clipboard) FailSets(n int) {
	c.mu.Lock()
	c.setFails = n
	c.mu.Unlock()
}

func (c *Clipboard) Get() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getFails > 0 {
		c.getFails--
		return "", ErrInjected
	}
	return c.text, nil
}

func (c *Clipboard) Set(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setFails > 0 {
		c.setFails--
		return ErrInjected
	}
	c.text = text
	c.writes = append(c.writes, text)
	return nil
}

// Text returns the current content without counting as a read
func (c *Clipboard) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// Writes returns every successful Set in order
func (c *Clipboard) Writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.writes...)
}

// Gets returns the number of Get calls, failed ones included
func (c *Clipboard) Gets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gets
}

// Automation simulates a focused text field wired to a fake clipboard.
// Copy puts the selection on the clipboard, Paste replaces the selection
// with the clipboard, SelectAll selects the whole field. With nothing
// selected, Paste inserts at the caret, which starts at the end of the
// field and follows the last edit.
type Automation struct {
	mu        sync.Mutex
	clip      *Clipboard
	field     string
	selection string
	caret     int
	fail      map[string]bool
	calls     []string
	pastes    []string

	// CopyNoop makes Copy leave the clipboard untouched, as when the
	// target application ignores the shortcut.
	CopyNoop bool
}

// NewAutomation creates a field containing field, with selection selected
func NewAutomation(clip *Clipboard, field, selection string) *Automation {
	return &Automation{clip: clip, field: field, selection: selection, caret: len(field), fail: map[string]bool{}}
}

// Fail makes the named operation ("SelectAll", "Copy", "Paste", "DeleteSelection") fail
func (a *Automation) Fail(op string) {
	a.mu.Lock()
	a.fail[op] = true
	a.mu.Unlock()
}

func (a *Automation) record(op string) error {
	a.calls = append(a.calls, op)
	if a.fail[op] {
		return ErrInjected
	}
	return nil
}

func (a *Automation) SelectAll() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.record("SelectAll"); err != nil {
		return err
	}
	a.selection = a.field
	return nil
}

func (a *Automation) Copy() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.record("Copy"); err != nil {
		return err
	}
	if a.CopyNoop || a.selection == "" {
		return nil
	}
	return a.clip.Set(a.selection)
}

func (a *Automation) Paste() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.record("Paste"); err != nil {
		return err
	}
	text := a.clip.Text()
	a.pastes = append(a.pastes, text)
	a.replaceSelection(text)
	return nil
}

func (a *Automation) DeleteSelection() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.record("DeleteSelection"); err != nil {
		return err
	}
	a.replaceSelection("")
	return nil
}

func (a *Automation) replaceSelection(text string) {
	if a.selection == "" {
		a.field = a.field[:a.caret] + text + a.field[a.caret:]
		a.caret += len(text)
		return
	}
	if i := strings.Index(a.field, a.selection); i >= 0 {
		a.field = a.field[:i] + text + a.field[i+len(a.selection):]
		a.caret = i + len(text)
	}
	a.selection = ""
}

// Field returns the current content of the simulated text field
func (a *Automation) Field() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.field
}

// Calls returns the operations invoked so far
func (a *Automation) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

// Pastes returns the clipboard content at each Paste
func (a *Automation) Pastes() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.pastes...)
}
