package platform

import (
	"context"
	"fmt"
	"time"
)

// Clipboard provides raw access to the system clipboard
type Clipboard interface {
	Get() (string, error)
	Set(text string) error
}

// Automation simulates the editing shortcuts of the focused application
type Automation interface {
	SelectAll() error
	Copy() error
	Paste() error
	DeleteSelection() error
}

// KeyEvent is a key press observed by a KeyListener
type KeyEvent struct {
	Key string
	At  time.Time
}

// KeyListener streams every key press system-wide until ctx is done. The
// channel is closed only once the hook is fully removed, so a caller that
// drains it to the end may start a new listener straight away.
type KeyListener interface {
	Listen(ctx context.Context) (<-chan KeyEvent, error)
}

// Backend names accepted by the constructors below
const (
	BackendDefault = "default"
	BackendAtotto  = "atotto"
	BackendNative  = "native"
	BackendSystem  = "system"
	BackendRobotgo = "robotgo"
	BackendGohook  = "gohook"
)

// keystrokeDelay lets the target application process a simulated shortcut
const keystrokeDelay = 50 * time.Millisecond

// NewClipboard creates a clipboard for the named backend
func NewClipboard(backend string) (Clipboard, error) {
	switch backend {
	case "", BackendDefault, BackendAtotto:
		return NewAtottoClipboard(), nil
	case BackendNative:
		return NewNativeClipboard()
	case BackendSystem:
		c, ok := newSystemClipboard()
		if !ok {
			return nil, fmt.Errorf("system clipboard backend is not available on this platform")
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown clipboard backend: %s", backend)
	}
}

// NewAutomation creates a keystroke simulator for the named backend
func NewAutomation(backend string) (Automation, error) {
	switch backend {
	case "", BackendDefault, BackendSystem:
		return newSystemAutomation(), nil
	case BackendRobotgo:
		return NewRobotgoAutomation(), nil
	default:
		return nil, fmt.Errorf("unknown automation backend: %s", backend)
	}
}

// NewKeyListener creates a raw key listener for the named backend
func NewKeyListener(backend string) (KeyListener, error) {
	switch backend {
	case "", BackendDefault, BackendGohook:
		return NewGohookListener(), nil
	case BackendSystem:
		l, ok := newSystemKeyListener()
		if !ok {
			return nil, fmt.Errorf("system key listener is not available on this platform")
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unknown key listener backend: %s", backend)
	}
}
