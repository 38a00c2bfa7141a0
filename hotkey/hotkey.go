// Package hotkey turns configured hotkeys into translation triggers. Chords
// are registered as OS global shortcuts; repeated-press gestures are
// recognized from a raw key stream.
package hotkey

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.design/x/hotkey"

	"markestedt/aityping/config"
	"markestedt/aityping/gesture"
	"markestedt/aityping/orchestrator"
	"markestedt/aityping/platform"
)

// Trigger asks for a translation run in Mode
type Trigger struct {
	Mode   orchestrator.Mode
	Hotkey string
}

// Binding attaches a hotkey to a mode
type Binding struct {
	Mode orchestrator.Mode
	Spec config.HotkeySpec
}

// Chord is a registrable global shortcut
type Chord interface {
	Register() error
	Unregister() error
	Keydown() <-chan hotkey.Event
}

// ChordFactory creates unregistered chords
type ChordFactory func(mods []hotkey.Modifier, key hotkey.Key) Chord

func newSystemChord(mods []hotkey.Modifier, key hotkey.Key) Chord {
	return hotkey.New(mods, key)
}

// Binder owns the registered chords and the gesture listener
type Binder struct {
	listener platform.KeyListener
	newChord ChordFactory
	out      chan Trigger

	// mu serializes Bind and UnregisterAll
	mu     sync.Mutex
	chords []Chord
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Binder
type Option func(*Binder)

// WithChordFactory replaces the OS global shortcut backend
func WithChordFactory(f ChordFactory) Option {
	return func(b *Binder) { b.newChord = f }
}

// NewBinder creates a binder. listener feeds consecutive-press gestures and
// may be nil when none are configured.
func NewBinder(listener platform.KeyListener, opts ...Option) *Binder {
	b := &Binder{
		listener: listener,
		newChord: newSystemChord,
		out:      make(chan Trigger, 1),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Triggers returns the channel every binding reports on
func (b *Binder) Triggers() <-chan Trigger {
	return b.out
}

// Bind replaces all current bindings. Chords that cannot be parsed or
// registered are skipped with a warning. It fails only when a gesture is
// configured and the raw key listener cannot start.
func (b *Binder) Bind(ctx context.Context, bindings []Binding) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.unregisterAll()

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	var gestures []Binding
	for _, bind := range bindings {
		if !bind.Spec.IsCombination() {
			gestures = append(gestures, bind)
			continue
		}
		b.bindChord(ctx, bind)
	}

	if len(gestures) == 0 {
		return nil
	}
	return b.bindGestures(ctx, gestures)
}

func (b *Binder) bindChord(ctx context.Context, bind Binding) {
	label := bind.Spec.Format()

	mods, key, err := parseChord(bind.Spec)
	if err != nil {
		slog.Warn("Skipping hotkey", "hotkey", label, "mode", bind.Mode, "error", err)
		return
	}

	registered := 0
	for _, variant := range expandModifiers(mods) {
		c := b.newChord(variant, key)
		if err := c.Register(); err != nil {
			slog.Warn("Failed to register hotkey", "hotkey", label, "mode", bind.Mode, "error", err)
			continue
		}
		b.chords = append(b.chords, c)
		registered++

		b.wg.Add(1)
		go func(c Chord) {
			defer b.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case _, ok := <-c.Keydown():
					if !ok {
						return
					}
					slog.Debug("Hotkey pressed", "hotkey", label, "mode", bind.Mode)
					b.emit(Trigger{Mode: bind.Mode, Hotkey: label})
				}
			}
		}(c)
	}

	if registered > 0 {
		slog.Info("Registered hotkey", "hotkey", label, "mode", bind.Mode)
	}
}

func (b *Binder) bindGestures(ctx context.Context, gestures []Binding) error {
	if b.listener == nil {
		return fmt.Errorf("no key listener available for consecutive hotkeys")
	}

	events, err := b.listener.Listen(ctx)
	if err != nil {
		return fmt.Errorf("failed to start key listener: %w", err)
	}

	inputs := make([]chan gesture.KeyEvent, len(gestures))
	for i, bind := range gestures {
		in := make(chan gesture.KeyEvent, 16)
		fired := make(chan struct{}, 1)
		inputs[i] = in

		det := gesture.NewDetector(bind.Spec.Key, bind.Spec.Count, bind.Spec.Interval.Duration)
		label := bind.Spec.Format()

		b.wg.Add(2)
		go func() {
			defer b.wg.Done()
			det.Run(ctx, in, fired)
		}()
		go func(mode orchestrator.Mode) {
			defer b.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-fired:
					slog.Debug("Gesture completed", "hotkey", label, "mode", mode)
					b.emit(Trigger{Mode: mode, Hotkey: label})
				}
			}
		}(bind.Mode)

		slog.Info("Listening for gesture", "hotkey", label, "mode", bind.Mode)
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		// Drain until the listener closes so unregisterAll waits out the
		// hook teardown before a rebind starts another one.
		defer func() {
			for range events {
			}
		}()
		defer func() {
			for _, in := range inputs {
				close(in)
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				for _, in := range inputs {
					select {
					case in <- gesture.KeyEvent{Key: ev.Key, At: ev.At}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return nil
}

// emit drops the trigger when one is already pending
func (b *Binder) emit(t Trigger) {
	select {
	case b.out <- t:
	default:
		slog.Debug("Trigger dropped, previous one still pending", "mode", t.Mode)
	}
}

// UnregisterAll removes every chord and stops the gesture listener
func (b *Binder) UnregisterAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unregisterAll()
}

func (b *Binder) unregisterAll() {
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	for _, c := range b.chords {
		if err := c.Unregister(); err != nil {
			slog.Warn("Failed to unregister hotkey", "error", err)
		}
	}
	b.chords = nil
	b.wg.Wait()
}

// Close releases all bindings
func (b *Binder) Close() {
	b.UnregisterAll()
}

// parseChord converts a combination into modifiers and a key for this OS
func parseChord(spec config.HotkeySpec) ([]hotkey.Modifier, hotkey.Key, error) {
	key, ok := keyMap[strings.ToLower(spec.Key)]
	if !ok {
		return nil, 0, fmt.Errorf("unsupported key: %q", spec.Key)
	}

	mods := make([]hotkey.Modifier, 0, len(spec.Modifiers))
	for _, name := range spec.Modifiers {
		canon, ok := config.CanonicalModifier(name)
		if !ok {
			return nil, 0, fmt.Errorf("unsupported modifier: %s", name)
		}
		mod, ok := modifierFor(canon)
		if !ok {
			return nil, 0, fmt.Errorf("modifier %s is not supported on this OS", name)
		}
		mods = append(mods, mod)
	}

	return mods, key, nil
}
