package hotkey

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.design/x/hotkey"

	"markestedt/aityping/config"
	"markestedt/aityping/orchestrator"
	"markestedt/aityping/platform"
)

type fakeChord struct {
	mods        []hotkey.Modifier
	key         hotkey.Key
	keydown     chan hotkey.Event
	failReg     bool
	registered  bool
	unregisters int
}

func (c *fakeChord) Register() error {
	if c.failReg {
		return errors.New("already taken")
	}
	c.registered = true
	return nil
}

func (c *fakeChord) Unregister() error {
	c.registered = false
	c.unregisters++
	return nil
}

func (c *fakeChord) Keydown() <-chan hotkey.Event { return c.keydown }

type chordRegistry struct {
	mu     sync.Mutex
	chords []*fakeChord
	fail   bool
}

func (r *chordRegistry) factory(mods []hotkey.Modifier, key hotkey.Key) Chord {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := &fakeChord{mods: mods, key: key, keydown: make(chan hotkey.Event, 1), failReg: r.fail}
	r.chords = append(r.chords, c)
	return c
}

func (r *chordRegistry) active() []*fakeChord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*fakeChord
	for _, c := range r.chords {
		if c.registered {
			out = append(out, c)
		}
	}
	return out
}

// fakeListener forwards events until ctx is done, then waits teardown before
// closing its channel, like a real hook being removed.
type fakeListener struct {
	events   chan platform.KeyEvent
	err      error
	teardown time.Duration

	mu      sync.Mutex
	calls   int
	active  int
	overlap bool
}

func (l *fakeListener) Listen(ctx context.Context) (<-chan platform.KeyEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	if l.active > 0 {
		l.overlap = true
	}
	l.active++

	out := make(chan platform.KeyEvent)
	go func() {
		defer close(out)
		defer func() {
			time.Sleep(l.teardown)
			l.mu.Lock()
			l.active--
			l.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-l.events:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (l *fakeListener) stats() (calls, active int, overlap bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls, l.active, l.overlap
}

func variants() int {
	return len(expandModifiers(nil))
}

func waitTrigger(t *testing.T, b *Binder) Trigger {
	t.Helper()
	select {
	case tr := <-b.Triggers():
		return tr
	case <-time.After(2 * time.Second):
		t.Fatal("no trigger")
		return Trigger{}
	}
}

func TestBindChords(t *testing.T) {
	reg := &chordRegistry{}
	b := NewBinder(nil, WithChordFactory(reg.factory))
	defer b.Close()

	err := b.Bind(context.Background(), []Binding{
		{Mode: orchestrator.ModeSelected, Spec: config.Combination("k", config.ModControl)},
		{Mode: orchestrator.ModeFull, Spec: config.Combination("j", "ctrl", "shift")},
	})
	require.NoError(t, err)

	active := reg.active()
	require.Len(t, active, 2*variants())
	assert.Equal(t, hotkey.KeyK, active[0].key)
	assert.Equal(t, hotkey.KeyJ, active[len(active)-1].key)

	active[len(active)-1].keydown <- hotkey.Event{}
	tr := waitTrigger(t, b)
	assert.Equal(t, orchestrator.ModeFull, tr.Mode)
	assert.Equal(t, "Ctrl + Shift + J", tr.Hotkey)
}

func TestBindSkipsUnsupported(t *testing.T) {
	reg := &chordRegistry{}
	b := NewBinder(nil, WithChordFactory(reg.factory))
	defer b.Close()

	err := b.Bind(context.Background(), []Binding{
		{Mode: orchestrator.ModeSelected, Spec: config.Combination("pagedown", config.ModControl)},
		{Mode: orchestrator.ModeFull, Spec: config.Combination("j", "hyper")},
	})
	require.NoError(t, err)
	assert.Empty(t, reg.chords)
}

func TestBindSkipsRegistrationFailure(t *testing.T) {
	reg := &chordRegistry{fail: true}
	b := NewBinder(nil, WithChordFactory(reg.factory))
	defer b.Close()

	require.NoError(t, b.Bind(context.Background(), []Binding{
		{Mode: orchestrator.ModeSelected, Spec: config.Combination("k", config.ModControl)},
	}))
	assert.Empty(t, reg.active())
}

func TestRebindUnregistersPrevious(t *testing.T) {
	reg := &chordRegistry{}
	b := NewBinder(nil, WithChordFactory(reg.factory))
	defer b.Close()
	ctx := context.Background()

	require.NoError(t, b.Bind(ctx, []Binding{
		{Mode: orchestrator.ModeSelected, Spec: config.Combination("k", config.ModControl)},
	}))
	first := reg.active()

	require.NoError(t, b.Bind(ctx, []Binding{
		{Mode: orchestrator.ModeSelected, Spec: config.Combination("t", config.ModControl)},
	}))

	for _, c := range first {
		assert.False(t, c.registered)
		assert.Equal(t, 1, c.unregisters)
	}
	active := reg.active()
	require.Len(t, active, variants())
	assert.Equal(t, hotkey.KeyT, active[0].key)

	b.UnregisterAll()
	assert.Empty(t, reg.active())
}

func TestBindGesture(t *testing.T) {
	reg := &chordRegistry{}
	listener := &fakeListener{events: make(chan platform.KeyEvent)}
	b := NewBinder(listener, WithChordFactory(reg.factory))
	defer b.Close()

	require.NoError(t, b.Bind(context.Background(), []Binding{
		{Mode: orchestrator.ModeSelected, Spec: config.Combination("k", config.ModControl)},
		{Mode: orchestrator.ModeFull, Spec: config.Consecutive(" ", 3, 300*time.Millisecond)},
	}))
	calls, _, _ := listener.stats()
	assert.Equal(t, 1, calls)
	assert.Len(t, reg.active(), variants())

	start := time.Now()
	for i, key := range []string{"space", "space", "x", "space", "space", "space"} {
		listener.events <- platform.KeyEvent{Key: key, At: start.Add(time.Duration(i) * 100 * time.Millisecond)}
	}

	tr := waitTrigger(t, b)
	assert.Equal(t, orchestrator.ModeFull, tr.Mode)
	assert.Equal(t, "SPACE × 3", tr.Hotkey)
}

func TestRebindWaitsForListenerTeardown(t *testing.T) {
	listener := &fakeListener{events: make(chan platform.KeyEvent), teardown: 30 * time.Millisecond}
	b := NewBinder(listener, WithChordFactory((&chordRegistry{}).factory))
	defer b.Close()
	ctx := context.Background()
	bindings := []Binding{
		{Mode: orchestrator.ModeFull, Spec: config.Consecutive(" ", 3, 300*time.Millisecond)},
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Bind(ctx, bindings))
	}
	calls, active, overlap := listener.stats()
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, active)
	assert.False(t, overlap, "listener started before the previous one was torn down")

	start := time.Now()
	for i := 0; i < 3; i++ {
		listener.events <- platform.KeyEvent{Key: " ", At: start.Add(time.Duration(i) * 100 * time.Millisecond)}
	}
	assert.Equal(t, orchestrator.ModeFull, waitTrigger(t, b).Mode)

	b.UnregisterAll()
	_, active, _ = listener.stats()
	assert.Equal(t, 0, active)
}

func TestBindGestureListenerFailure(t *testing.T) {
	listener := &fakeListener{err: errors.New("no permission")}
	b := NewBinder(listener, WithChordFactory((&chordRegistry{}).factory))
	defer b.Close()

	err := b.Bind(context.Background(), []Binding{
		{Mode: orchestrator.ModeFull, Spec: config.Consecutive(" ", 3, 300*time.Millisecond)},
	})
	assert.ErrorContains(t, err, "no permission")

	b = NewBinder(nil)
	err = b.Bind(context.Background(), []Binding{
		{Mode: orchestrator.ModeFull, Spec: config.Consecutive(" ", 3, 300*time.Millisecond)},
	})
	assert.Error(t, err)
}

func TestPendingTriggerDropsExtra(t *testing.T) {
	reg := &chordRegistry{}
	b := NewBinder(nil, WithChordFactory(reg.factory))
	defer b.Close()

	b.emit(Trigger{Mode: orchestrator.ModeSelected})
	b.emit(Trigger{Mode: orchestrator.ModeFull})

	assert.Equal(t, orchestrator.ModeSelected, waitTrigger(t, b).Mode)
	select {
	case tr := <-b.Triggers():
		t.Fatalf("unexpected trigger %v", tr)
	default:
	}
}
