package platform

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	gohook "github.com/robotn/gohook"
)

// GohookListener streams key presses from libuiohook. Only one hook can be
// active per process.
type GohookListener struct{}

// gohookIdle is closed once the last hook's End has returned. gohook keeps
// its event channel in a package variable, so a Start that overlaps the
// previous End would have its channel closed underneath it.
var (
	gohookMu   sync.Mutex
	gohookIdle = func() chan struct{} {
		ch := make(chan struct{})
		close(ch)
		return ch
	}()
)

// NewGohookListener creates the cross-platform raw key listener
func NewGohookListener() *GohookListener {
	return &GohookListener{}
}

// Listen starts the hook once any previous one has been torn down. The
// returned channel is closed after ctx is done and the hook has ended.
func (l *GohookListener) Listen(ctx context.Context) (<-chan KeyEvent, error) {
	gohookMu.Lock()
	defer gohookMu.Unlock()

	select {
	case <-gohookIdle:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	evChan := gohook.Start()
	if evChan == nil {
		return nil, fmt.Errorf("failed to start keyboard hook")
	}
	idle := make(chan struct{})
	gohookIdle = idle

	out := make(chan KeyEvent, 16)
	go func() {
		defer close(idle)
		defer close(out)
		defer gohook.End()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-evChan:
				if !ok {
					return
				}
				if ev.Kind != gohook.KeyDown {
					continue
				}
				key := gohookKeyName(ev)
				if key == "" {
					continue
				}
				at := ev.When
				if at.IsZero() {
					at = time.Now()
				}
				select {
				case out <- KeyEvent{Key: key, At: at}:
				default:
				}
			}
		}
	}()

	return out, nil
}

func gohookKeyName(ev gohook.Event) string {
	if ev.Keychar != 0 && unicode.IsPrint(ev.Keychar) {
		return strings.ToLower(string(ev.Keychar))
	}
	return strings.ToLower(gohook.RawcodetoKeychar(ev.Rawcode))
}
