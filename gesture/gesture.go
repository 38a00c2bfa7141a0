// Package gesture recognizes repeated-keypress gestures such as three
// spaces typed in quick succession.
package gesture

import (
	"context"
	"strings"
	"sync"
	"time"
)

// KeyEvent is a single key press observed by a raw listener
type KeyEvent struct {
	Key string
	At  time.Time
}

// State is the detector's progress towards a trigger
type State struct {
	LastKey  string
	Count    int
	LastTime time.Time
}

// Detector fires when Count presses of Key arrive with every gap at most Interval
type Detector struct {
	key      string
	count    int
	interval time.Duration

	mu    sync.Mutex
	state State
}

// NewDetector creates a detector for count presses of key
func NewDetector(key string, count int, interval time.Duration) *Detector {
	return &Detector{
		key:      normalize(key),
		count:    count,
		interval: interval,
	}
}

// Feed records a key press and reports whether it completed the gesture
func (d *Detector) Feed(key string, at time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	key = normalize(key)
	if key != d.key {
		d.state = State{LastTime: at}
		return false
	}

	// Gaps are measured against the previous press, not the first one.
	if d.state.LastKey == key && at.Sub(d.state.LastTime) <= d.interval {
		d.state.Count++
	} else {
		d.state.Count = 1
	}
	d.state.LastKey = key
	d.state.LastTime = at

	if d.state.Count >= d.count {
		d.state = State{LastTime: at}
		return true
	}
	return false
}

// Reset clears any partial progress
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = State{LastTime: time.Now()}
}

// State returns a snapshot of the current progress
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Run feeds events into the detector until ctx is done or events is closed,
// sending on out each time the gesture completes. A full out drops the trigger.
func (d *Detector) Run(ctx context.Context, events <-chan KeyEvent, out chan<- struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !d.Feed(ev.Key, ev.At) {
				continue
			}
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}
}

func normalize(key string) string {
	switch strings.ToLower(key) {
	case "space", "spacebar":
		return " "
	case "enter", "return":
		return "\n"
	case "tab":
		return "\t"
	}
	return strings.ToLower(key)
}
