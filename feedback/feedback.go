// Package feedback tells the user how a translation run ended: a sound cue,
// a desktop notification on failure and a one-time dialog when the OS
// denies input simulation.
package feedback

import (
	"log/slog"
	"runtime"
	"sync"

	"github.com/gen2brain/beeep"
	"github.com/ncruces/zenity"

	"markestedt/aityping/apperr"
	"markestedt/aityping/audio"
	"markestedt/aityping/config"
	"markestedt/aityping/orchestrator"
)

const appTitle = "aityping"

// Player plays result cues
type Player interface {
	Play(cue audio.Cue) error
}

// Notifier observes the orchestrator and reports finished runs
type Notifier struct {
	settings func() config.FeedbackConfig
	player   Player

	notify func(title, message string) error
	alert  func(title, message string) error

	// Cues play off the orchestrator goroutine
	wg             sync.WaitGroup
	permissionOnce sync.Once
}

// Option configures a Notifier
type Option func(*Notifier)

// WithNotify replaces the desktop notification backend
func WithNotify(fn func(title, message string) error) Option {
	return func(n *Notifier) { n.notify = fn }
}

// WithAlert replaces the modal dialog backend
func WithAlert(fn func(title, message string) error) Option {
	return func(n *Notifier) { n.alert = fn }
}

// New creates a notifier. player may be nil when no audio device is
// available.
func New(settings func() config.FeedbackConfig, player Player, opts ...Option) *Notifier {
	n := &Notifier{
		settings: settings,
		player:   player,
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
		alert: func(title, message string) error {
			return zenity.Warning(message, zenity.Title(title), zenity.WarningIcon)
		},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Notifier) StateChanged(orchestrator.State) {}

func (n *Notifier) RunFinished(r *orchestrator.Run) {
	settings := n.settings()

	if settings.Sound && n.player != nil {
		cue := audio.CueSuccess
		if !r.Success() {
			cue = audio.CueFailure
		}
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			if err := n.player.Play(cue); err != nil {
				slog.Debug("Failed to play cue", "error", err)
			}
		}()
	}

	if r.Success() {
		return
	}

	if apperr.KindOf(r.Err) == apperr.Permission {
		n.permissionOnce.Do(func() {
			if err := n.alert(appTitle, permissionHelp()); err != nil {
				slog.Warn("Failed to show permission dialog", "error", err)
			}
		})
		return
	}

	if settings.Notifications {
		if err := n.notify(appTitle+": translation failed", apperr.Message(r.Err)); err != nil {
			slog.Warn("Failed to show notification", "error", err)
		}
	}
}

// Wait blocks until pending cues have played
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func permissionHelp() string {
	switch runtime.GOOS {
	case "darwin":
		return "aityping cannot simulate copy and paste.\n\nGrant access in System Settings → Privacy & Security → Accessibility, then restart aityping."
	case "linux":
		return "aityping cannot simulate copy and paste.\n\nMake sure an X11 session is running and xdotool is installed, or run under XWayland."
	default:
		return "aityping cannot simulate copy and paste. Check that it is allowed to control the keyboard."
	}
}
