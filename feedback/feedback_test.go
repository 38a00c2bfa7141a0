package feedback

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"markestedt/aityping/apperr"
	"markestedt/aityping/audio"
	"markestedt/aityping/config"
	"markestedt/aityping/orchestrator"
)

type fakePlayer struct {
	mu   sync.Mutex
	cues []audio.Cue
}

func (p *fakePlayer) Play(cue audio.Cue) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cues = append(p.cues, cue)
	return nil
}

type recorded struct {
	notifications []string
	alerts        []string
}

func newNotifier(settings config.FeedbackConfig, player Player) (*Notifier, *recorded) {
	rec := &recorded{}
	n := New(func() config.FeedbackConfig { return settings }, player,
		WithNotify(func(title, message string) error {
			rec.notifications = append(rec.notifications, message)
			return nil
		}),
		WithAlert(func(title, message string) error {
			rec.alerts = append(rec.alerts, message)
			return nil
		}),
	)
	return n, rec
}

func TestRunFinished(t *testing.T) {
	tests := []struct {
		name          string
		settings      config.FeedbackConfig
		err           error
		cues          []audio.Cue
		notifications []string
	}{
		{
			name:     "success",
			settings: config.FeedbackConfig{Notifications: true, Sound: true},
			cues:     []audio.Cue{audio.CueSuccess},
		},
		{
			name:          "failure",
			settings:      config.FeedbackConfig{Notifications: true, Sound: true},
			err:           apperr.New(apperr.Network, "connection refused"),
			cues:          []audio.Cue{audio.CueFailure},
			notifications: []string{"connection refused"},
		},
		{
			name:     "muted",
			settings: config.FeedbackConfig{},
			err:      apperr.New(apperr.API, "rate limited"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			player := &fakePlayer{}
			n, rec := newNotifier(tt.settings, player)

			n.RunFinished(&orchestrator.Run{Mode: orchestrator.ModeSelected, Err: tt.err})
			n.Wait()

			assert.Equal(t, tt.cues, player.cues)
			assert.Equal(t, tt.notifications, rec.notifications)
			assert.Empty(t, rec.alerts)
		})
	}
}

func TestPermissionAlertOnce(t *testing.T) {
	n, rec := newNotifier(config.FeedbackConfig{Notifications: true}, nil)
	run := &orchestrator.Run{Err: apperr.New(apperr.Permission, "copy denied")}

	n.RunFinished(run)
	n.RunFinished(run)

	assert.Len(t, rec.alerts, 1)
	assert.Contains(t, rec.alerts[0], "simulate copy and paste")
	assert.Empty(t, rec.notifications)
}
