package systray

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markestedt/aityping/config"
)

type memStore struct {
	cfg     *config.Config
	updates int
	err     error
}

func (s *memStore) Config() *config.Config { return s.cfg }

func (s *memStore) Update(cfg *config.Config) error {
	if s.err != nil {
		return s.err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.cfg = cfg
	s.updates++
	return nil
}

func TestToggleEnabled(t *testing.T) {
	store := &memStore{cfg: config.Default()}
	m := NewSystrayManager(store, "")

	m.toggleEnabled()
	assert.False(t, store.cfg.Hotkey.Enabled)
	m.toggleEnabled()
	assert.True(t, store.cfg.Hotkey.Enabled)
	assert.Equal(t, 2, store.updates)
}

func TestToggleEnabledUpdateFails(t *testing.T) {
	original := config.Default()
	store := &memStore{cfg: original, err: errors.New("disk full")}
	m := NewSystrayManager(store, "")

	m.toggleEnabled()
	assert.Same(t, original, store.cfg)
	assert.True(t, original.Hotkey.Enabled)
}

func TestSelectLanguage(t *testing.T) {
	store := &memStore{cfg: config.Default()}
	m := NewSystrayManager(store, "")

	m.selectLanguage("ja-JP")
	assert.Equal(t, "ja-JP", store.cfg.Language.CurrentTarget)

	m.selectLanguage("")
	assert.Equal(t, "ja-JP", store.cfg.Language.CurrentTarget)
	assert.Equal(t, 1, store.updates)
}

func TestRefreshBeforeReady(t *testing.T) {
	m := NewSystrayManager(&memStore{cfg: config.Default()}, "")
	require.NotPanics(t, func() { m.Refresh(config.Default()) })
}

func TestIconEmbedded(t *testing.T) {
	require.NotEmpty(t, iconData)
	assert.Equal(t, "\x89PNG", string(iconData[:4]))
}
