// Package systray shows the tray icon: pause or resume translation, pick
// the target language, open the dashboard and quit.
package systray

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"sync"

	"github.com/getlantern/systray"

	"markestedt/aityping/config"
)

//go:embed icon.png
var iconData []byte

// ConfigStore owns the current configuration
type ConfigStore interface {
	Config() *config.Config
	Update(cfg *config.Config) error
}

// SystrayManager manages the system tray icon and menu
type SystrayManager struct {
	store        ConfigStore
	dashboardURL string
	quit         chan struct{}
	quitOnce     sync.Once

	mu        sync.Mutex
	mEnabled  *systray.MenuItem
	languages map[string]*systray.MenuItem
}

// NewSystrayManager creates a tray manager. dashboardURL may be empty when
// the web dashboard is disabled.
func NewSystrayManager(store ConfigStore, dashboardURL string) *SystrayManager {
	return &SystrayManager{
		store:        store,
		dashboardURL: dashboardURL,
		quit:         make(chan struct{}),
		languages:    make(map[string]*systray.MenuItem),
	}
}

// Run starts the system tray (blocking call, must run on the main thread)
func (m *SystrayManager) Run() {
	systray.Run(m.onReady, m.onExit)
}

// Stop stops the system tray
func (m *SystrayManager) Stop() {
	systray.Quit()
}

// WaitForQuit returns a channel that will be closed when user clicks Quit
func (m *SystrayManager) WaitForQuit() <-chan struct{} {
	return m.quit
}

func (m *SystrayManager) onReady() {
	cfg := m.store.Config()

	systray.SetIcon(iconData)
	systray.SetTooltip("aityping - translate in place")

	m.mu.Lock()
	m.mEnabled = systray.AddMenuItemCheckbox("Enabled", "Pause or resume translation hotkeys", cfg.Hotkey.Enabled)

	mLanguage := systray.AddMenuItem("Target language", "Language translations are written in")
	for _, lang := range cfg.Language.Favorites {
		item := mLanguage.AddSubMenuItemCheckbox(lang.Name, lang.Code, lang.Code == cfg.Language.CurrentTarget)
		m.languages[lang.Code] = item
		go func(code string) {
			for range item.ClickedCh {
				m.selectLanguage(code)
			}
		}(lang.Code)
	}
	m.mu.Unlock()

	// nil without a dashboard, so never selected
	var dashboardClicked <-chan struct{}
	if m.dashboardURL != "" {
		systray.AddSeparator()
		dashboardClicked = systray.AddMenuItem("Open Dashboard", "Open the history and statistics page").ClickedCh
	}
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Exit aityping")

	m.Refresh(cfg)

	go func() {
		for {
			select {
			case <-m.mEnabled.ClickedCh:
				m.toggleEnabled()
			case <-dashboardClicked:
				m.openDashboard()
			case <-mQuit.ClickedCh:
				slog.Info("User requested quit from system tray")
				m.quitOnce.Do(func() { close(m.quit) })
				systray.Quit()
				return
			}
		}
	}()
}

func (m *SystrayManager) onExit() {
	slog.Info("System tray exited")
	m.quitOnce.Do(func() { close(m.quit) })
}

// Refresh mirrors cfg in the menu
func (m *SystrayManager) Refresh(cfg *config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mEnabled == nil {
		return
	}

	title := "aityping"
	if cfg.Hotkey.Enabled {
		m.mEnabled.Check()
	} else {
		m.mEnabled.Uncheck()
		title += " (paused)"
	}
	systray.SetTitle(title)

	for code, item := range m.languages {
		if code == cfg.Language.CurrentTarget {
			item.Check()
		} else {
			item.Uncheck()
		}
	}
}

func (m *SystrayManager) toggleEnabled() {
	cfg := m.store.Config().Clone()
	cfg.Hotkey.Enabled = !cfg.Hotkey.Enabled
	if err := m.store.Update(cfg); err != nil {
		slog.Error("Failed to toggle translation", "error", err)
		return
	}
	slog.Info("Translation toggled from tray", "enabled", cfg.Hotkey.Enabled)
}

func (m *SystrayManager) selectLanguage(code string) {
	cfg := m.store.Config().Clone()
	if err := cfg.SwitchLanguage(code); err != nil {
		slog.Error("Failed to switch language", "error", err)
		return
	}
	if err := m.store.Update(cfg); err != nil {
		slog.Error("Failed to switch language", "error", err)
		return
	}
	slog.Info("Target language switched from tray", "language", code)
}

// openDashboard opens the web UI in the default browser
func (m *SystrayManager) openDashboard() {
	slog.Info("Opening dashboard", "url", m.dashboardURL)

	if err := openBrowser(m.dashboardURL); err != nil {
		slog.Error("Failed to open dashboard", "error", err)
	}
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	default:
		return fmt.Errorf("unsupported platform for opening browser: %s", runtime.GOOS)
	}
	return cmd.Start()
}
