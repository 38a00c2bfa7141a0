//go:build darwin

package platform

import (
	"fmt"
	"os/exec"
	"time"
)

// osascriptAutomation sends shortcuts through System Events
type osascriptAutomation struct{}

func newSystemAutomation() Automation {
	return &osascriptAutomation{}
}

func (a *osascriptAutomation) SelectAll() error {
	return a.run(`tell application "System Events" to keystroke "a" using command down`)
}

func (a *osascriptAutomation) Copy() error {
	return a.run(`tell application "System Events" to keystroke "c" using command down`)
}

func (a *osascriptAutomation) Paste() error {
	return a.run(`tell application "System Events" to keystroke "v" using command down`)
}

func (a *osascriptAutomation) DeleteSelection() error {
	return a.run(`tell application "System Events" to key code 51`)
}

func (a *osascriptAutomation) run(script string) error {
	out, err := exec.Command("osascript", "-e", script).CombinedOutput()
	if err != nil {
		return fmt.Errorf("osascript failed: %w: %s", err, out)
	}
	time.Sleep(keystrokeDelay)
	return nil
}
