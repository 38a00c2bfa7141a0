//go:build linux

package platform

import (
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// toolAutomation shells out to xdotool on X11, falling back to wtype on Wayland
type toolAutomation struct{}

func newSystemAutomation() Automation {
	return &toolAutomation{}
}

func (a *toolAutomation) SelectAll() error {
	return a.send("ctrl+a", []string{"-M", "ctrl", "-P", "a", "-m", "ctrl"})
}

func (a *toolAutomation) Copy() error {
	return a.send("ctrl+c", []string{"-M", "ctrl", "-P", "c", "-m", "ctrl"})
}

func (a *toolAutomation) Paste() error {
	return a.send("ctrl+v", []string{"-M", "ctrl", "-P", "v", "-m", "ctrl"})
}

func (a *toolAutomation) DeleteSelection() error {
	return a.send("BackSpace", []string{"-k", "BackSpace"})
}

func (a *toolAutomation) send(xdoKey string, wtypeArgs []string) error {
	var errs []error

	if _, err := exec.LookPath("xdotool"); err == nil {
		err := exec.Command("xdotool", "key", "--clearmodifiers", xdoKey).Run()
		if err == nil {
			time.Sleep(keystrokeDelay)
			return nil
		}
		errs = append(errs, fmt.Errorf("xdotool: %w", err))
	}

	if _, err := exec.LookPath("wtype"); err == nil {
		err := exec.Command("wtype", wtypeArgs...).Run()
		if err == nil {
			time.Sleep(keystrokeDelay)
			return nil
		}
		errs = append(errs, fmt.Errorf("wtype: %w", err))
	}

	if len(errs) == 0 {
		return fmt.Errorf("no keystroke tool found, install xdotool or wtype")
	}
	return errors.Join(errs...)
}
