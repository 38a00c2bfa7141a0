package platform

import (
	"fmt"
	"runtime"
	"time"

	"github.com/go-vgo/robotgo"
)

// RobotgoAutomation synthesizes shortcuts with robotgo
type RobotgoAutomation struct {
	modifier string
}

// NewRobotgoAutomation uses cmd on macOS and ctrl elsewhere
func NewRobotgoAutomation() *RobotgoAutomation {
	mod := "ctrl"
	if runtime.GOOS == "darwin" {
		mod = "cmd"
	}
	return &RobotgoAutomation{modifier: mod}
}

func (a *RobotgoAutomation) SelectAll() error {
	return a.tap("a", a.modifier)
}

func (a *RobotgoAutomation) Copy() error {
	return a.tap("c", a.modifier)
}

func (a *RobotgoAutomation) Paste() error {
	return a.tap("v", a.modifier)
}

func (a *RobotgoAutomation) DeleteSelection() error {
	return a.tap("backspace")
}

func (a *RobotgoAutomation) tap(key string, mods ...string) error {
	args := make([]interface{}, len(mods))
	for i, m := range mods {
		args[i] = m
	}
	if err := robotgo.KeyTap(key, args...); err != nil {
		return fmt.Errorf("robotgo key tap %q failed: %w", key, err)
	}
	time.Sleep(keystrokeDelay)
	return nil
}
