//go:build !windows && !darwin && !linux

package platform

import "fmt"

type unsupportedAutomation struct{}

func newSystemAutomation() Automation {
	return unsupportedAutomation{}
}

var errAutomationUnsupported = fmt.Errorf("keystroke simulation is not supported on this OS")

func (unsupportedAutomation) SelectAll() error       { return errAutomationUnsupported }
func (unsupportedAutomation) Copy() error            { return errAutomationUnsupported }
func (unsupportedAutomation) Paste() error           { return errAutomationUnsupported }
func (unsupportedAutomation) DeleteSelection() error { return errAutomationUnsupported }
