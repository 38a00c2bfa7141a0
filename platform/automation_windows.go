//go:build windows

package platform

import (
	"fmt"
	"time"
	"unsafe"
)

var (
	sendInput      = user32.NewProc("SendInput")
	mapVirtualKeyW = user32.NewProc("MapVirtualKeyW")
)

const (
	inputKeyboard  = 1
	keyeventfKeyup = 0x0002
	mapvkVkToVsc   = 0

	vkBack    = 0x08
	vkControl = 0x11
	vkA       = 0x41
	vkC       = 0x43
	vkV       = 0x56
)

type keyboardInput struct {
	wVk         uint16
	wScan       uint16
	dwFlags     uint32
	time        uint32
	dwExtraInfo uintptr
}

type input struct {
	inputType uint32
	ki        keyboardInput
	padding   [8]byte
}

// sendInputAutomation drives the focused window with SendInput scan codes
type sendInputAutomation struct{}

func newSystemAutomation() Automation {
	return &sendInputAutomation{}
}

func (a *sendInputAutomation) SelectAll() error {
	return a.chord(vkControl, vkA)
}

func (a *sendInputAutomation) Copy() error {
	return a.chord(vkControl, vkC)
}

func (a *sendInputAutomation) Paste() error {
	return a.chord(vkControl, vkV)
}

func (a *sendInputAutomation) DeleteSelection() error {
	return a.chord(vkBack)
}

// chord presses keys in order and releases them in reverse, as one SendInput batch
func (a *sendInputAutomation) chord(keys ...uint16) error {
	inputs := make([]input, 0, len(keys)*2)
	for _, vk := range keys {
		inputs = append(inputs, keyInput(vk, 0))
	}
	for i := len(keys) - 1; i >= 0; i-- {
		inputs = append(inputs, keyInput(keys[i], keyeventfKeyup))
	}

	ret, _, err := sendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)
	if int(ret) != len(inputs) {
		return fmt.Errorf("SendInput failed: %w", err)
	}

	time.Sleep(keystrokeDelay)
	return nil
}

func keyInput(vk uint16, flags uint32) input {
	scan, _, _ := mapVirtualKeyW.Call(uintptr(vk), mapvkVkToVsc)
	return input{
		inputType: inputKeyboard,
		ki: keyboardInput{
			wVk:     vk,
			wScan:   uint16(scan),
			dwFlags: flags,
		},
	}
}
