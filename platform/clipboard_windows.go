//go:build windows

package platform

import (
	"errors"
	"fmt"
	"runtime"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32           = windows.NewLazySystemDLL("user32.dll")
	kernel32         = windows.NewLazySystemDLL("kernel32.dll")
	openClipboard    = user32.NewProc("OpenClipboard")
	closeClipboard   = user32.NewProc("CloseClipboard")
	emptyClipboard   = user32.NewProc("EmptyClipboard")
	getClipboardData = user32.NewProc("GetClipboardData")
	setClipboardData = user32.NewProc("SetClipboardData")
	globalAlloc      = kernel32.NewProc("GlobalAlloc")
	globalFree       = kernel32.NewProc("GlobalFree")
	globalLock       = kernel32.NewProc("GlobalLock")
	globalUnlock     = kernel32.NewProc("GlobalUnlock")
)

const (
	cfUnicodeText = 13
	gmemMoveable  = 0x0002

	openAttempts = 10
	openBackoff  = 10 * time.Millisecond
)

var errClipboardBusy = errors.New("clipboard is held by another process")

// user32Clipboard reads and writes CF_UNICODETEXT through user32 directly
type user32Clipboard struct{}

func newSystemClipboard() (Clipboard, bool) {
	return &user32Clipboard{}, true
}

// Get retrieves text from the clipboard. An empty clipboard yields "".
func (c *user32Clipboard) Get() (string, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := c.open(); err != nil {
		return "", err
	}
	defer closeClipboard.Call()

	h, _, err := getClipboardData.Call(cfUnicodeText)
	if h == 0 {
		if err != nil && err != syscall.Errno(0) {
			return "", fmt.Errorf("GetClipboardData failed: %w", err)
		}
		return "", nil
	}

	p, _, err := globalLock.Call(h)
	if p == 0 {
		return "", fmt.Errorf("GlobalLock failed: %w", err)
	}
	defer globalUnlock.Call(h)

	return windows.UTF16PtrToString((*uint16)(unsafe.Pointer(p))), nil
}

// Set replaces the clipboard text
func (c *user32Clipboard) Set(text string) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	buf, err := windows.UTF16FromString(text)
	if err != nil {
		return fmt.Errorf("UTF16 conversion failed: %w", err)
	}

	if err := c.open(); err != nil {
		return err
	}
	defer closeClipboard.Call()

	if r, _, err := emptyClipboard.Call(); r == 0 {
		return fmt.Errorf("EmptyClipboard failed: %w", err)
	}

	h, _, err := globalAlloc.Call(gmemMoveable, uintptr(len(buf)*2))
	if h == 0 {
		return fmt.Errorf("GlobalAlloc failed: %w", err)
	}

	p, _, err := globalLock.Call(h)
	if p == 0 {
		globalFree.Call(h)
		return fmt.Errorf("GlobalLock failed: %w", err)
	}
	copy(unsafe.Slice((*uint16)(unsafe.Pointer(p)), len(buf)), buf)
	globalUnlock.Call(h)

	// Ownership of h passes to the system only on success.
	if r, _, err := setClipboardData.Call(cfUnicodeText, h); r == 0 {
		globalFree.Call(h)
		return fmt.Errorf("SetClipboardData failed: %w", err)
	}
	return nil
}

func (c *user32Clipboard) open() error {
	for i := 0; i < openAttempts; i++ {
		if r, _, _ := openClipboard.Call(0); r != 0 {
			return nil
		}
		time.Sleep(openBackoff)
	}
	return errClipboardBusy
}
