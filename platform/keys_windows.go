//go:build windows

package platform

import (
	"context"
	"fmt"
	"runtime"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	setWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	callNextHookEx      = user32.NewProc("CallNextHookEx")
	unhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	getMessageW         = user32.NewProc("GetMessageW")
	postThreadMessageW  = user32.NewProc("PostThreadMessageW")
	getCurrentThreadID  = kernel32.NewProc("GetCurrentThreadId")
)

const (
	whKeyboardLL = 13
	wmKeydown    = 0x0100
	wmSyskeydown = 0x0104
	wmQuit       = 0x0012
)

type kbdllhookstruct struct {
	vkCode      uint32
	scanCode    uint32
	flags       uint32
	time        uint32
	dwExtraInfo uintptr
}

type msg struct {
	hwnd    uintptr
	message uint32
	wParam  uintptr
	lParam  uintptr
	time    uint32
	pt      struct{ x, y int32 }
}

// vkNames maps virtual key codes to the key names used in configuration
var vkNames = map[uint32]string{
	0x20: " ", 0x0D: "\n", 0x09: "\t", 0x1B: "esc", 0x08: "backspace",
	0x2E: "delete",
	0x30: "0", 0x31: "1", 0x32: "2", 0x33: "3", 0x34: "4",
	0x35: "5", 0x36: "6", 0x37: "7", 0x38: "8", 0x39: "9",
	0x70: "f1", 0x71: "f2", 0x72: "f3", 0x73: "f4", 0x74: "f5", 0x75: "f6",
	0x76: "f7", 0x77: "f8", 0x78: "f9", 0x79: "f10", 0x7A: "f11", 0x7B: "f12",
}

func init() {
	for vk := uint32('A'); vk <= 'Z'; vk++ {
		vkNames[vk] = string(rune(vk + 32))
	}
}

// llHookListener installs a WH_KEYBOARD_LL hook on a dedicated OS thread
type llHookListener struct{}

func newSystemKeyListener() (KeyListener, bool) {
	return &llHookListener{}, true
}

// Listen installs the hook and removes it once ctx is done
func (l *llHookListener) Listen(ctx context.Context) (<-chan KeyEvent, error) {
	out := make(chan KeyEvent, 16)
	ready := make(chan error, 1)
	threadID := make(chan uintptr, 1)

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(out)

		tid, _, _ := getCurrentThreadID.Call()
		threadID <- tid

		proc := func(nCode int32, wParam uintptr, lParam uintptr) uintptr {
			if nCode >= 0 && (wParam == wmKeydown || wParam == wmSyskeydown) {
				info := (*kbdllhookstruct)(unsafe.Pointer(lParam))
				if name, ok := vkNames[info.vkCode]; ok {
					select {
					case out <- KeyEvent{Key: name, At: time.Now()}:
					default:
					}
				}
			}
			r, _, _ := callNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
			return r
		}

		hook, _, err := setWindowsHookEx.Call(whKeyboardLL, windows.NewCallback(proc), 0, 0)
		if hook == 0 {
			ready <- fmt.Errorf("SetWindowsHookEx failed: %w", err)
			return
		}
		defer unhookWindowsHookEx.Call(hook)
		ready <- nil

		// The hook only fires while this thread pumps messages.
		var m msg
		for {
			r, _, _ := getMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
			if r == 0 || int32(r) == -1 {
				return
			}
		}
	}()

	tid := <-threadID
	if err := <-ready; err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		postThreadMessageW.Call(tid, wmQuit, 0, 0)
	}()

	return out, nil
}
