//go:build linux

package hotkey

import (
	"golang.design/x/hotkey"

	"markestedt/aityping/config"
)

// X11: Alt is usually Mod1 and Super is usually Mod4
func modifierFor(name string) (hotkey.Modifier, bool) {
	switch name {
	case config.ModControl:
		return hotkey.ModCtrl, true
	case config.ModShift:
		return hotkey.ModShift, true
	case config.ModAlt:
		return hotkey.Mod1, true
	case config.ModMeta:
		return hotkey.Mod4, true
	}
	return 0, false
}

// CapsLock is LockMask (1<<1) and NumLock is usually Mod2
const linuxCapsLockMask hotkey.Modifier = 1 << 1

// expandModifiers registers the same chord for the lock-modifier states so
// it still fires with NumLock or CapsLock on
func expandModifiers(modifiers []hotkey.Modifier) [][]hotkey.Modifier {
	base := append([]hotkey.Modifier(nil), modifiers...)
	withNum := append(append([]hotkey.Modifier(nil), modifiers...), hotkey.Mod2)
	withCaps := append(append([]hotkey.Modifier(nil), modifiers...), linuxCapsLockMask)
	withBoth := append(append([]hotkey.Modifier(nil), modifiers...), hotkey.Mod2, linuxCapsLockMask)

	return [][]hotkey.Modifier{base, withNum, withCaps, withBoth}
}
