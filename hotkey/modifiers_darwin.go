//go:build darwin

package hotkey

import (
	"golang.design/x/hotkey"

	"markestedt/aityping/config"
)

func modifierFor(name string) (hotkey.Modifier, bool) {
	switch name {
	case config.ModControl:
		return hotkey.ModCtrl, true
	case config.ModShift:
		return hotkey.ModShift, true
	case config.ModAlt:
		return hotkey.ModOption, true
	case config.ModMeta:
		return hotkey.ModCmd, true
	}
	return 0, false
}

func expandModifiers(modifiers []hotkey.Modifier) [][]hotkey.Modifier {
	return [][]hotkey.Modifier{modifiers}
}
