//go:build !windows && !linux && !darwin

package hotkey

import "golang.design/x/hotkey"

// Global chords are not supported on this OS; every chord is skipped.
func modifierFor(name string) (hotkey.Modifier, bool) {
	return 0, false
}

func expandModifiers(modifiers []hotkey.Modifier) [][]hotkey.Modifier {
	return [][]hotkey.Modifier{modifiers}
}
