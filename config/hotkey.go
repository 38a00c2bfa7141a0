package config

import (
	"fmt"
	"strings"
	"time"
)

// HotkeyType tags the variant of a HotkeySpec
type HotkeyType string

const (
	HotkeyCombination HotkeyType = "combination"
	HotkeyConsecutive HotkeyType = "consecutive"
)

// Canonical modifier names
const (
	ModControl = "Control"
	ModShift   = "Shift"
	ModAlt     = "Alt"
	ModMeta    = "Meta"
)

// HotkeySpec is either a modifier chord (Modifiers + Key) or a key pressed
// Count times with at most Interval between presses.
type HotkeySpec struct {
	Type      HotkeyType `toml:"type" json:"type"`
	Modifiers []string   `toml:"modifiers,omitempty" json:"modifiers,omitempty"`
	Key       string     `toml:"key" json:"key"`
	Count     int        `toml:"count,omitempty" json:"count,omitempty"`
	Interval  Duration   `toml:"interval,omitempty" json:"interval,omitempty"`
}

// Combination returns a chord spec
func Combination(key string, modifiers ...string) HotkeySpec {
	return HotkeySpec{Type: HotkeyCombination, Modifiers: modifiers, Key: key}
}

// Consecutive returns a repeated-press spec
func Consecutive(key string, count int, interval time.Duration) HotkeySpec {
	return HotkeySpec{Type: HotkeyConsecutive, Key: key, Count: count, Interval: Duration{interval}}
}

// IsCombination reports whether h is a chord. An empty type counts as one.
func (h HotkeySpec) IsCombination() bool {
	return h.Type == HotkeyCombination || h.Type == ""
}

// Validate checks the spec on its own
func (h HotkeySpec) Validate() error {
	if strings.TrimSpace(h.Key) == "" && h.Key != " " {
		return fmt.Errorf("hotkey key is empty")
	}

	switch {
	case h.IsCombination():
		for _, m := range h.Modifiers {
			if _, ok := CanonicalModifier(m); !ok {
				return fmt.Errorf("unknown modifier: %s", m)
			}
		}
	case h.Type == HotkeyConsecutive:
		if h.Count < 2 {
			return fmt.Errorf("consecutive hotkey needs a count of at least 2, got %d", h.Count)
		}
		if h.Interval.Duration <= 0 {
			return fmt.Errorf("consecutive hotkey needs a positive interval")
		}
	default:
		return fmt.Errorf("unknown hotkey type: %s", h.Type)
	}
	return nil
}

// ValidForSelected reports whether h can trigger selected-text translation.
// A bare key or a repeated press would fire while the user is typing.
func (h HotkeySpec) ValidForSelected() bool {
	return h.IsCombination() && len(h.Modifiers) > 0
}

// Format renders h for display, e.g. "Cmd + Shift + T" or "SPACE × 3"
func (h HotkeySpec) Format() string {
	if h.Type == HotkeyConsecutive {
		return fmt.Sprintf("%s × %d", strings.ToUpper(keyLabel(h.Key)), h.Count)
	}

	parts := make([]string, 0, len(h.Modifiers)+1)
	for _, m := range h.Modifiers {
		canon, _ := CanonicalModifier(m)
		switch canon {
		case ModMeta:
			parts = append(parts, "Cmd")
		case ModControl:
			parts = append(parts, "Ctrl")
		case ModAlt:
			parts = append(parts, "Option")
		case ModShift:
			parts = append(parts, "Shift")
		default:
			parts = append(parts, m)
		}
	}
	parts = append(parts, strings.ToUpper(keyLabel(h.Key)))
	return strings.Join(parts, " + ")
}

func keyLabel(key string) string {
	if key == " " {
		return "Space"
	}
	return key
}

// CanonicalModifier maps the accepted spellings of a modifier onto
// Control, Shift, Alt or Meta
func CanonicalModifier(name string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ctrl", "control":
		return ModControl, true
	case "shift":
		return ModShift, true
	case "alt", "option", "opt":
		return ModAlt, true
	case "meta", "cmd", "command", "win", "windows", "super":
		return ModMeta, true
	}
	return "", false
}

// Duration is a time.Duration written as text ("300ms") in config files
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}
