package config

import (
	"slices"
	"strings"
)

type knownShortcut struct {
	name      string
	modifiers []string
	key       string
}

// knownShortcuts are system and editing shortcuts a chord should not shadow.
// The editing ones are also what the agent simulates to capture and paste.
var knownShortcuts = []knownShortcut{
	{"Spotlight", []string{ModMeta}, " "},
	{"Spotlight (Finder search)", []string{ModMeta, ModAlt}, " "},
	{"Screenshot", []string{ModMeta, ModShift}, "3"},
	{"Screenshot (selection)", []string{ModMeta, ModShift}, "4"},
	{"Screenshot (toolbar)", []string{ModMeta, ModShift}, "5"},
	{"Input source switch", []string{ModControl}, " "},
	{"Lock screen", []string{ModMeta}, "l"},
	{"Show desktop", []string{ModMeta}, "d"},
	{"Copy", []string{ModControl}, "c"},
	{"Copy", []string{ModMeta}, "c"},
	{"Paste", []string{ModControl}, "v"},
	{"Paste", []string{ModMeta}, "v"},
	{"Select all", []string{ModControl}, "a"},
	{"Select all", []string{ModMeta}, "a"},
	{"Cut", []string{ModControl}, "x"},
	{"Cut", []string{ModMeta}, "x"},
	{"Undo", []string{ModControl}, "z"},
	{"Undo", []string{ModMeta}, "z"},
}

// Conflicts returns the names of known shortcuts the chord would shadow.
// Gestures never conflict.
func (h HotkeySpec) Conflicts() []string {
	if !h.IsCombination() {
		return nil
	}

	var names []string
	for _, k := range knownShortcuts {
		if chordsMatch(h.Modifiers, h.Key, k.modifiers, k.key) && !slices.Contains(names, k.name) {
			names = append(names, k.name)
		}
	}
	return names
}

// chordsMatch compares keys case-insensitively and modifiers as sets
func chordsMatch(mods1 []string, key1 string, mods2 []string, key2 string) bool {
	if !strings.EqualFold(normalizeKey(key1), normalizeKey(key2)) {
		return false
	}
	return slices.Equal(canonicalSet(mods1), canonicalSet(mods2))
}

func canonicalSet(mods []string) []string {
	out := make([]string, 0, len(mods))
	for _, m := range mods {
		canon, ok := CanonicalModifier(m)
		if !ok {
			canon = m
		}
		if !slices.Contains(out, canon) {
			out = append(out, canon)
		}
	}
	slices.Sort(out)
	return out
}

func normalizeKey(key string) string {
	if strings.EqualFold(key, "space") {
		return " "
	}
	return key
}
