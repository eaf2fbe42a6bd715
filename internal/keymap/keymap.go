// Package keymap resolves key tokens and modifier combinations to
// platform key names understood by the injection backend.
package keymap

import (
	"fmt"
	"sort"
	"strings"
)

// Modifiers is a bitset of modifier keys held during a key press.
type Modifiers uint8

const (
	ModCtrl Modifiers = 1 << iota
	ModAlt
	ModShift
	ModSuper
)

// Has reports whether mod is set.
func (m Modifiers) Has(mod Modifiers) bool {
	return m&mod != 0
}

// Names returns the modifier names in a fixed order, as consumed by the
// injection backend.
func (m Modifiers) Names() []string {
	var names []string
	if m.Has(ModCtrl) {
		names = append(names, "ctrl")
	}
	if m.Has(ModAlt) {
		names = append(names, "alt")
	}
	if m.Has(ModShift) {
		names = append(names, "shift")
	}
	if m.Has(ModSuper) {
		names = append(names, "cmd")
	}
	return names
}

func (m Modifiers) String() string {
	names := m.Names()
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "+")
}

// Chord is a resolved key press: one key plus zero or more modifiers.
type Chord struct {
	Key  string
	Mods Modifiers
}

func (c Chord) String() string {
	if c.Mods == 0 {
		return c.Key
	}
	return strings.Join(append(c.Mods.Names(), c.Key), "+")
}

// InvalidKeyError indicates an unrecognized key token.
type InvalidKeyError struct {
	Key    string
	Reason string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid key '%s': %s", e.Key, e.Reason)
}

// InvalidCombinationError indicates a malformed modifier combination.
type InvalidCombinationError struct {
	Combo  string
	Reason string
}

func (e *InvalidCombinationError) Error() string {
	return fmt.Sprintf("invalid key combination '%s': %s", e.Combo, e.Reason)
}

// modifierTokens maps modifier aliases to their bit.
var modifierTokens = map[string]Modifiers{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"alt":     ModAlt,
	"shift":   ModShift,
	"meta":    ModSuper,
	"cmd":     ModSuper,
	"super":   ModSuper,
}

// keyTable maps every supported token to the canonical backend key name.
// Aliases (return, esc, arrowup, ...) map to the same canonical name as
// their primary token.
var keyTable = buildKeyTable()

func buildKeyTable() map[string]string {
	table := make(map[string]string, 80)

	for c := 'a'; c <= 'z'; c++ {
		table[string(c)] = string(c)
	}
	for c := '0'; c <= '9'; c++ {
		table[string(c)] = string(c)
	}
	for i := 1; i <= 12; i++ {
		name := fmt.Sprintf("f%d", i)
		table[name] = name
	}

	specials := map[string]string{
		"space":      "space",
		"enter":      "enter",
		"return":     "enter",
		"tab":        "tab",
		"escape":     "esc",
		"esc":        "esc",
		"backspace":  "backspace",
		"delete":     "delete",
		"insert":     "insert",
		"home":       "home",
		"end":        "end",
		"pageup":     "pageup",
		"pagedown":   "pagedown",
		"up":         "up",
		"arrowup":    "up",
		"down":       "down",
		"arrowdown":  "down",
		"left":       "left",
		"arrowleft":  "left",
		"right":      "right",
		"arrowright": "right",
	}
	for token, name := range specials {
		table[token] = name
	}

	return table
}

// Resolve parses a key token into a Chord. The token may be a single key
// ("space", "f5") or a modifier combination ("ctrl+alt+r"). Resolution is
// case-insensitive and deterministic; it performs no side effects, so it is
// safe to call both at validation time and immediately before dispatch.
func Resolve(token string) (Chord, error) {
	normalized := strings.ToLower(strings.TrimSpace(token))
	if normalized == "" {
		return Chord{}, &InvalidKeyError{Key: token, Reason: "empty key"}
	}

	if !strings.Contains(normalized, "+") {
		name, ok := keyTable[normalized]
		if !ok {
			return Chord{}, &InvalidKeyError{Key: normalized, Reason: "unknown key"}
		}
		return Chord{Key: name}, nil
	}

	var (
		mods Modifiers
		key  string
	)
	for _, part := range strings.Split(normalized, "+") {
		part = strings.TrimSpace(part)
		if mod, ok := modifierTokens[part]; ok {
			mods |= mod
			continue
		}
		if key != "" {
			return Chord{}, &InvalidCombinationError{Combo: normalized, Reason: "multiple keys specified"}
		}
		name, ok := keyTable[part]
		if !ok {
			return Chord{}, &InvalidKeyError{Key: part, Reason: "unknown key"}
		}
		key = name
	}

	if key == "" {
		return Chord{}, &InvalidCombinationError{Combo: normalized, Reason: "no key specified"}
	}

	return Chord{Key: key, Mods: mods}, nil
}

// Supported returns the sorted list of recognized single-key tokens,
// aliases included.
func Supported() []string {
	tokens := make([]string, 0, len(keyTable))
	for token := range keyTable {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}
