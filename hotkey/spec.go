// Package hotkey provides global press-and-hold hotkey detection.
//
// A Spec describes a modifier combination plus one action key
// ("ctrl+space"). The Tracker turns raw key-down/key-up events into
// activation and deactivation edges, and the Controller dispatches those
// edges to a handler without ever blocking the OS event thread.
package hotkey

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSpec is returned when a hotkey string cannot be parsed.
var ErrInvalidSpec = errors.New("invalid hotkey spec")

// DefaultSpecString is the fallback combination used when configuration
// is missing or unparseable.
const DefaultSpecString = "ctrl+space"

// modifierVariants maps a modifier name from a spec to the concrete key
// identifiers that satisfy it. Generic names match either side; sided
// names also accept the generic identifier because some platforms do not
// report which side was pressed.
var modifierVariants = map[string][]string{
	"ctrl":   {"ctrl", "lctrl", "rctrl"},
	"lctrl":  {"lctrl", "ctrl"},
	"rctrl":  {"rctrl", "ctrl"},
	"alt":    {"alt", "lalt", "ralt"},
	"lalt":   {"lalt", "alt"},
	"ralt":   {"ralt", "alt"},
	"shift":  {"shift", "lshift", "rshift"},
	"lshift": {"lshift", "shift"},
	"rshift": {"rshift", "shift"},
	"meta":   {"meta", "lmeta", "rmeta"},
	"lmeta":  {"lmeta", "meta"},
	"rmeta":  {"rmeta", "meta"},
}

// keyAliases normalizes the many spellings seen in config files and in
// OS event names to the canonical identifiers above.
var keyAliases = map[string]string{
	"control":  "ctrl",
	"ctrl_l":   "lctrl",
	"ctrl_r":   "rctrl",
	"lcontrol": "lctrl",
	"rcontrol": "rctrl",
	"option":   "alt",
	"alt_l":    "lalt",
	"alt_r":    "ralt",
	"shift_l":  "lshift",
	"shift_r":  "rshift",
	"cmd":      "meta",
	"command":  "meta",
	"win":      "meta",
	"windows":  "meta",
	"super":    "meta",
	"lcmd":     "lmeta",
	"rcmd":     "rmeta",
	"lwin":     "lmeta",
	"rwin":     "rmeta",
	"escape":   "esc",
	"return":   "enter",
	"spacebar": "space",
}

// specialKeys are the non-character action keys a spec may name.
var specialKeys = map[string]bool{
	"space": true, "tab": true, "enter": true, "esc": true,
	"backspace": true, "delete": true, "insert": true,
	"home": true, "end": true, "pageup": true, "pagedown": true,
	"up": true, "down": true, "left": true, "right": true,
	"f1": true, "f2": true, "f3": true, "f4": true, "f5": true,
	"f6": true, "f7": true, "f8": true, "f9": true, "f10": true,
	"f11": true, "f12": true,
}

// Spec is a parsed hotkey combination: an ordered set of modifiers plus
// exactly one action key. Specs are immutable; reconfiguration replaces
// the whole value.
type Spec struct {
	Modifiers []string
	Key       string
}

// NormalizeKey maps a raw key name to its canonical identifier.
func NormalizeKey(name string) string {
	k := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := keyAliases[k]; ok {
		return alias
	}
	return k
}

// IsModifierKey reports whether the canonical key identifier belongs to
// the modifier set.
func IsModifierKey(key string) bool {
	_, ok := modifierVariants[key]
	return ok
}

func isActionKey(key string) bool {
	if specialKeys[key] {
		return true
	}
	if len(key) != 1 {
		return false
	}
	c := key[0]
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

// ParseSpec parses a combination of the form "mod[+mod...]+key", e.g.
// "ctrl+space" or "ctrl+shift+d". At least one modifier is required and
// the action key must not itself be a modifier.
func ParseSpec(s string) (Spec, error) {
	parts := strings.Split(strings.ReplaceAll(s, " ", ""), "+")
	if len(parts) < 2 {
		return Spec{}, fmt.Errorf("%w: %q needs at least one modifier and a key", ErrInvalidSpec, s)
	}

	mods := make([]string, 0, len(parts)-1)
	seen := make(map[string]bool, len(parts)-1)
	for _, p := range parts[:len(parts)-1] {
		m := NormalizeKey(p)
		if !IsModifierKey(m) {
			return Spec{}, fmt.Errorf("%w: %q is not a modifier", ErrInvalidSpec, p)
		}
		if !seen[m] {
			seen[m] = true
			mods = append(mods, m)
		}
	}

	key := NormalizeKey(parts[len(parts)-1])
	if IsModifierKey(key) {
		return Spec{}, fmt.Errorf("%w: action key %q is a modifier", ErrInvalidSpec, key)
	}
	if !isActionKey(key) {
		return Spec{}, fmt.Errorf("%w: unknown action key %q", ErrInvalidSpec, key)
	}

	return Spec{Modifiers: mods, Key: key}, nil
}

// MustParseSpec is ParseSpec for known-good literals.
func MustParseSpec(s string) Spec {
	spec, err := ParseSpec(s)
	if err != nil {
		panic(err)
	}
	return spec
}

// DefaultSpec returns the built-in fallback combination.
func DefaultSpec() Spec {
	return MustParseSpec(DefaultSpecString)
}

// String renders the normalized display form, e.g. "ctrl+shift+space".
func (s Spec) String() string {
	if len(s.Modifiers) == 0 {
		return s.Key
	}
	return strings.Join(s.Modifiers, "+") + "+" + s.Key
}

// matchesModifier reports whether the concrete pressed key satisfies the
// spec modifier name.
func matchesModifier(mod, key string) bool {
	for _, v := range modifierVariants[mod] {
		if v == key {
			return true
		}
	}
	return false
}
