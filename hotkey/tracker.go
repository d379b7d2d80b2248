package hotkey

import (
	"sync"
)

// Tracker consumes raw key-down/key-up events and raises activation and
// deactivation edges for a single Spec.
//
// Activation is edge-triggered solely on the action key going down while
// every configured modifier is held. Deactivation is edge-triggered
// solely on the action key going up while the combination is armed;
// releasing a modifier first must not swallow the deactivation edge.
// The armed flag tracks "the combination was satisfied and has not yet
// produced its deactivation edge"; re-checking modifier state at release
// time instead would lose the edge when the user lets go of ctrl a
// fraction before space.
type Tracker struct {
	mu      sync.Mutex
	spec    Spec
	pressed map[string]bool
	armed   bool

	onActivate   func()
	onDeactivate func()
}

// NewTracker creates a tracker for spec. The edge callbacks are invoked
// outside the tracker's lock and must not block; dispatching work is the
// Controller's job.
func NewTracker(spec Spec, onActivate, onDeactivate func()) *Tracker {
	return &Tracker{
		spec:         spec,
		pressed:      make(map[string]bool),
		onActivate:   onActivate,
		onDeactivate: onDeactivate,
	}
}

// KeyDown records a key press. key must already be canonical (see
// NormalizeKey). Auto-repeated presses of the action key do not re-fire
// the activation edge while armed.
func (t *Tracker) KeyDown(key string) {
	t.mu.Lock()
	if IsModifierKey(key) {
		t.pressed[key] = true
	}

	fire := false
	if key == t.spec.Key && !t.armed && t.modifiersHeldLocked() {
		t.armed = true
		fire = true
	}
	t.mu.Unlock()

	if fire && t.onActivate != nil {
		t.onActivate()
	}
}

// KeyUp records a key release. Modifier releases only shrink the pressed
// set; they never touch the armed flag, so the deactivation edge still
// fires when the action key finally comes up.
func (t *Tracker) KeyUp(key string) {
	t.mu.Lock()
	if IsModifierKey(key) {
		delete(t.pressed, key)
	}

	fire := false
	if key == t.spec.Key && t.armed {
		t.armed = false
		fire = true
	}
	t.mu.Unlock()

	if fire && t.onDeactivate != nil {
		t.onDeactivate()
	}
}

// Armed reports whether the combination is currently armed.
func (t *Tracker) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed
}

// Reset replaces the spec and clears all edge state. Used on reload.
func (t *Tracker) Reset(spec Spec) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spec = spec
	t.pressed = make(map[string]bool)
	t.armed = false
}

// Spec returns the active combination.
func (t *Tracker) Spec() Spec {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spec
}

func (t *Tracker) modifiersHeldLocked() bool {
	for _, mod := range t.spec.Modifiers {
		held := false
		for key := range t.pressed {
			if matchesModifier(mod, key) {
				held = true
				break
			}
		}
		if !held {
			return false
		}
	}
	return true
}
