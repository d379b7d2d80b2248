package hotkey

import (
	hook "github.com/robotn/gohook"
)

// gohookSource adapts the gohook global input hook to the controller's
// eventSource. KeyHold events (auto-repeat) are dropped here; the
// tracker's armed flag additionally guards against platforms that report
// repeats as fresh key-downs.
type gohookSource struct{}

func (s *gohookSource) Start() (<-chan keyEvent, error) {
	raw := hook.Start()
	out := make(chan keyEvent, 16)
	go func() {
		defer close(out)
		for ev := range raw {
			switch ev.Kind {
			case hook.KeyDown:
				if key, ok := eventKey(ev); ok {
					out <- keyEvent{key: key, down: true}
				}
			case hook.KeyUp:
				if key, ok := eventKey(ev); ok {
					out <- keyEvent{key: key}
				}
			}
		}
	}()
	return out, nil
}

func (s *gohookSource) Stop() {
	// Closes the raw event channel, which unwinds the translation
	// goroutine and closes out.
	hook.End()
}

// eventKey translates a gohook event to a canonical key identifier.
func eventKey(ev hook.Event) (string, bool) {
	name := hook.RawcodetoKeychar(ev.Rawcode)
	if name == "" && ev.Keychar != 0 && ev.Keychar != 65535 {
		name = string(ev.Keychar)
	}
	key := NormalizeKey(name)
	if key == "" {
		return "", false
	}
	return key, true
}
