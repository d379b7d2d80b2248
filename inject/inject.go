// Package inject places transcribed text at the current input focus,
// either by synthesizing keystrokes or through a clipboard paste.
package inject

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/atotto/clipboard"
	"github.com/go-vgo/robotgo"
)

// ErrEmptyText is returned when there is nothing to inject.
var ErrEmptyText = errors.New("empty text")

// Options controls the injection strategy.
type Options struct {
	// UseClipboard pastes via the clipboard instead of typing each
	// character. Much faster for long transcripts and more reliable
	// with non-ASCII text.
	UseClipboard bool
	// PreserveClipboard restores the previous clipboard content after
	// a paste.
	PreserveClipboard bool
}

// Injector types or pastes text into the focused application. The
// function fields default to the real clipboard and robotgo calls;
// tests swap them out.
type Injector struct {
	opts Options

	readClipboard  func() (string, error)
	writeClipboard func(string) error
	pasteChord     func()
	typeText       func(string)
}

// New creates an Injector using the platform clipboard and keyboard.
func New(opts Options) *Injector {
	return &Injector{
		opts:           opts,
		readClipboard:  clipboard.ReadAll,
		writeClipboard: clipboard.WriteAll,
		pasteChord:     sendPasteChord,
		typeText:       robotgo.TypeStr,
	}
}

// Inject delivers text at the input focus using the configured
// strategy. A clipboard paste that fails to stage the text falls back
// to direct typing.
func (i *Injector) Inject(text string) error {
	if text == "" {
		return ErrEmptyText
	}

	if i.opts.UseClipboard {
		err := i.pasteViaClipboard(text)
		if err == nil {
			return nil
		}
		slog.Warn("clipboard paste failed, falling back to typing", "error", err)
	}

	i.typeText(text)
	slog.Info("text typed", "chars", len(text))
	return nil
}

func (i *Injector) pasteViaClipboard(text string) error {
	var previous string
	var hadPrevious bool
	if i.opts.PreserveClipboard {
		if prev, err := i.readClipboard(); err == nil {
			previous, hadPrevious = prev, true
		} else {
			slog.Debug("read clipboard", "error", err)
		}
	}

	if err := i.writeClipboard(text); err != nil {
		return fmt.Errorf("stage clipboard: %w", err)
	}

	// Give the focused application time to observe the new clipboard
	// content before the paste chord lands.
	time.Sleep(50 * time.Millisecond)
	i.pasteChord()
	slog.Info("text pasted", "chars", len(text))

	if hadPrevious {
		// Restore after the paste has been processed.
		time.Sleep(150 * time.Millisecond)
		if err := i.writeClipboard(previous); err != nil {
			slog.Warn("restore clipboard", "error", err)
		}
	}
	return nil
}

// sendPasteChord presses the platform paste shortcut.
func sendPasteChord() {
	if runtime.GOOS == "darwin" {
		robotgo.KeyTap("v", "cmd")
		return
	}
	robotgo.KeyTap("v", "ctrl")
}
