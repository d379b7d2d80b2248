// Package app orchestrates the push-to-talk dictation flow: hotkey
// edges start and stop capture, finished recordings are transcribed and
// the text lands at the input focus.
package app

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"

	"murmur/audio"
	"murmur/history"
	"murmur/stt"
)

// State is the orchestrator phase.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateTranscribing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateTranscribing:
		return "transcribing"
	default:
		return "unknown"
	}
}

// Recorder captures microphone audio and produces a WAV artifact.
type Recorder interface {
	Start(onBlock func(block []float32)) error
	Stop() (string, error)
	Active() bool
	Discard()
}

// Transcriber converts a WAV artifact to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) (*stt.Result, error)
}

// Injector delivers text at the current input focus.
type Injector interface {
	Inject(text string) error
}

// History persists finished transcriptions.
type History interface {
	Append(text, language string, duration float64, audioFile string) (*history.Entry, error)
}

// Notifier surfaces events to the user.
type Notifier interface {
	Info(message string)
	Error(message string)
}

// Options tunes the dictation flow.
type Options struct {
	Language  string // passed to the transcriber, "auto" detects
	KeepAudio bool   // keep WAV artifacts after transcription
}

// Dictator drives one dictation cycle at a time. The mutex guards only
// the state field; it is never held across a recorder, transcriber or
// injector call.
type Dictator struct {
	opts  Options
	rec   Recorder
	stt   Transcriber
	inj   Injector
	hist  History
	notif Notifier

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	state   State
	onState func(State)
}

// New creates a Dictator. onState, if non-nil, observes every state
// change; it is invoked outside the lock and must not block.
func New(opts Options, rec Recorder, tr Transcriber, inj Injector, hist History, notif Notifier, onState func(State)) *Dictator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dictator{
		opts:    opts,
		rec:     rec,
		stt:     tr,
		inj:     inj,
		hist:    hist,
		notif:   notif,
		ctx:     ctx,
		cancel:  cancel,
		onState: onState,
	}
}

// State returns the current phase.
func (d *Dictator) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Busy reports whether a dictation cycle is in progress. The hotkey
// controller consults it before applying a config reload.
func (d *Dictator) Busy() bool {
	return d.State() != StateIdle
}

// OnActivate starts recording. Pressing the hotkey while a previous
// cycle is still transcribing is rejected, not queued.
func (d *Dictator) OnActivate() {
	d.mu.Lock()
	if d.state != StateIdle {
		state := d.state
		d.mu.Unlock()
		slog.Warn("activation ignored", "state", state)
		return
	}
	if d.rec.Active() {
		// Should not happen; a stray session means state tracking and
		// the capture device disagree.
		d.mu.Unlock()
		slog.Warn("activation ignored, capture already active")
		return
	}
	d.state = StateRecording
	d.mu.Unlock()
	d.notifyState(StateRecording)

	if err := d.rec.Start(nil); err != nil {
		slog.Error("start recording", "error", err)
		d.notif.Error("Could not start recording: " + err.Error())
		d.setState(StateIdle)
	}
}

// OnDeactivate stops recording and kicks off transcription in the
// background so the hotkey listener is never blocked on the engine.
func (d *Dictator) OnDeactivate() {
	d.mu.Lock()
	if d.state != StateRecording {
		state := d.state
		d.mu.Unlock()
		slog.Debug("deactivation ignored", "state", state)
		return
	}
	d.state = StateTranscribing
	d.mu.Unlock()
	d.notifyState(StateTranscribing)

	path, err := d.rec.Stop()
	if err != nil {
		if errors.Is(err, audio.ErrNoAudio) {
			slog.Info("recording empty, nothing to transcribe")
			d.notif.Info("No audio recorded")
		} else {
			slog.Error("stop recording", "error", err)
			d.notif.Error("Recording failed: " + err.Error())
		}
		d.setState(StateIdle)
		return
	}

	go d.transcribe(path)
}

// Shutdown aborts any in-flight cycle and discards partial audio.
func (d *Dictator) Shutdown() {
	d.cancel()
	d.rec.Discard()
	d.setState(StateIdle)
}

func (d *Dictator) transcribe(audioPath string) {
	defer d.setState(StateIdle)
	defer d.cleanupArtifact(audioPath)

	res, err := d.stt.Transcribe(d.ctx, audioPath, d.opts.Language)
	if err != nil {
		if d.ctx.Err() != nil {
			return
		}
		slog.Error("transcription failed", "error", err)
		d.notif.Error("Transcription failed: " + err.Error())
		return
	}
	if res.Text == "" {
		slog.Info("transcription empty", "path", audioPath)
		d.notif.Info("No speech recognized")
		return
	}

	slog.Info("transcription done", "chars", len(res.Text), "language", res.Language, "duration", res.Duration)

	// Injection failure keeps the text; it is still in the history.
	if err := d.inj.Inject(res.Text); err != nil {
		slog.Error("inject text", "error", err)
		d.notif.Error("Could not insert text, see history")
	}

	audioFile := ""
	if d.opts.KeepAudio {
		audioFile = audioPath
	}
	if _, err := d.hist.Append(res.Text, res.Language, res.Duration, audioFile); err != nil {
		slog.Error("append history", "error", err)
	}
}

func (d *Dictator) cleanupArtifact(path string) {
	if d.opts.KeepAudio {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("remove artifact", "path", path, "error", err)
	}
}

func (d *Dictator) setState(s State) {
	d.mu.Lock()
	changed := d.state != s
	d.state = s
	d.mu.Unlock()
	if changed {
		d.notifyState(s)
	}
}

func (d *Dictator) notifyState(s State) {
	if d.onState != nil {
		d.onState(s)
	}
}
