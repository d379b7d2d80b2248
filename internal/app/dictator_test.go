package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"murmur/audio"
	"murmur/history"
	"murmur/stt"
)

type fakeRecorder struct {
	mu       sync.Mutex
	active   bool
	starts   int
	discards int
	startErr error
	stopErr  error
	artifact string
}

func (f *fakeRecorder) Start(onBlock func([]float32)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.starts++
	f.active = true
	return nil
}

func (f *fakeRecorder) Stop() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = false
	if f.stopErr != nil {
		return "", f.stopErr
	}
	return f.artifact, nil
}

func (f *fakeRecorder) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakeRecorder) Discard() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discards++
	f.active = false
}

type fakeTranscriber struct {
	mu      sync.Mutex
	calls   int
	res     *stt.Result
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath, language string) (*stt.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeInjector struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeInjector) Inject(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeInjector) injected() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []history.Entry
	err     error
}

func (f *fakeHistory) Append(text, language string, duration float64, audioFile string) (*history.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	e := history.Entry{ID: int64(len(f.entries) + 1), Text: text, Language: language, Duration: duration, AudioFile: audioFile}
	f.entries = append(f.entries, e)
	return &e, nil
}

func (f *fakeHistory) all() []history.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]history.Entry(nil), f.entries...)
}

type fakeNotifier struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (f *fakeNotifier) Info(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infos = append(f.infos, msg)
}

func (f *fakeNotifier) Error(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, msg)
}

func (f *fakeNotifier) errorCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.errors)
}

func (f *fakeNotifier) infoMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.infos...)
}

type fixture struct {
	d     *Dictator
	rec   *fakeRecorder
	tr    *fakeTranscriber
	inj   *fakeInjector
	hist  *fakeHistory
	notif *fakeNotifier
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		rec:   &fakeRecorder{},
		tr:    &fakeTranscriber{res: &stt.Result{Text: "hello world", Language: "en", Duration: 1.2}},
		inj:   &fakeInjector{},
		hist:  &fakeHistory{},
		notif: &fakeNotifier{},
	}
	f.rec.artifact = writeTempArtifact(t)
	f.d = New(opts, f.rec, f.tr, f.inj, f.hist, f.notif, nil)
	return f
}

func writeTempArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rec.wav")
	if err := os.WriteFile(path, []byte("RIFF"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func waitForIdle(t *testing.T, d *Dictator) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if d.State() == StateIdle {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("dictator stuck in %v", d.State())
}

func TestDictationCycle(t *testing.T) {
	f := newFixture(t, Options{Language: "en"})

	f.d.OnActivate()
	if got := f.d.State(); got != StateRecording {
		t.Fatalf("state after activate = %v", got)
	}
	if !f.d.Busy() {
		t.Fatal("not busy while recording")
	}

	f.d.OnDeactivate()
	waitForIdle(t, f.d)

	if got := f.inj.injected(); len(got) != 1 || got[0] != "hello world" {
		t.Fatalf("injected = %v", got)
	}
	entries := f.hist.all()
	if len(entries) != 1 {
		t.Fatalf("history entries = %d, want 1", len(entries))
	}
	if entries[0].Text != "hello world" || entries[0].Language != "en" || entries[0].Duration != 1.2 {
		t.Fatalf("entry = %+v", entries[0])
	}
	if f.notif.errorCount() != 0 {
		t.Fatalf("unexpected error toasts: %v", f.notif.errors)
	}
	// Artifact removed after a successful cycle.
	if _, err := os.Stat(f.rec.artifact); !os.IsNotExist(err) {
		t.Error("artifact not cleaned up")
	}
}

func TestEmptyRecordingSkipsTranscription(t *testing.T) {
	f := newFixture(t, Options{})
	f.rec.stopErr = audio.ErrNoAudio

	f.d.OnActivate()
	f.d.OnDeactivate()
	waitForIdle(t, f.d)

	if f.tr.callCount() != 0 {
		t.Fatal("transcriber called for empty recording")
	}
	if len(f.hist.all()) != 0 {
		t.Fatal("history entry for empty recording")
	}
	if f.notif.errorCount() != 0 {
		t.Fatalf("empty recording raised error toast: %v", f.notif.errors)
	}
	// The user still hears about it, as an info toast.
	infos := f.notif.infoMessages()
	if len(infos) != 1 || infos[0] != "No audio recorded" {
		t.Fatalf("info toasts = %v, want one no-audio notice", infos)
	}
}

func TestEmptyTranscriptNotInjected(t *testing.T) {
	f := newFixture(t, Options{})
	f.tr.res = &stt.Result{Text: "", Language: "en", Duration: 0.4}

	f.d.OnActivate()
	f.d.OnDeactivate()
	waitForIdle(t, f.d)

	if len(f.inj.injected()) != 0 {
		t.Fatal("empty transcript injected")
	}
	if len(f.hist.all()) != 0 {
		t.Fatal("empty transcript stored")
	}
}

func TestActivateWhileTranscribingRejected(t *testing.T) {
	f := newFixture(t, Options{})
	f.tr.started = make(chan struct{}, 1)
	f.tr.release = make(chan struct{})

	f.d.OnActivate()
	f.d.OnDeactivate()
	<-f.tr.started

	// A new press while the engine is busy must not start recording.
	f.d.OnActivate()
	if got := f.d.State(); got != StateTranscribing {
		t.Fatalf("state = %v, want transcribing", got)
	}
	f.rec.mu.Lock()
	starts := f.rec.starts
	f.rec.mu.Unlock()
	if starts != 1 {
		t.Fatalf("recorder starts = %d, want 1", starts)
	}

	close(f.tr.release)
	waitForIdle(t, f.d)

	if got := f.inj.injected(); len(got) != 1 {
		t.Fatalf("injections = %d, want 1", len(got))
	}
}

func TestActivateWithStrayCaptureIgnored(t *testing.T) {
	f := newFixture(t, Options{})
	f.rec.active = true

	f.d.OnActivate()
	if f.d.State() != StateIdle {
		t.Fatalf("state = %v, want idle", f.d.State())
	}
	f.rec.mu.Lock()
	starts := f.rec.starts
	f.rec.mu.Unlock()
	if starts != 0 {
		t.Fatal("stray capture session restarted")
	}
}

func TestDeactivateWhenIdleIgnored(t *testing.T) {
	f := newFixture(t, Options{})
	f.d.OnDeactivate()
	if f.d.State() != StateIdle {
		t.Fatal("idle deactivate changed state")
	}
	if f.tr.callCount() != 0 {
		t.Fatal("idle deactivate reached transcriber")
	}
}

func TestRecorderStartFailureReturnsToIdle(t *testing.T) {
	f := newFixture(t, Options{})
	f.rec.startErr = errors.New("device unavailable")

	f.d.OnActivate()
	if f.d.State() != StateIdle {
		t.Fatalf("state = %v, want idle", f.d.State())
	}
	if f.notif.errorCount() != 1 {
		t.Fatal("start failure not surfaced")
	}
}

func TestTranscriptionFailureIsNonFatal(t *testing.T) {
	f := newFixture(t, Options{})
	f.tr.err = errors.New("engine exploded")

	f.d.OnActivate()
	f.d.OnDeactivate()
	waitForIdle(t, f.d)

	if f.notif.errorCount() != 1 {
		t.Fatalf("error toasts = %d, want 1", f.notif.errorCount())
	}

	// The next cycle works.
	f.tr.err = nil
	f.rec.artifact = writeTempArtifact(t)
	f.d.OnActivate()
	f.d.OnDeactivate()
	waitForIdle(t, f.d)
	if len(f.inj.injected()) != 1 {
		t.Fatal("recovery cycle did not inject")
	}
}

func TestInjectionFailureStillRecordsHistory(t *testing.T) {
	f := newFixture(t, Options{})
	f.inj.err = errors.New("no focus")

	f.d.OnActivate()
	f.d.OnDeactivate()
	waitForIdle(t, f.d)

	if len(f.hist.all()) != 1 {
		t.Fatal("history lost after injection failure")
	}
	if f.notif.errorCount() != 1 {
		t.Fatal("injection failure not surfaced")
	}
}

func TestKeepAudioRetainsArtifact(t *testing.T) {
	f := newFixture(t, Options{KeepAudio: true})

	f.d.OnActivate()
	f.d.OnDeactivate()
	waitForIdle(t, f.d)

	if _, err := os.Stat(f.rec.artifact); err != nil {
		t.Fatalf("artifact removed despite KeepAudio: %v", err)
	}
	entries := f.hist.all()
	if len(entries) != 1 || entries[0].AudioFile != f.rec.artifact {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestShutdownDiscardsRecording(t *testing.T) {
	f := newFixture(t, Options{})

	f.d.OnActivate()
	f.d.Shutdown()

	if f.rec.discards != 1 {
		t.Fatalf("discards = %d, want 1", f.rec.discards)
	}
	if f.d.State() != StateIdle {
		t.Fatalf("state after shutdown = %v", f.d.State())
	}
}

func TestStateCallbackSequence(t *testing.T) {
	var mu sync.Mutex
	var states []State
	f := &fixture{
		rec:   &fakeRecorder{},
		tr:    &fakeTranscriber{res: &stt.Result{Text: "ok", Language: "en", Duration: 0.5}},
		inj:   &fakeInjector{},
		hist:  &fakeHistory{},
		notif: &fakeNotifier{},
	}
	f.rec.artifact = writeTempArtifact(t)
	f.d = New(Options{}, f.rec, f.tr, f.inj, f.hist, f.notif, func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	f.d.OnActivate()
	f.d.OnDeactivate()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(states)
		mu.Unlock()
		if n == 3 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateRecording, StateTranscribing, StateIdle}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("states = %v, want %v", states, want)
		}
	}
}
