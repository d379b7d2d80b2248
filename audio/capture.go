// Package audio captures microphone input and finalizes recordings as
// 16-bit PCM WAV artifacts.
package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrAlreadyRecording is returned by Start while a session is active.
var ErrAlreadyRecording = errors.New("already recording")

// ErrNotRecording is returned by Stop when no session is active.
var ErrNotRecording = errors.New("not recording")

// ErrNoAudio is returned by Stop when the session collected zero blocks.
var ErrNoAudio = errors.New("no audio captured")

// Config describes how the microphone should be captured.
type Config struct {
	SampleRate int    // samples per second, e.g. 16000
	Channels   int    // 1 or 2
	Device     string // substring of the input device name; empty = default
	TempDir    string // where WAV artifacts are written; empty = os.TempDir
}

// stream is a live platform input stream. The real implementation wraps
// PortAudio; tests inject fakes.
type stream interface {
	Start() error
	Stop() error
	Close() error
}

// openStreamFunc opens an input stream that delivers interleaved float32
// blocks in [-1, 1] to cb from the device callback thread.
type openStreamFunc func(cfg Config, cb func(block []float32)) (stream, error)

// Capture owns at most one recording session at a time. All methods are
// safe for concurrent use.
type Capture struct {
	mu   sync.Mutex
	cfg  Config
	open openStreamFunc
	sess *session
}

// session accumulates raw sample blocks under its own lock, which is
// shared between the device callback append and the stop-time drain so
// no block is lost or double-counted.
type session struct {
	mu      sync.Mutex
	blocks  [][]float32
	onBlock func([]float32)
	stream  stream
}

// New creates a Capture for cfg using the PortAudio backend.
func New(cfg Config) (*Capture, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", cfg.SampleRate)
	}
	if cfg.Channels != 1 && cfg.Channels != 2 {
		return nil, fmt.Errorf("invalid channel count %d", cfg.Channels)
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &Capture{cfg: cfg, open: openPortAudioStream}, nil
}

// Start opens the input stream and begins accumulating blocks. onBlock,
// if non-nil, additionally receives every block for live level metering;
// panics inside it are swallowed and logged, never reaching the device
// callback.
func (c *Capture) Start(onBlock func(block []float32)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess != nil {
		return ErrAlreadyRecording
	}

	sess := &session{onBlock: onBlock}
	st, err := c.open(c.cfg, sess.push)
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := st.Start(); err != nil {
		_ = st.Close()
		return fmt.Errorf("start input stream: %w", err)
	}

	sess.stream = st
	c.sess = sess
	slog.Info("recording started", "sample_rate", c.cfg.SampleRate, "channels", c.cfg.Channels)
	return nil
}

// Stop halts the stream, drains the accumulated blocks and writes the
// WAV artifact, returning its path. A session that collected no audio
// yields ErrNoAudio rather than an empty file.
func (c *Capture) Stop() (string, error) {
	c.mu.Lock()
	sess := c.sess
	c.sess = nil
	c.mu.Unlock()

	if sess == nil {
		return "", ErrNotRecording
	}

	if err := sess.stream.Stop(); err != nil {
		slog.Warn("stop input stream", "error", err)
	}
	if err := sess.stream.Close(); err != nil {
		slog.Warn("close input stream", "error", err)
	}

	samples := sess.drain()
	if len(samples) == 0 {
		return "", ErrNoAudio
	}

	path := c.artifactPath()
	if err := writeWAV(path, samples, c.cfg.SampleRate, c.cfg.Channels); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	slog.Info("recording saved", "path", path, "samples", len(samples))
	return path, nil
}

// Active reports whether a session is currently recording.
func (c *Capture) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess != nil
}

// Discard stops an in-flight session without producing an artifact.
// Used during shutdown; safe to call when idle.
func (c *Capture) Discard() {
	c.mu.Lock()
	sess := c.sess
	c.sess = nil
	c.mu.Unlock()

	if sess == nil {
		return
	}
	_ = sess.stream.Stop()
	_ = sess.stream.Close()
	slog.Info("recording discarded")
}

func (c *Capture) artifactPath() string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	return filepath.Join(c.cfg.TempDir, artifactPrefix+id+".wav")
}

// push is the device-callback entry point. It must return quickly: it
// copies the block, appends under the session lock and forwards to the
// meter callback.
func (s *session) push(block []float32) {
	buf := make([]float32, len(block))
	copy(buf, block)

	s.mu.Lock()
	s.blocks = append(s.blocks, buf)
	s.mu.Unlock()

	if s.onBlock != nil {
		s.forward(buf)
	}
}

func (s *session) forward(block []float32) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("audio meter callback panicked", "panic", r)
		}
	}()
	s.onBlock(block)
}

// drain concatenates every accumulated block.
func (s *session) drain() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, b := range s.blocks {
		total += len(b)
	}
	out := make([]float32, 0, total)
	for _, b := range s.blocks {
		out = append(out, b...)
	}
	s.blocks = nil
	return out
}
