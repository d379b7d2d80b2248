// Package stt turns recorded WAV files into text via Whisper, either
// through a local whisper.cpp binary or the OpenAI-compatible HTTP API.
package stt

import (
	"context"
	"errors"
	"fmt"
)

// ErrAudioNotFound is returned when the audio artifact does not exist.
var ErrAudioNotFound = errors.New("audio file not found")

// ErrNotReady is returned when the engine cannot transcribe yet, e.g.
// the whisper.cpp binary or model file is missing.
var ErrNotReady = errors.New("transcription engine not ready")

// Result is a finished transcription.
type Result struct {
	Text     string  // transcript with surrounding whitespace trimmed
	Language string  // detected or requested language code
	Duration float64 // audio length in seconds
}

// Transcriber converts a WAV file to text. language is a two-letter
// code; empty or "auto" lets the engine detect it.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, audioPath, language string) (*Result, error)
	Close() error
}

// Config selects and configures a transcription engine.
type Config struct {
	Provider  string // "local" or "api"
	ModelSize string // local: "tiny", "base", "small", "medium", "large"
	ModelDir  string // local: directory holding ggml model files
	BinPath   string // local: explicit whisper.cpp binary path
	APIKey    string // api: bearer token
	BaseURL   string // api: endpoint override
	Model     string // api: model name, defaults to whisper-1
}

// New builds the Transcriber selected by cfg.Provider.
func New(cfg Config) (Transcriber, error) {
	switch cfg.Provider {
	case "", "local":
		return NewWhisperLocal(WhisperLocalConfig{
			ModelSize: cfg.ModelSize,
			ModelDir:  cfg.ModelDir,
			BinPath:   cfg.BinPath,
		})
	case "api":
		return NewWhisperAPI(WhisperAPIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}), nil
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", cfg.Provider)
	}
}
