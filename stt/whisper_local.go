package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"murmur/audio"
)

// WhisperLocal transcribes via a local whisper.cpp binary. The model
// file must already be present; nothing is downloaded.
type WhisperLocal struct {
	binPath   string
	modelPath string
	modelSize string
}

// WhisperLocalConfig configures WhisperLocal.
type WhisperLocalConfig struct {
	ModelSize string // defaults to "base"
	ModelDir  string // defaults to ~/.murmur/models
	BinPath   string // found on PATH if empty
}

var validModelSizes = map[string]bool{
	"tiny": true, "base": true, "small": true, "medium": true, "large": true,
}

// NewWhisperLocal locates the whisper.cpp binary and model file. It
// returns ErrNotReady when either is missing so the caller can surface
// a setup hint instead of failing on first use.
func NewWhisperLocal(cfg WhisperLocalConfig) (*WhisperLocal, error) {
	if cfg.ModelSize == "" {
		cfg.ModelSize = "base"
	}
	if !validModelSizes[cfg.ModelSize] {
		return nil, fmt.Errorf("invalid model size %q", cfg.ModelSize)
	}

	if cfg.ModelDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		cfg.ModelDir = filepath.Join(homeDir, ".murmur", "models")
	}

	w := &WhisperLocal{
		modelSize: cfg.ModelSize,
		modelPath: filepath.Join(cfg.ModelDir, fmt.Sprintf("ggml-%s.bin", cfg.ModelSize)),
		binPath:   cfg.BinPath,
	}
	if w.binPath == "" {
		w.binPath = findWhisperBinary()
	}

	if w.binPath == "" {
		return w, fmt.Errorf("%w: whisper.cpp binary not found, install whisper.cpp", ErrNotReady)
	}
	if _, err := os.Stat(w.modelPath); err != nil {
		return w, fmt.Errorf("%w: model file %s missing", ErrNotReady, w.modelPath)
	}
	slog.Info("whisper.cpp ready", "binary", w.binPath, "model", w.modelSize)
	return w, nil
}

func (w *WhisperLocal) Name() string { return "whisper-local" }

// Transcribe runs whisper.cpp on audioPath and parses its JSON output.
func (w *WhisperLocal) Transcribe(ctx context.Context, audioPath, language string) (*Result, error) {
	if w.binPath == "" {
		return nil, fmt.Errorf("%w: whisper.cpp binary not found", ErrNotReady)
	}
	if _, err := os.Stat(w.modelPath); err != nil {
		return nil, fmt.Errorf("%w: model file %s missing", ErrNotReady, w.modelPath)
	}
	if _, err := os.Stat(audioPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAudioNotFound, audioPath)
	}

	args := []string{
		"-m", w.modelPath,
		"-f", audioPath,
		"-oj",
		"--no-prints",
	}
	if language != "" && language != "auto" {
		args = append(args, "-l", language)
	}

	cmd := exec.CommandContext(ctx, w.binPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("whisper.cpp failed: %w, stderr: %s", err, stderr.String())
	}

	text, lang, err := parseWhisperOutput(stdout.Bytes())
	if err != nil {
		// Older builds print the transcript as plain text.
		text = strings.TrimSpace(stdout.String())
		lang = language
	}

	dur, err := audio.Duration(audioPath)
	if err != nil {
		slog.Warn("read audio duration", "path", audioPath, "error", err)
	}

	return &Result{Text: text, Language: lang, Duration: dur}, nil
}

func (w *WhisperLocal) Close() error { return nil }

// whisperCppOutput is the -oj JSON shape emitted by whisper.cpp.
type whisperCppOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Text string `json:"text"`
	} `json:"transcription"`
}

func parseWhisperOutput(data []byte) (text, language string, err error) {
	var out whisperCppOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return "", "", err
	}
	var sb strings.Builder
	for _, seg := range out.Transcription {
		sb.WriteString(seg.Text)
	}
	return strings.TrimSpace(sb.String()), out.Result.Language, nil
}

// findWhisperBinary searches PATH and common install locations.
// whisper-cli is the Homebrew name.
func findWhisperBinary() string {
	names := []string{"whisper-cli", "whisper-cpp", "whisper", "main"}

	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	homeDir, _ := os.UserHomeDir()
	locations := []string{
		"/opt/homebrew/bin",
		"/usr/local/bin",
		filepath.Join(homeDir, ".local", "bin"),
		filepath.Join(homeDir, "whisper.cpp"),
	}
	for _, loc := range locations {
		for _, name := range names {
			path := filepath.Join(loc, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}

	if runtime.GOOS == "darwin" {
		execPath, _ := os.Executable()
		bundlePath := filepath.Join(filepath.Dir(execPath), "..", "Resources", "whisper-cpp")
		if _, err := os.Stat(bundlePath); err == nil {
			return bundlePath
		}
	}

	return ""
}
