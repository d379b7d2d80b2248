// Murmur is a push-to-talk dictation utility. Hold the hotkey to
// record, release it to transcribe, and the text appears at the input
// focus.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/getlantern/systray"

	"murmur/audio"
	"murmur/config"
	"murmur/history"
	"murmur/hotkey"
	"murmur/inject"
	"murmur/internal/app"
	"murmur/notify"
	"murmur/stt"
)

// version can be set via -ldflags "-X main.version=...".
var version = "dev"

type runtimeState struct {
	cfg        *config.Config
	configPath string

	capture    *audio.Capture
	transcribe stt.Transcriber
	hist       *history.Store
	notif      *notify.Notifier
	dictator   *app.Dictator
	controller *hotkey.Controller
}

var rt runtimeState

func main() {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("murmur", version)
		return
	}

	closeLog := setupLogging()
	defer closeLog()
	slog.Info("murmur starting", "version", version)

	rt.configPath = *configPath
	systray.Run(onReady, onExit)
}

func onReady() {
	systray.SetIcon(iconIdle)
	systray.SetTooltip("Murmur dictation")

	cfg, err := config.Load(rt.configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		cfg = config.Default()
	}
	rt.cfg = cfg

	mStatus := systray.AddMenuItem("Idle", "Current state")
	mStatus.Disable()
	systray.AddSeparator()
	mReload := systray.AddMenuItem("Reload Config", "Re-read the config file")
	mExport := systray.AddMenuItem("Export History", "Write the history as CSV")
	mClear := systray.AddMenuItem("Clear History", "Delete all stored transcriptions")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit Murmur")

	if err := buildComponents(mStatus); err != nil {
		slog.Error("initialize", "error", err)
		rt.notif = notify.New(true)
		rt.notif.Error("Murmur failed to start: " + err.Error())
		systray.Quit()
		return
	}

	audio.CleanupArtifacts("", time.Hour)

	go func() {
		for {
			select {
			case <-mReload.ClickedCh:
				reloadConfig()
			case <-mExport.ClickedCh:
				exportHistory()
			case <-mClear.ClickedCh:
				clearHistory()
			case <-mQuit.ClickedCh:
				systray.Quit()
				return
			}
		}
	}()
}

func onExit() {
	if rt.controller != nil {
		rt.controller.Stop()
	}
	if rt.dictator != nil {
		rt.dictator.Shutdown()
	}
	if rt.transcribe != nil {
		rt.transcribe.Close()
	}
	if rt.hist != nil {
		rt.hist.Close()
	}
	slog.Info("murmur stopped")
}

func buildComponents(mStatus *systray.MenuItem) error {
	cfg := rt.cfg

	spec, err := hotkey.ParseSpec(cfg.Hotkey.Toggle)
	if err != nil {
		return fmt.Errorf("parse hotkey: %w", err)
	}

	capture, err := audio.New(audio.Config{
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
		Device:     cfg.Audio.Device,
	})
	if err != nil {
		return fmt.Errorf("init audio: %w", err)
	}
	rt.capture = capture

	transcriber, err := stt.New(sttConfig(cfg))
	if err != nil {
		// A missing binary or model is reported but not fatal; the
		// user can install it and reload.
		if errors.Is(err, stt.ErrNotReady) {
			slog.Warn("transcription engine not ready", "error", err)
		} else {
			return fmt.Errorf("init transcriber: %w", err)
		}
	}
	rt.transcribe = transcriber

	dataDir, err := config.DataDir()
	if err != nil {
		return err
	}
	hist, err := history.Open(filepath.Join(dataDir, "history.db"))
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	rt.hist = hist

	rt.notif = notify.New(cfg.UI.ShowNotifications)
	injector := inject.New(inject.Options{
		UseClipboard:      cfg.UI.UseClipboard,
		PreserveClipboard: cfg.UI.PreserveClipboard,
	})

	rt.dictator = app.New(
		app.Options{Language: cfg.Whisper.Language},
		capture, transcriber, injector, hist, rt.notif,
		func(s app.State) { updateTray(mStatus, s) },
	)

	rt.controller = hotkey.NewController(spec, rt.dictator)
	rt.controller.SetStateQuerier(rt.dictator)
	if err := rt.controller.Start(); err != nil {
		return fmt.Errorf("start hotkey listener: %w", err)
	}

	slog.Info("ready", "hotkey", spec.String(), "provider", cfg.Whisper.Provider)
	return nil
}

func sttConfig(cfg *config.Config) stt.Config {
	return stt.Config{
		Provider:  cfg.Whisper.Provider,
		ModelSize: cfg.Whisper.ModelSize,
		APIKey:    cfg.Whisper.APIKey,
		BaseURL:   cfg.Whisper.BaseURL,
	}
}

func updateTray(mStatus *systray.MenuItem, s app.State) {
	switch s {
	case app.StateRecording:
		systray.SetIcon(iconRecording)
		mStatus.SetTitle("Recording...")
	case app.StateTranscribing:
		systray.SetIcon(iconTranscribing)
		mStatus.SetTitle("Transcribing...")
	default:
		systray.SetIcon(iconIdle)
		mStatus.SetTitle("Idle")
	}
}

// reloadConfig re-reads the config file and applies the new hotkey. A
// reload while a dictation cycle is running is rejected.
func reloadConfig() {
	cfg, err := config.Load(rt.configPath)
	if err != nil {
		slog.Error("reload config", "error", err)
		rt.notif.Error("Config reload failed: " + err.Error())
		return
	}

	spec, err := hotkey.ParseSpec(cfg.Hotkey.Toggle)
	if err != nil {
		slog.Error("reload hotkey", "error", err)
		rt.notif.Error("Invalid hotkey in config: " + err.Error())
		return
	}

	if err := rt.controller.Reload(spec); err != nil {
		if errors.Is(err, hotkey.ErrBusy) {
			rt.notif.Info("Busy, finish dictating before reloading")
		} else {
			slog.Error("reload hotkey listener", "error", err)
			rt.notif.Error("Hotkey reload failed: " + err.Error())
		}
		return
	}

	rt.cfg = cfg
	// The dictator holds the same Notifier, so flip the flag in place.
	rt.notif.SetEnabled(cfg.UI.ShowNotifications)
	slog.Info("config reloaded", "hotkey", spec.String())
	rt.notif.Info("Config reloaded, hotkey is " + spec.String())
}

func exportHistory() {
	dataDir, err := config.DataDir()
	if err != nil {
		slog.Error("export history", "error", err)
		return
	}
	path := filepath.Join(dataDir, "history_"+time.Now().Format("20060102_150405")+".csv")

	f, err := os.Create(path)
	if err != nil {
		slog.Error("export history", "error", err)
		rt.notif.Error("Export failed: " + err.Error())
		return
	}
	defer f.Close()

	if err := rt.hist.Export(f); err != nil {
		slog.Error("export history", "error", err)
		rt.notif.Error("Export failed: " + err.Error())
		return
	}
	slog.Info("history exported", "path", path)
	rt.notif.Info("History exported to " + path)
}

func clearHistory() {
	if err := rt.hist.Clear(); err != nil {
		slog.Error("clear history", "error", err)
		rt.notif.Error("Clear failed: " + err.Error())
		return
	}
	slog.Info("history cleared")
	rt.notif.Info("History cleared")
}

// setupLogging writes structured logs to stderr and a per-user file.
func setupLogging() func() {
	w := io.Writer(os.Stderr)
	closeFn := func() {}

	if dir, err := config.DataDir(); err == nil {
		path := filepath.Join(dir, "murmur.log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			w = io.MultiWriter(os.Stderr, f)
			closeFn = func() { f.Close() }
		}
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})))
	return closeFn
}
