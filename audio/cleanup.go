package audio

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const artifactPrefix = "murmur_rec_"

// CleanupArtifacts removes recording artifacts in dir older than maxAge.
// Run at startup to sweep files left behind by a crashed session.
func CleanupArtifacts(dir string, maxAge time.Duration) {
	if dir == "" {
		dir = os.TempDir()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("scan temp dir", "dir", dir, "error", err)
		return
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, artifactPrefix) || !strings.HasSuffix(name, ".wav") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			slog.Warn("remove stale artifact", "file", name, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		slog.Info("removed stale recordings", "count", removed)
	}
}
