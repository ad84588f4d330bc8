// Package cleanup reclaims disk space from abandoned chunked uploads.
//
// When a client starts a chunked upload but never finishes it (network
// drop, crash, abandoned tab) without calling the cancel endpoint, its
// chunk files are left behind under a ".upload-temp" scratch directory
// next to the target directory indefinitely — see §8's scratch-directory
// invariant. Sweep walks the storage root for every such directory and
// removes chunk files older than the configured TTL.
package cleanup

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/marktennyson/nextbrowse-sub001/internal/chunkstore"
)

// Sweep walks root for every chunkstore.ScratchDirName directory and
// removes chunk files whose mtime predates ttl. Unlike the teacher's
// flat .uploads/<sessionID> layout, ".upload-temp" directories can appear
// at any depth — one per upload-target directory — so this recurses the
// whole tree rather than reading a single well-known parent.
//
// Safe to call concurrently with active uploads: only chunk files whose
// mtime already predates the cutoff are removed, so an upload that is
// still receiving chunks (recently written files) is left untouched. A
// scratch directory left empty after its stale chunks are removed is
// removed too.
func Sweep(root string, ttl time.Duration, logger *slog.Logger) {
	cutoff := time.Now().Add(-ttl)
	var removedFiles, removedDirs int

	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr
		}
		if !d.IsDir() || d.Name() != chunkstore.ScratchDirName {
			return nil
		}

		entries, readErr := os.ReadDir(path)
		if readErr != nil {
			if logger != nil {
				logger.Warn("cleanup: readdir failed", "dir", path, "err", readErr)
			}
			return filepath.SkipDir
		}

		staleCount := 0
		for _, e := range entries {
			info, infoErr := e.Info()
			if infoErr != nil {
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}
			full := filepath.Join(path, e.Name())
			if rmErr := os.Remove(full); rmErr != nil {
				if logger != nil {
					logger.Warn("cleanup: remove chunk failed", "file", full, "err", rmErr)
				}
				continue
			}
			removedFiles++
			staleCount++
		}

		if staleCount == len(entries) {
			if rmErr := os.Remove(path); rmErr == nil {
				removedDirs++
			}
		}
		return filepath.SkipDir
	})

	if removedFiles > 0 || removedDirs > 0 {
		logger.Info("cleanup: cycle complete", "chunks_removed", removedFiles, "scratch_dirs_removed", removedDirs)
	}
}

// RunPeriodic starts a background goroutine that calls Sweep on every
// interval until ctx is cancelled. A first pass runs immediately at
// startup to flush scratch state left over from a previous crash. The
// returned channel is closed once the goroutine has returned, so callers
// can wait for the in-flight pass to finish during shutdown.
//
// Recommended values: ttl=24h, interval=1h (SCRATCH_TTL_HOURS).
func RunPeriodic(ctx context.Context, root string, ttl, interval time.Duration, logger *slog.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		Sweep(root, ttl, logger)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				Sweep(root, ttl, logger)
			case <-ctx.Done():
				return
			}
		}
	}()
	return done
}
