package cleanup_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marktennyson/nextbrowse-sub001/internal/cleanup"
	"github.com/marktennyson/nextbrowse-sub001/internal/chunkstore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func writeChunkAt(t *testing.T, scratchDir, name string, mtime time.Time) {
	t.Helper()
	if err := os.MkdirAll(scratchDir, 0o750); err != nil {
		t.Fatal(err)
	}
	full := filepath.Join(scratchDir, name)
	if err := os.WriteFile(full, []byte("chunk"), 0o640); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(full, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

func TestSweepRemovesOnlyStaleChunks(t *testing.T) {
	root := t.TempDir()
	scratch := filepath.Join(root, "sub", chunkstore.ScratchDirName)

	old := time.Now().Add(-48 * time.Hour)
	fresh := time.Now()

	writeChunkAt(t, scratch, "fp.0", old)
	writeChunkAt(t, scratch, "fp.1", fresh)

	cleanup.Sweep(root, 24*time.Hour, discardLogger())

	if _, err := os.Stat(filepath.Join(scratch, "fp.0")); !os.IsNotExist(err) {
		t.Fatalf("expected stale chunk removed, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(scratch, "fp.1")); err != nil {
		t.Fatalf("expected fresh chunk to survive: %v", err)
	}
}

func TestSweepRemovesEmptiedScratchDir(t *testing.T) {
	root := t.TempDir()
	scratch := filepath.Join(root, "sub", chunkstore.ScratchDirName)

	old := time.Now().Add(-48 * time.Hour)
	writeChunkAt(t, scratch, "fp.0", old)
	writeChunkAt(t, scratch, "fp.1", old)

	cleanup.Sweep(root, 24*time.Hour, discardLogger())

	if _, err := os.Stat(scratch); !os.IsNotExist(err) {
		t.Fatalf("expected scratch dir removed once emptied, stat err = %v", err)
	}
}

func TestSweepFindsNestedScratchDirsAtAnyDepth(t *testing.T) {
	root := t.TempDir()
	scratch := filepath.Join(root, "a", "b", "c", chunkstore.ScratchDirName)
	old := time.Now().Add(-48 * time.Hour)
	writeChunkAt(t, scratch, "fp.0", old)

	cleanup.Sweep(root, 24*time.Hour, discardLogger())

	if _, err := os.Stat(filepath.Join(scratch, "fp.0")); !os.IsNotExist(err) {
		t.Fatalf("expected deeply nested stale chunk removed, stat err = %v", err)
	}
}

func TestSweepOnMissingRootDoesNotPanic(t *testing.T) {
	cleanup.Sweep(filepath.Join(t.TempDir(), "does-not-exist"), time.Hour, discardLogger())
}

func TestRunPeriodicStopsOnContextCancel(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())

	done := cleanup.RunPeriodic(ctx, root, time.Hour, 10*time.Millisecond, discardLogger())
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunPeriodic did not stop after context cancellation")
	}
}
