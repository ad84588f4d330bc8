// Package chunkstore implements the Chunk Store (C3): persisting
// individual upload chunks on disk inside a hidden ".upload-temp" scratch
// subdirectory of whatever directory the upload targets.
//
// Scratch layout, per §4.3: for target directory D and upload F, chunks
// live at D/.upload-temp/F.<i>.
package chunkstore

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/marktennyson/nextbrowse-sub001/internal/apperr"
)

// ScratchDirName is the hidden subdirectory holding in-flight chunk files.
const ScratchDirName = ".upload-temp"

// Store persists chunks under an absolute target directory's scratch dir.
// It performs no path-gate resolution itself — callers pass already-
// resolved absolute directories (the Upload Coordinator resolves the
// target directory through pathgate before calling in).
type Store struct{}

// New creates a Store. Stateless — kept as a type for symmetry with the
// rest of the domain packages and to leave room for future backends.
func New() *Store { return &Store{} }

func scratchDir(targetDir string) string {
	return filepath.Join(targetDir, ScratchDirName)
}

func chunkPath(targetDir, fingerprint string, index int) string {
	return filepath.Join(scratchDir(targetDir), fingerprint+"."+strconv.Itoa(index))
}

// WriteChunk ensures targetDir and its scratch subdirectory exist, then
// writes chunk index for fingerprint. Overwrite is permitted — a retried
// chunk at the same index is idempotent.
func (s *Store) WriteChunk(targetDir, fingerprint string, index int, data []byte) error {
	dir := scratchDir(targetDir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return apperr.Wrap(apperr.Internal, "create scratch dir", err)
	}
	path := chunkPath(targetDir, fingerprint, index)
	// A unique temp name per write, so concurrent retries of the same index
	// never rename each other's temp file away.
	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return apperr.Wrap(apperr.Internal, "write chunk", err)
	}
	tmp := f.Name()
	_, werr := f.Write(data)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Chmod(tmp, 0o640)
	}
	if werr != nil {
		os.Remove(tmp) //nolint:errcheck
		return apperr.Wrap(apperr.Internal, "write chunk", werr)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return apperr.Wrap(apperr.Internal, "commit chunk", err)
	}
	return nil
}

// ListChunkIndices enumerates the scratch directory for fingerprint and
// returns the indices present, sorted ascending. A missing scratch
// directory is reported as an empty (not error) result, per §4.4(1).
func (s *Store) ListChunkIndices(targetDir, fingerprint string) ([]int, error) {
	dir := scratchDir(targetDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.Internal, "read scratch dir", err)
	}

	prefix := fingerprint + "."
	var indices []int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".tmp") {
			continue
		}
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		idxStr := strings.TrimPrefix(name, prefix)
		idx, err := strconv.Atoi(idxStr)
		if err != nil {
			continue // non-numeric trailing component — not a chunk file
		}
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	return indices, nil
}

// ReadChunk opens chunk index for fingerprint.
func (s *Store) ReadChunk(targetDir, fingerprint string, index int) ([]byte, error) {
	data, err := os.ReadFile(chunkPath(targetDir, fingerprint, index))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.New(apperr.NotFound, "chunk not found")
		}
		return nil, apperr.Wrap(apperr.Internal, "read chunk", err)
	}
	return data, nil
}

// DeleteChunk removes chunk index for fingerprint. Silently succeeds if
// already absent.
func (s *Store) DeleteChunk(targetDir, fingerprint string, index int) error {
	if err := os.Remove(chunkPath(targetDir, fingerprint, index)); err != nil && !os.IsNotExist(err) {
		return apperr.Wrap(apperr.Internal, "delete chunk", err)
	}
	return nil
}

// Purge removes all chunks belonging to fingerprint and removes the scratch
// directory itself if it is left empty.
func (s *Store) Purge(targetDir, fingerprint string) error {
	indices, err := s.ListChunkIndices(targetDir, fingerprint)
	if err != nil {
		return err
	}
	for _, idx := range indices {
		if err := s.DeleteChunk(targetDir, fingerprint, idx); err != nil {
			return err
		}
	}

	dir := scratchDir(targetDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperr.Wrap(apperr.Internal, "read scratch dir", err)
	}
	if len(entries) == 0 {
		if err := os.Remove(dir); err != nil && !os.IsNotExist(err) {
			return apperr.Wrap(apperr.Internal, "remove empty scratch dir", err)
		}
	}
	return nil
}
