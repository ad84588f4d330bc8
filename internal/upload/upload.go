// Package upload implements the Upload Coordinator (C4) — the resumable
// chunked upload state machine described in §4.4. It is the largest and
// most failure-sensitive component of the service.
package upload

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/marktennyson/nextbrowse-sub001/internal/apperr"
	"github.com/marktennyson/nextbrowse-sub001/internal/chunkstore"
	"github.com/marktennyson/nextbrowse-sub001/internal/pathgate"
)

// fingerprintPattern is the whitelist §6/§9 require before an opaque
// client-supplied fingerprint is used as part of a filename.
var fingerprintPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

// ValidFingerprint reports whether fp is safe to use as a filename
// component.
func ValidFingerprint(fp string) bool {
	return fingerprintPattern.MatchString(fp)
}

// OutcomeKind distinguishes the three results PutChunk can produce.
type OutcomeKind int

const (
	Progress OutcomeKind = iota
	Completed
	Conflict
)

// Outcome is the result of PutChunk.
type Outcome struct {
	Kind     OutcomeKind
	Received int    // Progress: chunks received so far
	Total    int    // Progress: total chunks declared
	FileName string // Completed / Conflict: the final file name
}

// Status is the result of StatusOf.
type Status struct {
	UploadedChunks []int
	CanResume      bool
}

// Coordinator drives the resumable upload state machine. One Coordinator
// is shared by every request handler; its internal assembly-lock pool
// makes concurrent chunk arrivals for the same fingerprint safe per §5.
type Coordinator struct {
	gate   *pathgate.Gate
	chunks *chunkstore.Store
	locks  *assemblyLocks
	logger *slog.Logger
}

// New creates a Coordinator.
func New(gate *pathgate.Gate, chunks *chunkstore.Store, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		gate:   gate,
		chunks: chunks,
		locks:  newAssemblyLocks(),
		logger: logger,
	}
}

// StatusOf reports which chunk indices are already on disk for fingerprint
// under targetDirLogical, per §4.4(1). It takes no chunkSize/totalChunks;
// the HTTP handler accepts those request fields and ignores them.
func (c *Coordinator) StatusOf(fingerprint, targetDirLogical string) (Status, error) {
	if !ValidFingerprint(fingerprint) {
		return Status{}, apperr.New(apperr.BadRequest, "invalid fingerprint")
	}
	targetDir, err := c.gate.Resolve(targetDirLogical)
	if err != nil {
		return Status{}, err
	}
	indices, err := c.chunks.ListChunkIndices(targetDir, fingerprint)
	if err != nil {
		return Status{}, err
	}
	if indices == nil {
		indices = []int{}
	}
	return Status{UploadedChunks: indices, CanResume: true}, nil
}

// PutChunk implements §4.4(2): accept one chunk, and if it is the final
// missing one, assemble the file. See §4.4 for the full algorithm and its
// concurrency contract. replace is honored only at assembly time: an
// existing file at the final name is left untouched until every chunk has
// arrived, and is then overwritten only if replace is true.
func (c *Coordinator) PutChunk(fingerprint, fileName, targetDirLogical string, chunkIndex, totalChunks int, data []byte, replace bool) (Outcome, error) {
	if !ValidFingerprint(fingerprint) {
		return Outcome{}, apperr.New(apperr.BadRequest, "invalid fingerprint")
	}
	if fileName == "" {
		return Outcome{}, apperr.New(apperr.BadRequest, "fileName is required")
	}
	if totalChunks <= 0 {
		return Outcome{}, apperr.New(apperr.BadRequest, "totalChunks must be > 0")
	}
	if chunkIndex < 0 || chunkIndex >= totalChunks {
		return Outcome{}, apperr.New(apperr.BadRequest, "chunkIndex out of range")
	}
	if data == nil {
		return Outcome{}, apperr.New(apperr.BadRequest, "chunk body is required")
	}

	targetDir, err := c.gate.Resolve(targetDirLogical)
	if err != nil {
		return Outcome{}, err
	}
	if err := os.MkdirAll(targetDir, 0o750); err != nil {
		return Outcome{}, apperr.Wrap(apperr.Internal, "create target directory", err)
	}

	if err := c.chunks.WriteChunk(targetDir, fingerprint, chunkIndex, data); err != nil {
		return Outcome{}, err
	}

	indices, err := c.chunks.ListChunkIndices(targetDir, fingerprint)
	if err != nil {
		return Outcome{}, err
	}
	if len(indices) < totalChunks {
		return Outcome{Kind: Progress, Received: len(indices), Total: totalChunks}, nil
	}

	// All indices observed as present — attempt assembly. §4.4/§5: two
	// concurrent chunk handlers may both reach here for the same
	// fingerprint; the assembly lock ensures only one actually assembles.
	unlock := c.locks.lock(targetDir, fingerprint)
	defer unlock()

	// Re-check under the lock: the scratch state or final file may have
	// changed while we were waiting (a racing handler may have already
	// assembled and purged). Treat "no chunks left, file now exists" as
	// the success every loser of the race should observe.
	finalAbs := filepath.Join(targetDir, fileName)
	indices, err = c.chunks.ListChunkIndices(targetDir, fingerprint)
	if err != nil {
		return Outcome{}, err
	}
	if len(indices) < totalChunks {
		if _, statErr := os.Stat(finalAbs); statErr == nil {
			return Outcome{Kind: Completed, FileName: fileName}, nil
		}
		return Outcome{Kind: Progress, Received: len(indices), Total: totalChunks}, nil
	}

	return c.assemble(targetDir, fingerprint, fileName, finalAbs, totalChunks, replace)
}

// assemble performs §4.4 step (d): build the final file from ordered
// chunks, using a temp-name-then-rename so concurrent readers never see a
// partial final file, then purges the scratch state. The caller holds the
// per-(targetDir, fingerprint) assembly lock.
func (c *Coordinator) assemble(targetDir, fingerprint, fileName, finalAbs string, totalChunks int, replace bool) (Outcome, error) {
	if _, err := os.Stat(finalAbs); err == nil {
		if !replace {
			if purgeErr := c.chunks.Purge(targetDir, fingerprint); purgeErr != nil && c.logger != nil {
				c.logger.Warn("purge after conflict failed", "fingerprint", fingerprint, "err", purgeErr)
			}
			return Outcome{Kind: Conflict, FileName: fileName}, nil
		}
		// replace=true is honored only here, at assembly time — never
		// before all chunks have arrived (§9 open question, resolved).
	}

	tmpAbs := finalAbs + ".assembling"
	out, err := os.OpenFile(tmpAbs, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return Outcome{}, apperr.Wrap(apperr.AssemblyFailed, "open assembly temp file", err)
	}

	if failedAt, err := c.appendChunksInOrder(out, targetDir, fingerprint, totalChunks); err != nil {
		out.Close()
		os.Remove(tmpAbs) //nolint:errcheck
		if c.logger != nil {
			c.logger.Error("assembly failed", "fingerprint", fingerprint, "chunk_index", failedAt, "err", err)
		}
		// Remaining chunks are left in place so the client may retry.
		return Outcome{}, apperr.Wrap(apperr.AssemblyFailed, "assemble chunks", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpAbs) //nolint:errcheck
		return Outcome{}, apperr.Wrap(apperr.AssemblyFailed, "flush assembled file", err)
	}

	if replace {
		os.Remove(finalAbs) //nolint:errcheck
	}
	if err := os.Rename(tmpAbs, finalAbs); err != nil {
		os.Remove(tmpAbs) //nolint:errcheck
		return Outcome{}, apperr.Wrap(apperr.AssemblyFailed, "publish assembled file", err)
	}

	if err := c.chunks.Purge(targetDir, fingerprint); err != nil && c.logger != nil {
		c.logger.Warn("purge after successful assembly failed", "fingerprint", fingerprint, "err", err)
	}

	if c.logger != nil {
		c.logger.Info("chunked upload assembled", "fingerprint", fingerprint, "file", fileName, "chunks", totalChunks)
	}
	return Outcome{Kind: Completed, FileName: fileName}, nil
}

// appendChunksInOrder streams chunk 0..totalChunks-1 into w, in order,
// unlinking each chunk file immediately after it is appended — mirroring
// the teacher's CompleteUpload, which reads each part once and discards it
// as soon as its bytes are committed. On failure it returns the index of
// the chunk being processed when the error occurred, for logging.
func (c *Coordinator) appendChunksInOrder(w io.Writer, targetDir, fingerprint string, totalChunks int) (failedAt int, err error) {
	for i := 0; i < totalChunks; i++ {
		data, err := c.chunks.ReadChunk(targetDir, fingerprint, i)
		if err != nil {
			return i, err
		}
		if _, err := w.Write(data); err != nil {
			return i, err
		}
		if err := c.chunks.DeleteChunk(targetDir, fingerprint, i); err != nil {
			return i, err
		}
	}
	return -1, nil
}

// Cancel best-effort purges all scratch state for fingerprint. Never fails
// loudly on missing state, per §4.4(3).
func (c *Coordinator) Cancel(fingerprint, targetDirLogical string) error {
	if !ValidFingerprint(fingerprint) {
		return apperr.New(apperr.BadRequest, "invalid fingerprint")
	}
	targetDir, err := c.gate.Resolve(targetDirLogical)
	if err != nil {
		return err
	}
	if err := c.chunks.Purge(targetDir, fingerprint); err != nil {
		if c.logger != nil {
			c.logger.Warn("cancel: purge failed", "fingerprint", fingerprint, "err", err)
		}
		return nil
	}
	return nil
}
