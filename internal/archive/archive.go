// Package archive implements the Archive Streamer (C5): synthesizing a ZIP
// of one or more paths on demand and streaming it to an HTTP client without
// ever materializing the whole archive on disk or in memory.
//
// The producer/consumer shape — a goroutine writing into an io.Pipe while
// the request handler copies out of it — mirrors the teacher's original
// chunk assembly pipe. The entry-naming logic is adapted from cs3org/reva's
// archiver manager, which solves the same "one archive from an arbitrary
// file list" problem; each item is named by its own base name, and no
// common parent directory is computed.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/marktennyson/nextbrowse-sub001/internal/apperr"
	"github.com/marktennyson/nextbrowse-sub001/internal/pathgate"
)

// Streamer builds ZIP archives of one or more logical paths.
type Streamer struct {
	gate *pathgate.Gate
}

// New creates a Streamer.
func New(gate *pathgate.Gate) *Streamer {
	return &Streamer{gate: gate}
}

// Result describes the archive about to be streamed, for the handler to
// set response headers before writing begins.
type Result struct {
	FileName string
	Body     io.ReadCloser
}

// SingleItem synthesizes an archive for one logical path. Per §4.5, a
// single item is named "<displayName>.zip". displayName is the base name
// shown to the user, independent of the path's actual last path component
// (callers may rename on the fly). When logical is a directory, its
// contents are written at the top level of the archive (S6: downloading
// "/folder" yields entries "a.txt", "sub/b.txt", not "folder/a.txt") —
// the directory itself is only a naming source for the .zip file, not an
// entry inside it. When logical is a single file, that file is the sole
// top-level entry.
func (s *Streamer) SingleItem(ctx context.Context, logical, displayName string) (Result, error) {
	return s.stream(ctx, []string{logical}, displayName+".zip", true)
}

// Multiple synthesizes an archive containing every path in logicals, each
// nested under its own top-level entry named after its base name. Per
// §4.5, a multi-item archive is named with a timestamp since there is no
// single display name to anchor it to.
func (s *Streamer) Multiple(ctx context.Context, logicals []string, now time.Time) (Result, error) {
	if len(logicals) == 0 {
		return Result{}, apperr.New(apperr.BadRequest, "no paths selected for archive")
	}
	name := fmt.Sprintf("archive-%s.zip", now.UTC().Format("20060102-150405"))
	return s.stream(ctx, logicals, name, false)
}

// stream resolves every logical path, verifies each exists, and starts the
// producer goroutine that walks them into a zip.Writer connected to the
// reader side of an io.Pipe. Closing the returned Result.Body cancels the
// in-flight walk: the producer's next write observes the pipe's read error
// and aborts, releasing any open file handle.
//
// flattenSingleDir is set only by SingleItem: when the (sole) logical path
// resolves to a directory, its entry prefix is "" so its contents land at
// the archive's top level instead of nested under the directory's name.
func (s *Streamer) stream(ctx context.Context, logicals []string, archiveName string, flattenSingleDir bool) (Result, error) {
	type item struct {
		abs   string
		entry string // top-level name this item is nested under in the zip; "" means flattened
	}

	items := make([]item, 0, len(logicals))
	for _, logical := range logicals {
		abs, err := s.gate.Resolve(logical)
		if err != nil {
			return Result{}, err
		}
		info, err := os.Lstat(abs)
		if err != nil {
			if os.IsNotExist(err) {
				return Result{}, apperr.New(apperr.NotFound, "path not found: "+logical)
			}
			return Result{}, apperr.Wrap(apperr.Internal, "stat path", err)
		}
		entry := entryName(logical)
		if flattenSingleDir && info.IsDir() {
			entry = ""
		}
		items = append(items, item{abs: abs, entry: entry})
	}

	pr, pw := io.Pipe()

	go func() {
		zw := zip.NewWriter(pw)
		ctxErr := func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return nil
			}
		}

		for _, it := range items {
			if err := ctxErr(); err != nil {
				pw.CloseWithError(err)
				return
			}
			if err := addTree(zw, it.abs, it.entry, ctxErr); err != nil {
				zw.Close() //nolint:errcheck
				pw.CloseWithError(err)
				return
			}
		}

		if err := zw.Close(); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.Close()
	}()

	return Result{FileName: archiveName, Body: pr}, nil
}

// entryName derives the top-level zip entry name from a logical path: its
// final path component, defaulting to "root" for the storage root itself.
func entryName(logical string) string {
	clean := path.Clean("/" + strings.TrimPrefix(logical, "/"))
	base := path.Base(clean)
	if base == "" || base == "/" || base == "." {
		return "root"
	}
	return base
}

// addTree walks the filesystem tree rooted at abs and writes every file
// and directory into zw under entryPrefix, in deterministic (sorted)
// order so two requests for the same tree produce byte-identical headers.
// An empty entryPrefix flattens abs's own directory entry out of the
// archive — only its children are written, at the archive's top level.
// checkCtx is polled between entries so a cancelled request stops the walk
// promptly instead of finishing an archive nobody will read.
func addTree(zw *zip.Writer, abs, entryPrefix string, checkCtx func() error) error {
	info, err := os.Lstat(abs)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "stat "+abs, err)
	}

	if !info.IsDir() {
		return addFile(zw, abs, entryPrefix, info)
	}

	if entryPrefix != "" {
		if err := addDirHeader(zw, entryPrefix, info); err != nil {
			return err
		}
	}
	return walkDir(zw, abs, entryPrefix, checkCtx)
}

func walkDir(zw *zip.Writer, abs, entryPrefix string, checkCtx func() error) error {
	entries, err := os.ReadDir(abs)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "read dir "+abs, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		if err := checkCtx(); err != nil {
			return err
		}
		childAbs := abs + string(os.PathSeparator) + e.Name()
		childEntry := e.Name()
		if entryPrefix != "" {
			childEntry = entryPrefix + "/" + e.Name()
		}

		info, err := e.Info()
		if err != nil {
			return apperr.Wrap(apperr.Internal, "stat "+childAbs, err)
		}

		if e.IsDir() {
			if err := addDirHeader(zw, childEntry, info); err != nil {
				return err
			}
			if err := walkDir(zw, childAbs, childEntry, checkCtx); err != nil {
				return err
			}
			continue
		}
		if err := addFile(zw, childAbs, childEntry, info); err != nil {
			return err
		}
	}
	return nil
}

func addDirHeader(zw *zip.Writer, entry string, info os.FileInfo) error {
	header := &zip.FileHeader{
		Name:     entry + "/",
		Modified: info.ModTime(),
	}
	header.SetMode(info.Mode())
	_, err := zw.CreateHeader(header)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "write zip directory header", err)
	}
	return nil
}

func addFile(zw *zip.Writer, abs, entry string, info os.FileInfo) error {
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "build zip header", err)
	}
	header.Name = entry
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "write zip file header", err)
	}

	f, err := os.Open(abs)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "open "+abs, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return apperr.Wrap(apperr.Internal, "copy "+abs+" into archive", err)
	}
	return nil
}
