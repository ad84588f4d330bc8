// Package dirservice implements the Directory Service (C2): listing,
// stat, create, delete, move, and copy of filesystem entries rooted
// through a pathgate.Gate.
package dirservice

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/marktennyson/nextbrowse-sub001/internal/apperr"
	"github.com/marktennyson/nextbrowse-sub001/internal/pathgate"
)

// Kind mirrors §3's DirectoryEntry.kind.
type Kind string

const (
	KindFile Kind = "file"
	KindDir  Kind = "dir"
)

// Entry is §3's DirectoryEntry.
type Entry struct {
	Name  string `json:"name"`
	Kind  Kind   `json:"kind"`
	Size  *int64 `json:"size,omitempty"`
	Mtime int64  `json:"mtime"`
	URL   string `json:"url,omitempty"`
}

// Listing is the result of List: the normalized path that was listed plus
// its entries, sorted per §3 (directories first, then files; each group
// natural-number-aware case-insensitive ascending by name).
type Listing struct {
	Path  string  `json:"path"`
	Items []Entry `json:"items"`
}

// Service implements C2 against a fixed storage root.
type Service struct {
	gate           *pathgate.Gate
	publicBase     string
	acceleratorURL string // optional §4.2 listing accelerator base URL; "" disables it
	httpClient     *http.Client
	logger         *slog.Logger
}

// New creates a Directory Service. acceleratorURL may be empty to disable
// the §4.2 fast path entirely.
func New(gate *pathgate.Gate, publicBase, acceleratorURL string, logger *slog.Logger) *Service {
	return &Service{
		gate:           gate,
		publicBase:     strings.TrimRight(publicBase, "/"),
		acceleratorURL: strings.TrimRight(acceleratorURL, "/"),
		httpClient:     &http.Client{Timeout: 5 * time.Second},
		logger:         logger,
	}
}

// List enumerates logical's contents. It first tries the §4.2 listing
// accelerator (if configured); on any transport error, non-2xx status, or
// unparsable body it falls back to the local readdir path. Both paths
// produce observably identical Listing values.
func (s *Service) List(logical string) (Listing, error) {
	if s.acceleratorURL != "" {
		// Reject traversal before asking the accelerator, exactly as the
		// local path does.
		if _, err := s.gate.Resolve(logical); err != nil {
			return Listing{}, err
		}
		if listing, ok := s.tryAccelerator(logical); ok {
			return listing, nil
		}
	}
	return s.listLocal(logical)
}

func (s *Service) listLocal(logical string) (Listing, error) {
	abs, err := s.gate.Resolve(logical)
	if err != nil {
		return Listing{}, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return Listing{}, apperr.New(apperr.NotFound, logical)
		}
		return Listing{}, apperr.Wrap(apperr.Internal, "stat failed", err)
	}
	if !info.IsDir() {
		// A file in place of the requested directory — wrong kind at this
		// path, same family as mkdir-onto-a-file (§7 Conflict).
		return Listing{}, apperr.New(apperr.Conflict, logical+" is not a directory")
	}

	des, err := os.ReadDir(abs)
	if err != nil {
		if os.IsPermission(err) {
			return Listing{}, apperr.Wrap(apperr.Internal, "permission denied", err)
		}
		return Listing{}, apperr.Wrap(apperr.Internal, "readdir failed", err)
	}

	norm := pathgate.Normalize(logical)
	items := make([]Entry, 0, len(des))
	for _, de := range des {
		fi, err := de.Info()
		if err != nil {
			continue
		}
		items = append(items, s.toEntry(norm, fi))
	}
	sortEntries(items)

	return Listing{Path: norm, Items: items}, nil
}

func (s *Service) toEntry(parentLogical string, fi os.FileInfo) Entry {
	e := Entry{
		Name:  fi.Name(),
		Mtime: fi.ModTime().UnixMilli(),
	}
	if fi.IsDir() {
		e.Kind = KindDir
	} else {
		e.Kind = KindFile
		size := fi.Size()
		e.Size = &size
		e.URL = s.fileURL(parentLogical, fi.Name())
	}
	return e
}

// fileURL builds a single "/"-joined URL into the public files base, per
// §4.2: publicBase + logical + "/" + name.
func (s *Service) fileURL(parentLogical, name string) string {
	logical := pathgate.Join(parentLogical, name)
	return s.publicBase + pathgate.EncodeForURL(logical)
}

// acceleratorEntry is the shape the external listing accelerator returns:
// either a bare JSON array of these, or a single-key object whose value is
// such an array.
type acceleratorEntry struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Mtime int64  `json:"mtime"`
	Size  *int64 `json:"size,omitempty"`
}

func (s *Service) tryAccelerator(logical string) (Listing, bool) {
	u := s.acceleratorURL + pathgate.EncodeForURL(pathgate.Normalize(logical))
	resp, err := s.httpClient.Get(u)
	if err != nil {
		s.logAcceleratorFallback(logical, "transport error", err)
		return Listing{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logAcceleratorFallback(logical, "non-2xx status", fmt.Errorf("status %d", resp.StatusCode))
		return Listing{}, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		s.logAcceleratorFallback(logical, "body read error", err)
		return Listing{}, false
	}

	entries, ok := parseAcceleratorBody(body)
	if !ok {
		s.logAcceleratorFallback(logical, "unparsable body", fmt.Errorf("%s", humanize.Bytes(uint64(len(body)))))
		return Listing{}, false
	}

	norm := pathgate.Normalize(logical)
	items := make([]Entry, 0, len(entries))
	for _, ae := range entries {
		if ae.Name == "." || ae.Name == ".." {
			continue
		}
		e := Entry{Name: ae.Name, Mtime: ae.Mtime}
		if ae.Type == "dir" {
			e.Kind = KindDir
		} else {
			e.Kind = KindFile
			if ae.Size != nil {
				sz := *ae.Size
				e.Size = &sz
			}
			e.URL = s.fileURL(norm, ae.Name)
		}
		items = append(items, e)
	}
	sortEntries(items)

	return Listing{Path: norm, Items: items}, true
}

// logAcceleratorFallback records why the §4.2 fast path was skipped for this
// request. A nil logger (e.g. in unit tests) is a safe no-op.
func (s *Service) logAcceleratorFallback(logical, reason string, cause error) {
	if s.logger == nil {
		return
	}
	s.logger.Warn("listing accelerator miss — falling back to local readdir",
		"path", logical, "reason", reason, "err", cause)
}

// parseAcceleratorBody accepts either a bare array or a single-key object
// whose value is such an array, per §4.2.
func parseAcceleratorBody(body []byte) ([]acceleratorEntry, bool) {
	var arr []acceleratorEntry
	if err := json.Unmarshal(body, &arr); err == nil {
		return arr, true
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || len(obj) != 1 {
		return nil, false
	}
	for _, raw := range obj {
		if err := json.Unmarshal(raw, &arr); err != nil {
			return nil, false
		}
		return arr, true
	}
	return nil, false
}

// sortEntries sorts per §3: directories first, then files; within a group,
// natural-number-aware case-insensitive ascending by name.
func sortEntries(items []Entry) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Kind != items[j].Kind {
			return items[i].Kind == KindDir
		}
		return naturalLess(items[i].Name, items[j].Name)
	})
}

// naturalLess compares a and b case-insensitively, treating runs of digits
// as numbers so "file2" sorts before "file10".
func naturalLess(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	ai, bi := 0, 0
	for ai < len(a) && bi < len(b) {
		ac, bc := a[ai], b[bi]
		if isDigit(ac) && isDigit(bc) {
			as, bs := ai, bi
			for ai < len(a) && isDigit(a[ai]) {
				ai++
			}
			for bi < len(b) && isDigit(b[bi]) {
				bi++
			}
			an := strings.TrimLeft(a[as:ai], "0")
			bn := strings.TrimLeft(b[bs:bi], "0")
			if len(an) != len(bn) {
				return len(an) < len(bn)
			}
			if an != bn {
				return an < bn
			}
			continue
		}
		if ac != bc {
			return ac < bc
		}
		ai++
		bi++
	}
	return len(a)-ai < len(b)-bi
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// Mkdir creates logical as a directory. AlreadyExists if it is already a
// directory; Conflict if a file occupies the name.
func (s *Service) Mkdir(logical string) error {
	abs, err := s.gate.Resolve(logical)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err == nil {
		if info.IsDir() {
			return apperr.New(apperr.AlreadyExists, logical)
		}
		return apperr.New(apperr.Conflict, logical)
	}
	if !os.IsNotExist(err) {
		return apperr.Wrap(apperr.Internal, "stat failed", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return apperr.Wrap(apperr.Internal, "mkdir failed", err)
	}
	return nil
}

// Delete removes logical recursively. NotFound if absent.
func (s *Service) Delete(logical string) error {
	abs, err := s.gate.Resolve(logical)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return apperr.New(apperr.NotFound, logical)
		}
		return apperr.Wrap(apperr.Internal, "stat failed", err)
	}
	if err := os.RemoveAll(abs); err != nil {
		return apperr.Wrap(apperr.Internal, "delete failed", err)
	}
	return nil
}

// Move renames src to dst. AlreadyExists if dst exists.
func (s *Service) Move(srcLogical, dstLogical string) error {
	absSrc, err := s.gate.Resolve(srcLogical)
	if err != nil {
		return err
	}
	absDst, err := s.gate.Resolve(dstLogical)
	if err != nil {
		return err
	}
	if _, err := os.Stat(absSrc); err != nil {
		if os.IsNotExist(err) {
			return apperr.New(apperr.NotFound, srcLogical)
		}
		return apperr.Wrap(apperr.Internal, "stat failed", err)
	}
	if _, err := os.Stat(absDst); err == nil {
		return apperr.New(apperr.AlreadyExists, dstLogical)
	}
	if err := os.MkdirAll(filepath.Dir(absDst), 0o750); err != nil {
		return apperr.Wrap(apperr.Internal, "mkdir parent failed", err)
	}
	if err := os.Rename(absSrc, absDst); err != nil {
		return apperr.Wrap(apperr.Internal, "rename failed", err)
	}
	return nil
}

// Copy recursively copies src to dst, content only (no ownership/xattrs).
func (s *Service) Copy(srcLogical, dstLogical string) error {
	absSrc, err := s.gate.Resolve(srcLogical)
	if err != nil {
		return err
	}
	absDst, err := s.gate.Resolve(dstLogical)
	if err != nil {
		return err
	}
	info, err := os.Stat(absSrc)
	if err != nil {
		if os.IsNotExist(err) {
			return apperr.New(apperr.NotFound, srcLogical)
		}
		return apperr.Wrap(apperr.Internal, "stat failed", err)
	}
	if _, err := os.Stat(absDst); err == nil {
		return apperr.New(apperr.AlreadyExists, dstLogical)
	}
	if err := os.MkdirAll(filepath.Dir(absDst), 0o750); err != nil {
		return apperr.Wrap(apperr.Internal, "mkdir parent failed", err)
	}
	if info.IsDir() {
		if err := copyTree(absSrc, absDst); err != nil {
			return apperr.Wrap(apperr.Internal, "copy failed", err)
		}
		return nil
	}
	if err := copyFile(absSrc, absDst, info.Mode()); err != nil {
		return apperr.Wrap(apperr.Internal, "copy failed", err)
	}
	return nil
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o750)
		}
		return copyFile(path, target, info.Mode())
	})
}

// copyFile streams src to dst via a temp-file + atomic rename, the same
// pattern the teacher's store.Local.Write used for single writes.
func copyFile(src, dst string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

// ReadText reads logical's entire content as UTF-8. IsADirectory if logical
// names a directory.
func (s *Service) ReadText(logical string) (content string, size int64, mtime int64, err error) {
	abs, err := s.gate.Resolve(logical)
	if err != nil {
		return "", 0, 0, err
	}
	info, statErr := os.Stat(abs)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return "", 0, 0, apperr.New(apperr.NotFound, logical)
		}
		return "", 0, 0, apperr.Wrap(apperr.Internal, "stat failed", statErr)
	}
	if info.IsDir() {
		return "", 0, 0, apperr.New(apperr.IsADirectory, logical)
	}
	b, err := os.ReadFile(abs)
	if err != nil {
		return "", 0, 0, apperr.Wrap(apperr.Internal, "read failed", err)
	}
	return string(b), info.Size(), info.ModTime().UnixMilli(), nil
}

// CreateEmpty writes content (default empty) to a new file at logical.
// AlreadyExists if logical is already occupied.
func (s *Service) CreateEmpty(logical string, content []byte) (size int64, mtime int64, err error) {
	abs, err := s.gate.Resolve(logical)
	if err != nil {
		return 0, 0, err
	}
	if _, statErr := os.Stat(abs); statErr == nil {
		return 0, 0, apperr.New(apperr.AlreadyExists, logical)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return 0, 0, apperr.Wrap(apperr.Internal, "mkdir parent failed", err)
	}
	f, err := os.OpenFile(abs, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o640)
	if err != nil {
		if os.IsExist(err) {
			return 0, 0, apperr.New(apperr.AlreadyExists, logical)
		}
		return 0, 0, apperr.Wrap(apperr.Internal, "create failed", err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(abs)
		return 0, 0, apperr.Wrap(apperr.Internal, "write failed", err)
	}
	if err := f.Close(); err != nil {
		return 0, 0, apperr.Wrap(apperr.Internal, "flush failed", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return 0, 0, apperr.Wrap(apperr.Internal, "stat failed", err)
	}
	return info.Size(), info.ModTime().UnixMilli(), nil
}
