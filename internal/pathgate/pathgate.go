// Package pathgate resolves caller-supplied logical paths into absolute
// filesystem paths rooted at a fixed storage directory, rejecting any
// input that would escape the root.
//
// Every component that touches the filesystem on behalf of a caller-
// supplied path MUST go through Gate.Resolve first — this is the single
// funnel §9 of the spec calls for.
package pathgate

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/marktennyson/nextbrowse-sub001/internal/apperr"
)

// Gate resolves logical paths against a fixed, absolute storage root.
type Gate struct {
	root string
}

// New creates a Gate rooted at root. root is resolved to an absolute path
// once at construction time so every later filepath.Rel containment check
// is stable regardless of process working-directory changes.
func New(root string) (*Gate, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root %q: %w", root, err)
	}
	return &Gate{root: abs}, nil
}

// Root returns the gate's absolute storage root.
func (g *Gate) Root() string { return g.root }

// Resolve turns a logical path (forward-slash rooted, "" or "/" meaning the
// root itself) into an absolute filesystem path strictly inside g.root.
//
// Design, adapted from the teacher's (*Local).abs:
//   - filepath.FromSlash converts any forward slashes to the OS separator
//     first, so Unix-style logical paths behave correctly on Windows.
//   - logical is joined to root BEFORE any Clean runs. Cleaning the
//     logical path in isolation would collapse a leading "/.." against
//     the fake root the logical path is rooted at (filepath.Clean
//     treats "/.." as "/"), silently discarding a traversal attempt
//     instead of rejecting it — filepath.Join applies Clean only to the
//     joined result, so a ".." that climbs above g.root survives into
//     the containment check below.
//   - filepath.Rel(root, joined) confirms the joined, cleaned result is
//     still strictly inside root.
func (g *Gate) Resolve(logical string) (string, error) {
	if logical == "" {
		logical = "/"
	}
	joined := filepath.Join(g.root, filepath.FromSlash(logical))

	rel, err := filepath.Rel(g.root, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", apperr.New(apperr.PathEscaped, fmt.Sprintf("path %q escapes storage root", logical))
	}
	return joined, nil
}

// EncodeForURL percent-encodes each segment of a logical path individually,
// preserving the "/" separators, for use when building URLs into the
// listing accelerator or the public files base.
func EncodeForURL(logical string) string {
	segments := strings.Split(logical, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// Normalize collapses repeated separators and defaults "" to "/", without
// resolving against any root — used to produce a canonical LogicalPath for
// display/comparison purposes (e.g. building a DirectoryEntry's parent path).
func Normalize(logical string) string {
	if logical == "" {
		return "/"
	}
	clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(logical)))
	if !strings.HasPrefix(clean, "/") {
		clean = "/" + clean
	}
	return clean
}

// Join joins a logical parent path and a name into a logical path, always
// using a single "/" separator regardless of trailing slashes on parent.
func Join(parent, name string) string {
	parent = strings.TrimRight(parent, "/")
	if parent == "" {
		return "/" + name
	}
	return parent + "/" + name
}
