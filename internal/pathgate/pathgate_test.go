package pathgate_test

import (
	"path/filepath"
	"testing"

	"github.com/marktennyson/nextbrowse-sub001/internal/apperr"
	"github.com/marktennyson/nextbrowse-sub001/internal/pathgate"
)

func newTestGate(t *testing.T) *pathgate.Gate {
	t.Helper()
	g, err := pathgate.New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func TestResolveWithinRoot(t *testing.T) {
	g := newTestGate(t)

	abs, err := g.Resolve("/docs/report.txt")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	rel, err := filepath.Rel(g.Root(), abs)
	if err != nil || rel == ".." {
		t.Fatalf("resolved path %q escaped root %q", abs, g.Root())
	}
}

func TestResolveEmptyDefaultsToRoot(t *testing.T) {
	g := newTestGate(t)

	abs, err := g.Resolve("")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if abs != g.Root() {
		t.Errorf("Resolve(\"\") = %q, want root %q", abs, g.Root())
	}
}

func TestResolveTraversalRejected(t *testing.T) {
	g := newTestGate(t)

	traversals := []string{
		"/../etc/passwd",
		"../../etc/passwd",
		"/docs/../../etc/passwd",
		"/../../../../../../etc/passwd",
	}
	for _, p := range traversals {
		_, err := g.Resolve(p)
		if err == nil {
			t.Errorf("Resolve(%q): expected PathEscaped error, got nil", p)
			continue
		}
		if !apperr.Is(err, apperr.PathEscaped) {
			t.Errorf("Resolve(%q): got kind %v, want PathEscaped", p, err)
		}
	}
}

func TestResolveDotDotThatStaysInside(t *testing.T) {
	// "." and ".." are permitted in input as long as the net result stays
	// inside root — only the resolved location matters (§3 LogicalPath).
	g := newTestGate(t)

	abs, err := g.Resolve("/a/b/../c")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := filepath.Join(g.Root(), "a", "c")
	if abs != want {
		t.Errorf("Resolve(/a/b/../c) = %q, want %q", abs, want)
	}
}

func TestEncodeForURL(t *testing.T) {
	got := pathgate.EncodeForURL("/a b/c%d/e")
	want := "/a%20b/c%25d/e"
	if got != want {
		t.Errorf("EncodeForURL = %q, want %q", got, want)
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"":         "/",
		"/":        "/",
		"//a//b":   "/a/b",
		"a/b":      "/a/b",
		"/a/./b/": "/a/b",
	}
	for in, want := range cases {
		if got := pathgate.Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestJoin(t *testing.T) {
	if got := pathgate.Join("/", "file.txt"); got != "/file.txt" {
		t.Errorf("Join(/, file.txt) = %q", got)
	}
	if got := pathgate.Join("/a/b", "c"); got != "/a/b/c" {
		t.Errorf("Join(/a/b, c) = %q", got)
	}
	if got := pathgate.Join("/a/b/", "c"); got != "/a/b/c" {
		t.Errorf("Join(/a/b/, c) = %q", got)
	}
}
