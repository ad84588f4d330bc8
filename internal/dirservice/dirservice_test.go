package dirservice_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/marktennyson/nextbrowse-sub001/internal/apperr"
	"github.com/marktennyson/nextbrowse-sub001/internal/dirservice"
	"github.com/marktennyson/nextbrowse-sub001/internal/pathgate"
)

func newTestService(t *testing.T) (*dirservice.Service, string) {
	t.Helper()
	root := t.TempDir()
	g, err := pathgate.New(root)
	if err != nil {
		t.Fatalf("pathgate.New: %v", err)
	}
	return dirservice.New(g, "/files", "", nil), root
}

func TestMkdirAndDelete(t *testing.T) {
	s, _ := newTestService(t)

	if err := s.Mkdir("/docs"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := s.Mkdir("/docs"); !apperr.Is(err, apperr.AlreadyExists) {
		t.Errorf("Mkdir on existing dir = %v, want AlreadyExists", err)
	}

	if err := s.Delete("/docs"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete("/docs"); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("Delete on missing = %v, want NotFound", err)
	}
}

func TestMkdirOntoFileConflicts(t *testing.T) {
	s, _ := newTestService(t)
	if _, _, err := s.CreateEmpty("/a", []byte("x")); err != nil {
		t.Fatalf("CreateEmpty: %v", err)
	}
	if err := s.Mkdir("/a"); !apperr.Is(err, apperr.Conflict) {
		t.Errorf("Mkdir onto file = %v, want Conflict", err)
	}
}

func TestCreateEmptyAndReadTextRoundTrip(t *testing.T) {
	s, _ := newTestService(t)

	want := "hello world"
	size, _, err := s.CreateEmpty("/note.txt", []byte(want))
	if err != nil {
		t.Fatalf("CreateEmpty: %v", err)
	}
	if size != int64(len(want)) {
		t.Errorf("size = %d, want %d", size, len(want))
	}

	content, gotSize, _, err := s.ReadText("/note.txt")
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	if content != want {
		t.Errorf("content = %q, want %q", content, want)
	}
	if gotSize != size {
		t.Errorf("ReadText size = %d, want %d", gotSize, size)
	}
}

func TestCreateEmptyAlreadyExists(t *testing.T) {
	s, _ := newTestService(t)
	if _, _, err := s.CreateEmpty("/f", nil); err != nil {
		t.Fatalf("CreateEmpty: %v", err)
	}
	if _, _, err := s.CreateEmpty("/f", nil); !apperr.Is(err, apperr.AlreadyExists) {
		t.Errorf("second CreateEmpty = %v, want AlreadyExists", err)
	}
}

func TestReadTextOnDirectoryIsADirectory(t *testing.T) {
	s, _ := newTestService(t)
	if err := s.Mkdir("/dir"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if _, _, _, err := s.ReadText("/dir"); !apperr.Is(err, apperr.IsADirectory) {
		t.Errorf("ReadText(dir) = %v, want IsADirectory", err)
	}
}

func TestMoveRoundTrip(t *testing.T) {
	s, _ := newTestService(t)
	if _, _, err := s.CreateEmpty("/a.txt", []byte("payload")); err != nil {
		t.Fatalf("CreateEmpty: %v", err)
	}

	if err := s.Move("/a.txt", "/b.txt"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if err := s.Move("/b.txt", "/a.txt"); err != nil {
		t.Fatalf("Move back: %v", err)
	}
	content, _, _, err := s.ReadText("/a.txt")
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	if content != "payload" {
		t.Errorf("content = %q after round trip", content)
	}
}

func TestMoveIntoExistingDestinationFails(t *testing.T) {
	s, _ := newTestService(t)
	s.CreateEmpty("/a.txt", []byte("1")) //nolint:errcheck
	s.CreateEmpty("/b.txt", []byte("2")) //nolint:errcheck

	if err := s.Move("/a.txt", "/b.txt"); !apperr.Is(err, apperr.AlreadyExists) {
		t.Errorf("Move onto existing = %v, want AlreadyExists", err)
	}
}

func TestCopyDirectoryRecursive(t *testing.T) {
	s, root := newTestService(t)
	if err := s.Mkdir("/src/sub"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if _, _, err := s.CreateEmpty("/src/a.txt", []byte("A")); err != nil {
		t.Fatalf("CreateEmpty: %v", err)
	}
	if _, _, err := s.CreateEmpty("/src/sub/b.txt", []byte("B")); err != nil {
		t.Fatalf("CreateEmpty: %v", err)
	}

	if err := s.Copy("/src", "/dst"); err != nil {
		t.Fatalf("Copy: %v", err)
	}

	for _, p := range []string{
		filepath.Join(root, "src", "a.txt"),
		filepath.Join(root, "dst", "a.txt"),
		filepath.Join(root, "dst", "sub", "b.txt"),
	} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
		}
	}
}

func TestListSortsDirsFirstThenNatural(t *testing.T) {
	s, _ := newTestService(t)
	for _, name := range []string{"/file10.txt", "/file2.txt", "/Banana", "/apple"} {
		if _, _, err := s.CreateEmpty(name, nil); err != nil {
			t.Fatalf("CreateEmpty(%s): %v", name, err)
		}
	}
	if err := s.Mkdir("/zzz-dir"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	listing, err := s.List("/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	var names []string
	for _, it := range listing.Items {
		names = append(names, it.Name)
	}
	want := []string{"zzz-dir", "apple", "Banana", "file2.txt", "file10.txt"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("sort order mismatch (-want +got):\n%s", diff)
	}
}

func TestListFileURLBuilt(t *testing.T) {
	s, _ := newTestService(t)
	if _, _, err := s.CreateEmpty("/doc.txt", []byte("x")); err != nil {
		t.Fatalf("CreateEmpty: %v", err)
	}
	listing, err := s.List("/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listing.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(listing.Items))
	}
	if want := "/files/doc.txt"; listing.Items[0].URL != want {
		t.Errorf("URL = %q, want %q", listing.Items[0].URL, want)
	}
}

func TestListOnMissingDirectoryIsNotFound(t *testing.T) {
	s, _ := newTestService(t)
	if _, err := s.List("/missing"); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("List(missing) = %v, want NotFound", err)
	}
}

func TestListOnFileIsConflict(t *testing.T) {
	s, _ := newTestService(t)
	if _, _, err := s.CreateEmpty("/f.txt", []byte("x")); err != nil {
		t.Fatalf("CreateEmpty: %v", err)
	}
	if _, err := s.List("/f.txt"); !apperr.Is(err, apperr.Conflict) {
		t.Errorf("List(file) = %v, want Conflict", err)
	}
}
