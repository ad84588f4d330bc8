package share_test

import (
	"testing"
	"time"

	"github.com/marktennyson/nextbrowse-sub001/internal/apperr"
	"github.com/marktennyson/nextbrowse-sub001/internal/share"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newRegistry(t *testing.T) (*share.Registry, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := share.New(clock.now)
	t.Cleanup(func() { r.Close() })
	return r, clock
}

func TestCreateOmitsPasswordButReportsHasPassword(t *testing.T) {
	r, _ := newRegistry(t)
	v, err := r.Create(share.CreateSpec{
		AbsolutePath: "/data/photos",
		Logical:      "/photos",
		Kind:         share.KindDir,
		Password:     "secret",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !v.HasPassword {
		t.Error("HasPassword = false, want true")
	}
	if v.ID == "" {
		t.Error("expected non-empty share ID")
	}
}

func TestCreateWithoutPathIsBadRequest(t *testing.T) {
	r, _ := newRegistry(t)
	_, err := r.Create(share.CreateSpec{})
	if !apperr.Is(err, apperr.BadRequest) {
		t.Errorf("Create({}) = %v, want BadRequest", err)
	}
}

func TestGetReturnsPublicView(t *testing.T) {
	r, _ := newRegistry(t)
	created, _ := r.Create(share.CreateSpec{AbsolutePath: "/data/a.txt", Logical: "/a.txt", Kind: share.KindFile})

	got, err := r.Get(created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Path != "/a.txt" || got.Kind != share.KindFile {
		t.Errorf("Get = %+v, want path=/a.txt kind=file", got)
	}
}

func TestGetOnMissingIsNotFound(t *testing.T) {
	r, _ := newRegistry(t)
	_, err := r.Get("does-not-exist")
	if !apperr.Is(err, apperr.NotFound) {
		t.Errorf("Get(missing) = %v, want NotFound", err)
	}
}

func TestGetOnExpiredIsNotFoundAndRemovesEntry(t *testing.T) {
	r, clock := newRegistry(t)
	created, _ := r.Create(share.CreateSpec{
		AbsolutePath: "/data/a.txt",
		Logical:      "/a.txt",
		Kind:         share.KindFile,
		ExpiresIn:    time.Hour,
	})

	clock.t = clock.t.Add(2 * time.Hour)

	_, err := r.Get(created.ID)
	if !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("Get(expired) = %v, want NotFound", err)
	}

	// second call must behave identically — not panic on a half-removed entry
	_, err = r.Get(created.ID)
	if !apperr.Is(err, apperr.NotFound) {
		t.Errorf("Get(expired) second call = %v, want NotFound", err)
	}
}

func TestAccessOnExpiredIsGoneNotNotFound(t *testing.T) {
	r, clock := newRegistry(t)
	created, _ := r.Create(share.CreateSpec{
		AbsolutePath: "/data/a.txt",
		Logical:      "/a.txt",
		Kind:         share.KindFile,
		ExpiresIn:    time.Minute,
	})
	clock.t = clock.t.Add(time.Hour)

	_, err := r.Access(created.ID, "")
	if !apperr.Is(err, apperr.Gone) {
		t.Errorf("Access(expired) = %v, want Gone", err)
	}
}

func TestAccessWithWrongPasswordIsAuthFailed(t *testing.T) {
	r, _ := newRegistry(t)
	created, _ := r.Create(share.CreateSpec{
		AbsolutePath: "/data/a.txt",
		Logical:      "/a.txt",
		Kind:         share.KindFile,
		Password:     "correct-horse",
	})

	_, err := r.Access(created.ID, "wrong")
	if !apperr.Is(err, apperr.AuthFailed) {
		t.Errorf("Access(wrong password) = %v, want AuthFailed", err)
	}

	s, err := r.Access(created.ID, "correct-horse")
	if err != nil {
		t.Fatalf("Access(correct password): %v", err)
	}
	if s.AbsolutePath != "/data/a.txt" {
		t.Errorf("AbsolutePath = %q, want /data/a.txt", s.AbsolutePath)
	}
}

func TestAccessWithNoPasswordSetAllowsAnyInput(t *testing.T) {
	r, _ := newRegistry(t)
	created, _ := r.Create(share.CreateSpec{AbsolutePath: "/data/a.txt", Logical: "/a.txt", Kind: share.KindFile})

	if _, err := r.Access(created.ID, "anything"); err != nil {
		t.Errorf("Access without a set password should always succeed: %v", err)
	}
}

func TestListSweepsExpiredEntries(t *testing.T) {
	r, clock := newRegistry(t)
	r.Create(share.CreateSpec{AbsolutePath: "/x", Logical: "/x", Kind: share.KindDir, ExpiresIn: time.Minute}) //nolint:errcheck
	keep, _ := r.Create(share.CreateSpec{AbsolutePath: "/y", Logical: "/y", Kind: share.KindDir})

	clock.t = clock.t.Add(time.Hour)

	views := r.List()
	if len(views) != 1 || views[0].ID != keep.ID {
		t.Fatalf("List() after expiry = %+v, want only %s", views, keep.ID)
	}
}

func TestUpdateSelectivelyOverwritesFields(t *testing.T) {
	r, _ := newRegistry(t)
	created, _ := r.Create(share.CreateSpec{
		AbsolutePath: "/a",
		Logical:      "/a",
		Kind:         share.KindDir,
		Title:        "original",
	})

	newTitle := "renamed"
	updated, err := r.Update(created.ID, share.UpdatePatch{Title: &newTitle})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "renamed" {
		t.Errorf("Title = %q, want renamed", updated.Title)
	}
}

func TestUpdateExpiresInZeroClearsExpiry(t *testing.T) {
	r, _ := newRegistry(t)
	created, _ := r.Create(share.CreateSpec{
		AbsolutePath: "/a",
		Logical:      "/a",
		Kind:         share.KindDir,
		ExpiresIn:    time.Hour,
	})
	if created.ExpiresAt == nil {
		t.Fatal("expected ExpiresAt to be set on creation")
	}

	updated, err := r.Update(created.ID, share.UpdatePatch{ExpiresInSet: true, ExpiresIn: 0})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.ExpiresAt != nil {
		t.Errorf("ExpiresAt = %v, want nil after clearing", updated.ExpiresAt)
	}
}

func TestUpdateOnMissingIsNotFound(t *testing.T) {
	r, _ := newRegistry(t)
	_, err := r.Update("ghost", share.UpdatePatch{})
	if !apperr.Is(err, apperr.NotFound) {
		t.Errorf("Update(missing) = %v, want NotFound", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	r, _ := newRegistry(t)
	created, _ := r.Create(share.CreateSpec{AbsolutePath: "/a", Logical: "/a", Kind: share.KindDir})

	if err := r.Delete(created.ID); err != nil {
		t.Fatalf("first Delete: %v", err)
	}
	if err := r.Delete(created.ID); err != nil {
		t.Fatalf("second Delete on already-deleted share: %v", err)
	}

	if _, err := r.Get(created.ID); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("Get after Delete = %v, want NotFound", err)
	}
}
