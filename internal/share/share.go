// Package share implements the Share Registry (C6): a process-local,
// expiring, optionally password-protected mapping from opaque share IDs to
// resource descriptors, per §4.6.
//
// Storage is a single coarse mutex guarding a jellydator/ttlcache.Cache, the
// same library cs3org/reva uses for its own process-local caches
// (internal/http/services/owncloud/ocs/cache, internal/grpc/services/gateway
// /storageprovidercache.go). Shares are stored in the cache without a cache
// TTL, so the cache's own expiry sweep never removes them; the registry
// applies expiry itself on every lookup, because §4.6 requires lazy
// expiry-on-access semantics (Gone vs. NotFound) that the cache's plain
// Get/Remove API does not distinguish on its own.
package share

import (
	"crypto/subtle"
	"encoding/base64"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v2"

	"github.com/marktennyson/nextbrowse-sub001/internal/apperr"
)

// Kind distinguishes what a share points at.
type Kind string

const (
	KindFile Kind = "file"
	KindDir  Kind = "dir"
)

// Share is the full, private record — including the raw password, if any.
// Never serialized directly; View strips the password and adds HasPassword.
type Share struct {
	ID            string
	AbsolutePath  string
	Logical       string
	Kind          Kind
	CreatedAt     time.Time
	ExpiresAt     *time.Time
	Password      string
	AllowUploads  bool
	DisableViewer bool
	QuickDownload bool
	MaxBandwidth  *int64
	Title         string
	Description   string
	Theme         string
	ViewMode      string
}

// View is the public, client-facing projection of a Share.
type View struct {
	ID            string     `json:"id"`
	Path          string     `json:"path"`
	Kind          Kind       `json:"kind"`
	CreatedAt     time.Time  `json:"createdAt"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	HasPassword   bool       `json:"hasPassword"`
	AllowUploads  bool       `json:"allowUploads,omitempty"`
	DisableViewer bool       `json:"disableViewer,omitempty"`
	QuickDownload bool       `json:"quickDownload,omitempty"`
	MaxBandwidth  *int64     `json:"maxBandwidth,omitempty"`
	Title         string     `json:"title,omitempty"`
	Description   string     `json:"description,omitempty"`
	Theme         string     `json:"theme,omitempty"`
	ViewMode      string     `json:"viewMode,omitempty"`
}

func toView(s *Share) View {
	return View{
		ID:            s.ID,
		Path:          s.Logical,
		Kind:          s.Kind,
		CreatedAt:     s.CreatedAt,
		ExpiresAt:     s.ExpiresAt,
		HasPassword:   s.Password != "",
		AllowUploads:  s.AllowUploads,
		DisableViewer: s.DisableViewer,
		QuickDownload: s.QuickDownload,
		MaxBandwidth:  s.MaxBandwidth,
		Title:         s.Title,
		Description:   s.Description,
		Theme:         s.Theme,
		ViewMode:      s.ViewMode,
	}
}

// CreateSpec is the input to Create.
type CreateSpec struct {
	AbsolutePath  string
	Logical       string
	Kind          Kind
	ExpiresIn     time.Duration // 0 = never expires
	Password      string
	AllowUploads  bool
	DisableViewer bool
	QuickDownload bool
	MaxBandwidth  *int64
	Title         string
	Description   string
	Theme         string
	ViewMode      string
}

// UpdatePatch selectively overwrites mutable fields of a Share. A nil field
// leaves the existing value unchanged; ExpiresInSet distinguishes "clear
// expiresAt" (ExpiresIn == 0, ExpiresInSet == true) from "leave unchanged"
// (ExpiresInSet == false), per §4.6's update semantics.
type UpdatePatch struct {
	ExpiresInSet  bool
	ExpiresIn     time.Duration
	Password      *string
	AllowUploads  *bool
	DisableViewer *bool
	QuickDownload *bool
	MaxBandwidth  **int64
	Title         *string
	Description   *string
	Theme         *string
	ViewMode      *string
}

// Registry is the Share Registry (C6).
type Registry struct {
	mu    sync.Mutex
	cache *ttlcache.Cache
	now   func() time.Time
}

// New creates a Registry. now defaults to time.Now; a non-nil override is
// used by tests to control expiry deterministically.
func New(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	cache := ttlcache.NewCache()
	cache.SkipTTLExtensionOnHit(true) //nolint:errcheck
	return &Registry{cache: cache, now: now}
}

// Close releases the underlying cache's background sweep goroutine.
func (r *Registry) Close() error {
	return r.cache.Close()
}

func newID() string {
	// google/uuid gives 122 bits of randomness, comfortably over the
	// spec's 96-bit floor; base64 keeps the id URL-safe.
	u := uuid.New()
	return base64.RawURLEncoding.EncodeToString(u[:])
}

// Create stores a new share and returns its public view, per §4.6 create.
func (r *Registry) Create(spec CreateSpec) (View, error) {
	if spec.AbsolutePath == "" {
		return View{}, apperr.New(apperr.BadRequest, "share path is required")
	}

	s := &Share{
		ID:            newID(),
		AbsolutePath:  spec.AbsolutePath,
		Logical:       spec.Logical,
		Kind:          spec.Kind,
		CreatedAt:     r.now(),
		Password:      spec.Password,
		AllowUploads:  spec.AllowUploads,
		DisableViewer: spec.DisableViewer,
		QuickDownload: spec.QuickDownload,
		MaxBandwidth:  spec.MaxBandwidth,
		Title:         spec.Title,
		Description:   spec.Description,
		Theme:         spec.Theme,
		ViewMode:      spec.ViewMode,
	}
	if spec.ExpiresIn > 0 {
		exp := r.now().Add(spec.ExpiresIn)
		s.ExpiresAt = &exp
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.cache.Set(s.ID, s); err != nil {
		return View{}, apperr.Wrap(apperr.Internal, "store share", err)
	}
	return toView(s), nil
}

// Get looks up id, per §4.6 get: an expired share is removed and reported
// as NotFound (not Gone — Gone is reserved for the access() path).
func (r *Registry) Get(id string) (View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.lookupLocked(id)
	if err != nil {
		return View{}, apperr.New(apperr.NotFound, "share not found")
	}
	return toView(s), nil
}

// List sweeps expired entries first, then returns public views of the
// rest, per §4.6 list.
func (r *Registry) List() []View {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := r.cache.GetKeys()
	views := make([]View, 0, len(keys))
	for _, k := range keys {
		s, err := r.lookupLocked(k)
		if err != nil {
			continue
		}
		views = append(views, toView(s))
	}
	return views
}

// Update selectively applies patch to the share identified by id.
func (r *Registry) Update(id string, patch UpdatePatch) (View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.lookupLocked(id)
	if err != nil {
		return View{}, apperr.New(apperr.NotFound, "share not found")
	}

	if patch.ExpiresInSet {
		if patch.ExpiresIn <= 0 {
			s.ExpiresAt = nil
		} else {
			exp := r.now().Add(patch.ExpiresIn)
			s.ExpiresAt = &exp
		}
	}
	if patch.Password != nil {
		s.Password = *patch.Password
	}
	if patch.AllowUploads != nil {
		s.AllowUploads = *patch.AllowUploads
	}
	if patch.DisableViewer != nil {
		s.DisableViewer = *patch.DisableViewer
	}
	if patch.QuickDownload != nil {
		s.QuickDownload = *patch.QuickDownload
	}
	if patch.MaxBandwidth != nil {
		s.MaxBandwidth = *patch.MaxBandwidth
	}
	if patch.Title != nil {
		s.Title = *patch.Title
	}
	if patch.Description != nil {
		s.Description = *patch.Description
	}
	if patch.Theme != nil {
		s.Theme = *patch.Theme
	}
	if patch.ViewMode != nil {
		s.ViewMode = *patch.ViewMode
	}

	if err := r.cache.Set(s.ID, s); err != nil {
		return View{}, apperr.Wrap(apperr.Internal, "update share", err)
	}
	return toView(s), nil
}

// Delete removes id if present. Deleting an absent share is not an error.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.cache.Remove(id); err != nil && err != ttlcache.ErrNotFound {
		return apperr.Wrap(apperr.Internal, "delete share", err)
	}
	return nil
}

// Access validates password and returns the underlying Share for the
// caller (the HTTP surface) to project into a directory/file payload, per
// §4.6 access. The Share pointer is a private snapshot — callers must not
// mutate it.
func (r *Registry) Access(id, password string) (*Share, error) {
	r.mu.Lock()
	s, err := r.lookupLocked(id)
	r.mu.Unlock()
	if err != nil {
		return nil, apperr.New(apperr.Gone, "share not found or expired")
	}

	if s.Password != "" {
		if subtle.ConstantTimeCompare([]byte(password), []byte(s.Password)) != 1 {
			return nil, apperr.New(apperr.AuthFailed, "incorrect share password")
		}
	}
	snapshot := *s
	return &snapshot, nil
}

// lookupLocked fetches id from the cache and applies lazy expiry: an
// expired entry is removed and reported as a lookup miss. Callers must
// hold r.mu.
func (r *Registry) lookupLocked(id string) (*Share, error) {
	v, err := r.cache.Get(id)
	if err != nil {
		return nil, err
	}
	s := v.(*Share)
	if s.ExpiresAt != nil && !s.ExpiresAt.After(r.now()) {
		r.cache.Remove(id) //nolint:errcheck
		return nil, ttlcache.ErrNotFound
	}
	return s, nil
}
