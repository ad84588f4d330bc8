package httpapi

import (
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marktennyson/nextbrowse-sub001/internal/apperr"
	"github.com/marktennyson/nextbrowse-sub001/internal/dirservice"
	"github.com/marktennyson/nextbrowse-sub001/internal/pathgate"
	"github.com/marktennyson/nextbrowse-sub001/internal/share"
)

type shareCreateBody struct {
	Path          string `json:"path"`
	ExpiresIn     int64  `json:"expiresIn"` // seconds; 0 = never
	Password      string `json:"password"`
	AllowUploads  bool   `json:"allowUploads"`
	DisableViewer bool   `json:"disableViewer"`
	QuickDownload bool   `json:"quickDownload"`
	MaxBandwidth  *int64 `json:"maxBandwidth"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Theme         string `json:"theme"`
	ViewMode      string `json:"viewMode"`
}

func (h *handler) handleShareCreate(w http.ResponseWriter, r *http.Request) {
	var body shareCreateBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	abs, err := h.gate.Resolve(body.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, apperr.New(apperr.NotFound, body.Path))
			return
		}
		writeError(w, apperr.Wrap(apperr.Internal, "stat failed", err))
		return
	}
	kind := share.KindFile
	if info.IsDir() {
		kind = share.KindDir
	}

	view, err := h.shares.Create(share.CreateSpec{
		AbsolutePath:  abs,
		Logical:       path.Clean("/" + strings.TrimPrefix(body.Path, "/")),
		Kind:          kind,
		ExpiresIn:     time.Duration(body.ExpiresIn) * time.Second,
		Password:      body.Password,
		AllowUploads:  body.AllowUploads,
		DisableViewer: body.DisableViewer,
		QuickDownload: body.QuickDownload,
		MaxBandwidth:  body.MaxBandwidth,
		Title:         body.Title,
		Description:   body.Description,
		Theme:         body.Theme,
		ViewMode:      body.ViewMode,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"share": view})
}

func (h *handler) handleShareList(w http.ResponseWriter, r *http.Request) {
	views := h.shares.List()
	writeJSON(w, http.StatusOK, map[string]any{"shares": views})
}

func (h *handler) handleShareGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, err := h.shares.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"share": view})
}

type shareUpdateBody struct {
	ExpiresInSet  bool    `json:"expiresInSet"`
	ExpiresIn     int64   `json:"expiresIn"`
	Password      *string `json:"password"`
	AllowUploads  *bool   `json:"allowUploads"`
	DisableViewer *bool   `json:"disableViewer"`
	QuickDownload *bool   `json:"quickDownload"`
	MaxBandwidth  **int64 `json:"maxBandwidth"`
	Title         *string `json:"title"`
	Description   *string `json:"description"`
	Theme         *string `json:"theme"`
	ViewMode      *string `json:"viewMode"`
}

func (h *handler) handleShareUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body shareUpdateBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	view, err := h.shares.Update(id, share.UpdatePatch{
		ExpiresInSet:  body.ExpiresInSet,
		ExpiresIn:     time.Duration(body.ExpiresIn) * time.Second,
		Password:      body.Password,
		AllowUploads:  body.AllowUploads,
		DisableViewer: body.DisableViewer,
		QuickDownload: body.QuickDownload,
		MaxBandwidth:  body.MaxBandwidth,
		Title:         body.Title,
		Description:   body.Description,
		Theme:         body.Theme,
		ViewMode:      body.ViewMode,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"share": view})
}

func (h *handler) handleShareDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.shares.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "share deleted"})
}

type shareAccessBody struct {
	Password string `json:"password"`
	Path     string `json:"path"`
}

// handleShareAccess validates a share's password (POST body, not query, so
// it never lands in an access log) and returns either a directory listing
// or the file's contents, depending on the share's kind, per §4.6.
func (h *handler) handleShareAccess(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body shareAccessBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	h.metrics.ShareAccesses.Add(1)
	s, err := h.shares.Access(id, body.Password)
	if err != nil {
		if apperr.Is(err, apperr.AuthFailed) {
			h.metrics.ShareAuthFailed.Add(1)
		}
		writeError(w, err)
		return
	}

	logical := subLogical(s.Logical, body.Path)

	if s.Kind == share.KindDir {
		listing, err := h.dirs.List(logical)
		if err != nil {
			writeError(w, err)
			return
		}
		rescopeListingURLs(&listing, id, body.Path)
		writeJSON(w, http.StatusOK, map[string]any{"share": toPublicView(s), "listing": listing})
		return
	}

	content, size, mtime, err := h.dirs.ReadText(logical)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"share": toPublicView(s), "content": content, "size": size, "mtime": mtime})
}

// handleShareDownload serves GET /api/fs/share/{id}/download?path=&password=.
// Query-string password is unavoidable here since the browser drives this
// endpoint directly (an <a> or redirect, not a fetch with a JSON body).
func (h *handler) handleShareDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	password := r.URL.Query().Get("password")
	sub := r.URL.Query().Get("path")

	h.metrics.ShareAccesses.Add(1)
	s, err := h.shares.Access(id, password)
	if err != nil {
		if apperr.Is(err, apperr.AuthFailed) {
			h.metrics.ShareAuthFailed.Add(1)
		}
		writeError(w, err)
		return
	}

	logical := subLogical(s.Logical, sub)
	abs, err := h.gate.Resolve(logical)
	if err != nil {
		writeError(w, err)
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, apperr.New(apperr.NotFound, logical))
			return
		}
		writeError(w, apperr.Wrap(apperr.Internal, "stat failed", err))
		return
	}

	if info.IsDir() {
		h.streamArchive(w, r, logical, path.Base(path.Clean("/"+logical)))
		return
	}

	f, openErr := os.Open(abs)
	if openErr != nil {
		writeError(w, apperr.Wrap(apperr.Internal, "open failed", openErr))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+info.Name()+`"`)
	w.WriteHeader(http.StatusOK)
	io.Copy(w, f) //nolint:errcheck
}

// subLogical joins a share's anchored logical path with a caller-supplied
// relative path within it, then re-confines the result to the share's own
// subtree: §4.6 scopes a share to the one path it was created on, so a
// sub like "../secret" must not let an anonymous client read anything
// outside shareLogical even though gate.Resolve alone would permit it (it
// only checks containment in the storage root, not in the share).
func subLogical(shareLogical, sub string) string {
	sub = strings.TrimPrefix(sub, "/")
	if sub == "" {
		return shareLogical
	}
	joined := path.Clean(shareLogical + "/" + sub)
	prefix := strings.TrimSuffix(shareLogical, "/") + "/"
	if joined != shareLogical && !strings.HasPrefix(joined, prefix) {
		return shareLogical
	}
	return joined
}

// rescopeListingURLs rewrites each entry's download URL to the share's own
// download endpoint instead of the public-files-base URL dirservice.List
// fills in by default — an anonymous share client has no access to the
// public base, only to this one share, per §4.6.
func rescopeListingURLs(listing *dirservice.Listing, shareID, subPath string) {
	for i, e := range listing.Items {
		if e.URL == "" {
			continue
		}
		entryPath := pathgate.Join(subPath, e.Name)
		listing.Items[i].URL = "/api/fs/share/" + shareID + "/download?path=" + url.QueryEscape(entryPath)
	}
}

// toPublicView strips the password out of a private Share for the access
// response, the same projection Registry.Get applies internally.
func toPublicView(s *share.Share) map[string]any {
	return map[string]any{
		"id":            s.ID,
		"path":          s.Logical,
		"kind":          s.Kind,
		"createdAt":     s.CreatedAt,
		"expiresAt":     s.ExpiresAt,
		"hasPassword":   s.Password != "",
		"allowUploads":  s.AllowUploads,
		"disableViewer": s.DisableViewer,
		"quickDownload": s.QuickDownload,
		"maxBandwidth":  s.MaxBandwidth,
		"title":         s.Title,
		"description":   s.Description,
		"theme":         s.Theme,
		"viewMode":      s.ViewMode,
	}
}
