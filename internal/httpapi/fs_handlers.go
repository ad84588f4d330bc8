package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/marktennyson/nextbrowse-sub001/internal/apperr"
)

func (h *handler) handleList(w http.ResponseWriter, r *http.Request) {
	logical := r.URL.Query().Get("path")

	page, err := parsePagination(r)
	if err != nil {
		writeError(w, err)
		return
	}

	listing, err := h.dirs.List(logical)
	if err != nil {
		writeError(w, err)
		return
	}

	items, pageInfo := paginate(listing.Items, page)
	resp := map[string]any{"path": listing.Path, "items": items}
	if page.requested {
		resp["pagination"] = pageInfo
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleRead(w http.ResponseWriter, r *http.Request) {
	logical := r.URL.Query().Get("path")
	content, size, mtime, err := h.dirs.ReadText(logical)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"content": content, "size": size, "mtime": mtime})
}

type pathBody struct {
	Path string `json:"path"`
}

func (h *handler) handleMkdir(w http.ResponseWriter, r *http.Request) {
	var body pathBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := h.dirs.Mkdir(body.Path); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "directory created"})
}

func (h *handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	var body pathBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := h.dirs.Delete(body.Path); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "deleted"})
}

type moveCopyBody struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

func (h *handler) handleMove(w http.ResponseWriter, r *http.Request) {
	var body moveCopyBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := h.dirs.Move(body.Source, body.Destination); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "moved"})
}

func (h *handler) handleCopy(w http.ResponseWriter, r *http.Request) {
	var body moveCopyBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := h.dirs.Copy(body.Source, body.Destination); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "copied"})
}

type createBody struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (h *handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body createBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	size, mtime, err := h.dirs.CreateEmpty(body.Path, []byte(body.Content))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"size": size, "mtime": mtime})
}

// decodeJSON decodes a JSON request body, reporting malformed bodies as
// BadRequest per §7.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return apperr.New(apperr.BadRequest, "request body is required")
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return apperr.Wrap(apperr.BadRequest, "malformed JSON body", err)
	}
	return nil
}
