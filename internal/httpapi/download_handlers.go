package httpapi

import (
	"io"
	"net/http"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/marktennyson/nextbrowse-sub001/internal/apperr"
)

// handleDownload serves GET /api/fs/download?path=. A file streams directly
// with Content-Disposition: attachment; a directory is synthesized into a
// ZIP on the fly via the archive streamer, per §4.5.
func (h *handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	logical := r.URL.Query().Get("path")

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

	f, err := os.Open(abs)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.Internal, "open failed", err))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+info.Name()+`"`)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.WriteHeader(http.StatusOK)
	io.Copy(w, f) //nolint:errcheck
}

type downloadMultipleItem struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type downloadMultipleBody struct {
	Items    []downloadMultipleItem `json:"items"`
	BasePath string                 `json:"basePath"`
}

// handleDownloadMultiple serves POST /api/fs/download-multiple: a ZIP
// containing every listed item, each nested under its own top-level entry,
// per §4.5.
func (h *handler) handleDownloadMultiple(w http.ResponseWriter, r *http.Request) {
	var body downloadMultipleBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if len(body.Items) == 0 {
		writeError(w, apperr.New(apperr.BadRequest, "no items selected"))
		return
	}

	logicals := make([]string, 0, len(body.Items))
	for _, it := range body.Items {
		logical := it.Path
		if logical == "" {
			logical = it.Name
		}
		logicals = append(logicals, logical)
	}

	result, err := h.archiver.Multiple(r.Context(), logicals, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	h.metrics.ArchiveStreams.Add(1)
	defer result.Body.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	w.WriteHeader(http.StatusOK)
	io.Copy(w, result.Body) //nolint:errcheck
}

// streamArchive synthesizes and streams a single-item ZIP, shared by the
// plain download path and the share download path.
func (h *handler) streamArchive(w http.ResponseWriter, r *http.Request, logical, displayName string) {
	result, err := h.archiver.SingleItem(r.Context(), logical, displayName)
	if err != nil {
		writeError(w, err)
		return
	}
	h.metrics.ArchiveStreams.Add(1)
	defer result.Body.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	w.WriteHeader(http.StatusOK)
	io.Copy(w, result.Body) //nolint:errcheck
}
