package httpapi

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/marktennyson/nextbrowse-sub001/internal/apperr"
	"github.com/marktennyson/nextbrowse-sub001/internal/upload"
)

type uploadStatusBody struct {
	FileID      string `json:"fileId"`
	FileName    string `json:"fileName"`
	PathParam   string `json:"pathParam"`
	ChunkSize   int    `json:"chunkSize"`
	TotalChunks int    `json:"totalChunks"`
}

func (h *handler) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	var body uploadStatusBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	status, err := h.uploads.StatusOf(body.FileID, body.PathParam)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"uploadedChunks": status.UploadedChunks,
		"canResume":      status.CanResume,
	})
}

// handleUploadChunk accepts one multipart chunk POST per §6. Unlike the
// JSON-bodied fs operations, the chunk and its metadata travel together as
// multipart form fields, the same shape the teacher's single-file Upload
// handler parses form values from (X-headers there, form fields here since
// this endpoint carries per-chunk sequencing data the teacher's headers
// didn't need).
func (h *handler) handleUploadChunk(w http.ResponseWriter, r *http.Request) {
	maxBody := h.maxBody
	if maxBody <= 0 {
		maxBody = 32 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBody+1<<20) // headroom for form overhead

	if err := r.ParseMultipartForm(maxBody); err != nil {
		writeError(w, apperr.Wrap(apperr.BadRequest, "failed to parse multipart form", err))
		return
	}

	pathParam := r.FormValue("path")
	fileName := r.FormValue("fileName")
	fileID := r.FormValue("fileId")
	replace := r.FormValue("replace") == "true" || r.FormValue("replace") == "1"

	chunkIndex, err := strconv.Atoi(r.FormValue("chunkIndex"))
	if err != nil {
		writeError(w, apperr.New(apperr.BadRequest, "chunkIndex is required and must be an integer"))
		return
	}
	totalChunks, err := strconv.Atoi(r.FormValue("totalChunks"))
	if err != nil {
		writeError(w, apperr.New(apperr.BadRequest, "totalChunks is required and must be an integer"))
		return
	}

	file, _, err := r.FormFile("chunk")
	if err != nil {
		writeError(w, apperr.Wrap(apperr.BadRequest, "chunk field is required", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.Internal, "read chunk body", err))
		return
	}

	outcome, err := h.uploads.PutChunk(fileID, fileName, pathParam, chunkIndex, totalChunks, data, replace)
	if err != nil {
		if apperr.Is(err, apperr.AssemblyFailed) {
			h.metrics.AssembliesFailed.Add(1)
		}
		if h.logger != nil {
			h.logger.Warn("upload chunk failed", "fingerprint", fileID, "chunk_index", chunkIndex, "err", err)
		}
		writeError(w, err)
		return
	}

	h.metrics.ChunksAccepted.Add(1)
	switch outcome.Kind {
	case upload.Completed:
		h.metrics.AssembliesOK.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{"complete": true, "fileName": outcome.FileName})
	case upload.Conflict:
		h.metrics.UploadConflicts.Add(1)
		writeError(w, apperr.New(apperr.AlreadyExists, outcome.FileName+" already exists"))
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"complete": false,
			"received": outcome.Received,
			"total":    outcome.Total,
		})
	}
}

type uploadCancelBody struct {
	FileID   string `json:"fileId"`
	FileName string `json:"fileName"`
	Path     string `json:"path"`
}

func (h *handler) handleUploadCancel(w http.ResponseWriter, r *http.Request) {
	var body uploadCancelBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := h.uploads.Cancel(body.FileID, body.Path); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "upload cancelled"})
}

// handleMultiUpload is the supplemented non-chunked multi-file upload
// endpoint (SPEC_FULL.md), grounded on the original nextbrowse backend's
// UploadFiles handler: a multipart "files" field, one entry per file,
// streamed straight to disk with an O_EXCL/O_TRUNC split on the replace
// flag instead of the chunked assembly path.
func (h *handler) handleMultiUpload(w http.ResponseWriter, r *http.Request) {
	maxBody := h.maxBody
	if maxBody <= 0 {
		maxBody = 32 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBody*8) // several files per request

	if err := r.ParseMultipartForm(maxBody); err != nil {
		writeError(w, apperr.Wrap(apperr.BadRequest, "failed to parse multipart form", err))
		return
	}

	pathParam := r.FormValue("path")
	replace := r.FormValue("replace") == "true" || r.FormValue("replace") == "1"

	form := r.MultipartForm
	files := form.File["files"]
	if len(files) == 0 {
		writeError(w, apperr.New(apperr.BadRequest, "no files provided"))
		return
	}

	destAbs, err := h.gate.Resolve(pathParam)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := os.MkdirAll(destAbs, 0o750); err != nil {
		writeError(w, apperr.Wrap(apperr.Internal, "create destination directory", err))
		return
	}

	var saved []string
	var failed []string

	for _, fh := range files {
		src, err := fh.Open()
		if err != nil {
			failed = append(failed, fh.Filename+": failed to open uploaded file")
			continue
		}

		outPath := filepath.Join(destAbs, filepath.Base(fh.Filename))
		flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
		if replace {
			flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		}
		dst, err := os.OpenFile(outPath, flags, 0o640)
		if err != nil {
			src.Close()
			if os.IsExist(err) {
				failed = append(failed, fh.Filename+": already exists")
			} else {
				failed = append(failed, fh.Filename+": "+err.Error())
			}
			continue
		}

		_, copyErr := io.Copy(dst, src)
		src.Close()
		closeErr := dst.Close()
		if copyErr != nil || closeErr != nil {
			os.Remove(outPath) //nolint:errcheck
			failed = append(failed, fh.Filename+": write failed")
			continue
		}
		saved = append(saved, fh.Filename)
	}

	status := http.StatusOK
	if len(saved) == 0 {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]any{"files": saved, "errors": failed})
}
