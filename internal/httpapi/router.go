// Package httpapi implements the HTTP Surface (C7): translating the domain
// operations of C1-C6 into the external interface described in §6, with
// chi for routing and rs/cors for cross-origin access — the same pairing
// SmilyOrg-timeship's api service and cs3org/reva's HTTP services use.
package httpapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/marktennyson/nextbrowse-sub001/internal/archive"
	"github.com/marktennyson/nextbrowse-sub001/internal/diskstats"
	"github.com/marktennyson/nextbrowse-sub001/internal/dirservice"
	appmw "github.com/marktennyson/nextbrowse-sub001/internal/middleware"
	"github.com/marktennyson/nextbrowse-sub001/internal/pathgate"
	"github.com/marktennyson/nextbrowse-sub001/internal/share"
	"github.com/marktennyson/nextbrowse-sub001/internal/upload"
)

// UploadLimiter bounds the number of concurrent chunk-upload handlers in
// flight, mirroring the teacher's middleware.UploadLimiter contract.
type UploadLimiter interface {
	Limit(next http.Handler) http.Handler
	Active() int
}

// Config holds the dependencies and settings New needs to build the
// router. PublicFilesBase is not read by New: listing URLs into the public
// files base are built by Dirs, and share download URLs point at the
// share's own download endpoint.
type Config struct {
	Gate            *pathgate.Gate
	Dirs            *dirservice.Service
	Uploads         *upload.Coordinator
	Archiver        *archive.Streamer
	Shares          *share.Registry
	Limiter         UploadLimiter
	Logger          *slog.Logger
	CORSOrigins     []string
	MaxUploadBody   int64
	PublicFilesBase string
	MinFreeBytes    int64 // readiness disk-space floor; 0 disables the check
}

// handler holds shared dependencies for all route handlers.
type handler struct {
	gate     *pathgate.Gate
	dirs     *dirservice.Service
	uploads  *upload.Coordinator
	archiver *archive.Streamer
	shares   *share.Registry
	logger   *slog.Logger
	metrics  *Metrics
	maxBody  int64
}

// New builds the root http.Handler: a chi router whose middleware runs
// real-IP → access log → panic recovery → CORS, with /api/fs/* mounted
// per §6.
func New(cfg Config) http.Handler {
	h := &handler{
		gate:     cfg.Gate,
		dirs:     cfg.Dirs,
		uploads:  cfg.Uploads,
		archiver: cfg.Archiver,
		shares:   cfg.Shares,
		logger:   cfg.Logger,
		metrics:  &Metrics{},
		maxBody:  cfg.MaxUploadBody,
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(appmw.RequestLog(cfg.Logger))
	r.Use(chimw.Recoverer)

	corsMW := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	})
	r.Use(corsMW.Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/healthz/ready", h.readiness(cfg.Gate.Root(), cfg.MinFreeBytes))
	r.Get("/metrics", h.metrics.Handler(cfg.Limiter.Active))

	r.Route("/api/fs", func(r chi.Router) {
		r.Get("/list", h.handleList)
		r.Get("/read", h.handleRead)
		r.Post("/mkdir", h.handleMkdir)
		r.Post("/delete", h.handleDelete)
		r.Delete("/delete", h.handleDelete)
		r.Post("/move", h.handleMove)
		r.Post("/copy", h.handleCopy)
		r.Post("/create", h.handleCreate)
		r.Post("/upload-status", h.handleUploadStatus)
		r.With(cfg.Limiter.Limit).Post("/upload-chunk", h.handleUploadChunk)
		r.Post("/upload-cancel", h.handleUploadCancel)
		r.Post("/upload", h.handleMultiUpload)
		r.Get("/download", h.handleDownload)
		r.Post("/download-multiple", h.handleDownloadMultiple)

		r.Post("/share/create", h.handleShareCreate)
		r.Get("/share", h.handleShareList)
		r.Get("/share/{id}", h.handleShareGet)
		r.Put("/share/{id}", h.handleShareUpdate)
		r.Delete("/share/{id}", h.handleShareDelete)
		r.Post("/share/{id}/access", h.handleShareAccess)
		r.Get("/share/{id}/download", h.handleShareDownload)
	})

	return r
}

// readiness reports whether the storage root is reachable and, when
// minFreeBytes > 0, whether enough disk space remains — the same
// liveness-vs-readiness split the teacher's Handler.Readiness uses, with
// disk-space checking adapted from the teacher's store.Local.DiskStats.
func (h *handler) readiness(root string, minFreeBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type check struct {
			Name string `json:"name"`
			OK   bool   `json:"ok"`
			Msg  string `json:"msg,omitempty"`
		}
		var checks []check
		allOK := true

		if _, err := os.Stat(root); err != nil {
			checks = append(checks, check{"storage_accessible", false, "stat failed"})
			allOK = false
		} else {
			checks = append(checks, check{"storage_accessible", true, ""})
		}

		if minFreeBytes > 0 {
			avail, total := diskstats.Stat(root)
			if total > 0 {
				if avail < uint64(minFreeBytes) {
					checks = append(checks, check{
						"disk_space", false,
						fmt.Sprintf("%d MB free — need %d MB", avail>>20, minFreeBytes>>20),
					})
					allOK = false
				} else {
					checks = append(checks, check{
						"disk_space", true,
						fmt.Sprintf("%d MB free of %d MB", avail>>20, total>>20),
					})
				}
			}
		}

		status := http.StatusOK
		if !allOK {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]any{"ready": allOK, "checks": checks})
	}
}
