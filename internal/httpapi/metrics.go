package httpapi

import (
	"net/http"
	"sync/atomic"
)

// Metrics holds process-lifetime atomic counters exposed at GET /metrics,
// adapted from the teacher's handler.Metrics — same shape (plain
// sync/atomic counters, no external metrics library anywhere in the
// pack), renamed from upload/CAS-specific counters to this domain's
// operations.
type Metrics struct {
	ChunksAccepted   atomic.Int64 // individual chunk POSTs accepted
	AssembliesOK     atomic.Int64 // chunked uploads successfully assembled
	AssembliesFailed atomic.Int64 // assembly attempts that returned AssemblyFailed
	UploadConflicts  atomic.Int64 // assemblies that hit an existing file with replace=false
	ArchiveStreams   atomic.Int64 // ZIP archive downloads started
	ShareAccesses    atomic.Int64 // share access() calls, successful or not
	ShareAuthFailed  atomic.Int64 // share access() calls rejected for bad password
}

// Handler returns the http.HandlerFunc serving GET /metrics: a flat JSON
// snapshot of the current counters plus the live active-upload count from
// the upload limiter, mirroring the teacher's metricsHandler shape.
func (m *Metrics) Handler(activeUploads func() int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"chunks_accepted":   m.ChunksAccepted.Load(),
			"assemblies_ok":     m.AssembliesOK.Load(),
			"assemblies_failed": m.AssembliesFailed.Load(),
			"upload_conflicts":  m.UploadConflicts.Load(),
			"archive_streams":   m.ArchiveStreams.Load(),
			"share_accesses":    m.ShareAccesses.Load(),
			"share_auth_failed": m.ShareAuthFailed.Load(),
			"active_uploads":    int64(activeUploads()),
		})
	}
}
