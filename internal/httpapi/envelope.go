package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/marktennyson/nextbrowse-sub001/internal/apperr"
)

// writeJSON serializes payload as the success envelope: { ok: true, ...payload }.
// Callers pass a map or struct; it is marshalled, decoded back into a JSON
// object, and "ok" is merged in. A payload that does not marshal to a JSON
// object is written as-is, without "ok".
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	body, err := json.Marshal(payload)
	if err != nil {
		// Marshal failures here mean a handler built an unserializable
		// payload — a programmer error, not a client-facing one.
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "internal error"}) //nolint:errcheck
		return
	}

	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(body, &asMap); err != nil {
		w.Write(body) //nolint:errcheck
		return
	}
	asMap["ok"] = json.RawMessage("true")
	json.NewEncoder(w).Encode(asMap) //nolint:errcheck
}

// writeError maps err onto a status code per §7 and writes the failure
// envelope: { ok: false, error: string }.
func writeError(w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": msg}) //nolint:errcheck
}

// statusFor maps an apperr.Kind to its §7 HTTP status code.
func statusFor(err error) (int, string) {
	kind, ok := apperr.As(err)
	if !ok {
		return http.StatusInternalServerError, err.Error()
	}
	switch kind {
	case apperr.BadRequest, apperr.PathEscaped, apperr.IsADirectory:
		return http.StatusBadRequest, err.Error()
	case apperr.AuthFailed:
		return http.StatusUnauthorized, err.Error()
	case apperr.NotFound:
		return http.StatusNotFound, err.Error()
	case apperr.Gone:
		return http.StatusGone, err.Error()
	case apperr.AlreadyExists, apperr.Conflict:
		return http.StatusConflict, err.Error()
	case apperr.AssemblyFailed, apperr.Internal:
		return http.StatusInternalServerError, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
