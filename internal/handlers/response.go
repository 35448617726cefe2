package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/workflow"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}

// statusOf maps an error kind to its HTTP status.
func statusOf(kind workflow.Kind) int {
	switch kind {
	case workflow.KindInvalidArgument:
		return http.StatusBadRequest
	case workflow.KindUnauthorized:
		return http.StatusForbidden
	case workflow.KindNotFound:
		return http.StatusNotFound
	case workflow.KindConflict:
		return http.StatusConflict
	case workflow.KindPreconditionFailed:
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err in the error envelope. Errors without a kind are
// logged and reported as internal.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var werr *workflow.Error
	if !errors.As(err, &werr) {
		log.WithFields(log.Fields{
			"path":  r.URL.Path,
			"error": err,
		}).Error("Request failed")
		middleware.WriteError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	middleware.WriteError(w, statusOf(werr.Kind), string(werr.Kind), werr.Message)
}

// decode reads an optional JSON body into v. An empty body leaves v as is.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return workflow.InvalidArgumentf("", "invalid JSON body: %v", err)
	}
	return nil
}
