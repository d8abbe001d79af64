package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/minatolabs/kbchat/internal/core"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the shared sentinel errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrPermission):
		status = http.StatusForbidden
	case errors.Is(err, core.ErrUnsupportedFormat), errors.Is(err, core.ErrExtraction):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrExternalService):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
