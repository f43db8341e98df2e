package admin

import (
	"encoding/json"
	"net/http"

	"github.com/shortlinkd/shortlinkd/pkg/logger"
)

type errorEnvelope struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, status int, r *http.Request, message string) {
	writeJSON(w, status, errorEnvelope{
		Error:     message,
		RequestID: logger.GetRequestID(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
