package httpapi

import (
	"encoding/json"
	"net/http"
)

// Machine-readable error kinds carried in every error envelope.
const (
	KindValidation   = "validation"
	KindUnauthorized = "unauthorized"
	KindForbidden    = "forbidden"
	KindNotFound     = "not_found"
	KindProvider     = "provider"
	KindInternal     = "internal"
)

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError sends the structured error envelope. The message is safe for
// clients; details stay in the server log.
func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{Kind: kind, Message: message}})
}
