package rpc

import (
	"encoding/json"
	"net/http"
)

// Stable error codes surfaced to clients alongside HTTP status.
const (
	codeInvalidParams = "invalid_params"
	codeNotFound      = "not_found"
	codeForbidden     = "forbidden"
	codeConflict      = "conflict"
	codeRejected      = "rejected"
	codeRateLimited   = "rate_limited"
	codeInternal      = "internal"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Code: code, Message: message}})
}
