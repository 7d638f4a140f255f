package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/MrEthical07/memoauth"
)

// ErrorBody is the JSON shape of every failed response.
type ErrorBody struct {
	Timestamp string `json:"timestamp"`
	Status    int    `json:"status"`
	Message   string `json:"message"`
}

// WriteError renders err with its classified status and client-safe message.
func WriteError(w http.ResponseWriter, err error) {
	e := memoauth.Classify(err)
	if e == nil {
		e = memoauth.ErrInternal
	}
	WriteErrorStatus(w, e.Status, e.Message)
}

// WriteErrorStatus renders an error body with an explicit status.
func WriteErrorStatus(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorBody{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Status:    status,
		Message:   message,
	})
}

// WriteJSON writes v as the response body.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
