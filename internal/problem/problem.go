// Package problem writes RFC 7807 Problem Details responses.
package problem

import (
	"encoding/json"
	"net/http"
)

// Detail represents an RFC 7807 Problem Details response.
type Detail struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail,omitempty"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

// New creates a Detail with the given status and detail message.
func New(status int, title, detail string) Detail {
	if title == "" {
		title = http.StatusText(status)
	}
	return Detail{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
	}
}

// Write sends p with the problem+json content type.
func (p Detail) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	json.NewEncoder(w).Encode(p)
}

// Write writes an RFC 7807 error response.
func Write(w http.ResponseWriter, status int, title, detail string) {
	New(status, title, detail).Write(w)
}
