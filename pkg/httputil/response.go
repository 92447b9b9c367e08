package httputil

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Envelope every API answer: {"status":"ok","data":...} or {"status":"error","error":{...}}
type Envelope struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"` // example "invalid_wallet", "fetch_failed"
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// JSON writes data in an ok envelope; nil data with 204 writes headers only
func JSON(w http.ResponseWriter, status int, data any, headers map[string]string) error {
	if data == nil && status == http.StatusNoContent {
		setHeaders(w, headers)
		w.WriteHeader(status)
		return nil
	}

	return write(w, status, Envelope{Status: StatusOK, Data: data}, headers)
}

// Error writes an error envelope, trace_id is the chi request id when present. Errors are never cached.
func Error(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) error {
	return write(w, status, Envelope{
		Status: StatusError,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
			TraceID: middleware.GetReqID(r.Context()),
		},
	}, map[string]string{
		"Cache-Control": "no-store",
	})
}

// TooManyRequests 429 with Retry-After in whole seconds, at least 1
func TooManyRequests(w http.ResponseWriter, r *http.Request, retryAfter time.Duration, message string) error {
	w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds(retryAfter)))
	return Error(w, r, http.StatusTooManyRequests, "rate_limited", message, nil)
}

func RetryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

func write(w http.ResponseWriter, status int, payload Envelope, headers map[string]string) error {
	// headers must be set before WriteHeader
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	setHeaders(w, headers)
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	// report text carries ">=2^N"
	enc.SetEscapeHTML(false)

	return enc.Encode(payload)
}

func setHeaders(w http.ResponseWriter, headers map[string]string) {
	for k, v := range headers {
		w.Header().Set(k, v)
	}
}
