// Package respond writes the JSON envelope shared by every API endpoint:
//
//	{"success": true, "data": ..., "meta": {"timestamp": ..., "version": ..., "requestId": ...}}
package respond

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/zargusta/fundtracker/internal/fund"
)

// ErrUnauthorized maps to 401.
var ErrUnauthorized = errors.New("unauthorized")

const RequestIDHeader = "X-Request-Id"

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Meta    meta   `json:"meta"`
}

type meta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	RequestID string    `json:"requestId"`
}

type ctxKey struct{}

type requestMeta struct {
	id      string
	version string
}

// Middleware assigns every request a UUID, echoes it in X-Request-Id and makes it
// available to the envelope together with the API version.
func Middleware(version string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := uuid.NewString()
			w.Header().Set(RequestIDHeader, id)

			ctx := context.WithValue(r.Context(), ctxKey{}, requestMeta{id: id, version: version})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func metaFor(r *http.Request) meta {
	rm, _ := r.Context().Value(ctxKey{}).(requestMeta)

	return meta{
		Timestamp: time.Now().UTC(),
		Version:   rm.version,
		RequestID: rm.id,
	}
}

// JSON writes a successful envelope around data.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	write(w, status, envelope{Success: true, Data: data, Meta: metaFor(r)})
}

// Fail writes an error envelope with an explicit status.
func Fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	write(w, status, envelope{Success: false, Error: msg, Meta: metaFor(r)})
}

// Error maps err onto a status code. Unexpected errors are logged and reported
// without detail.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, fund.ErrValidation):
		Fail(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, fund.ErrNotFound):
		Fail(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrUnauthorized):
		Fail(w, r, http.StatusUnauthorized, err.Error())
	default:
		slog.Error("request failed", "path", r.URL.Path, "error", err)
		Fail(w, r, http.StatusInternalServerError, "internal error")
	}
}

func write(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
