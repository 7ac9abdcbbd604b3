package httputil

import (
	"context"
	"net/http"
)

// Context key type to avoid collisions
type contextKey string

const readerIDKey contextKey = "readerID"

// WithReaderID stores the verified reader id in the request context
func WithReaderID(r *http.Request, readerID string) *http.Request {
	ctx := context.WithValue(r.Context(), readerIDKey, readerID)
	return r.WithContext(ctx)
}

// ReaderID returns the verified reader id, or "" for an anonymous request.
// Annotation stores treat "" as read-only.
func ReaderID(r *http.Request) string {
	readerID, _ := r.Context().Value(readerIDKey).(string)
	return readerID
}
