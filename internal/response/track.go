package response

import (
	"context"
	"net/http"
	"sync/atomic"
)

// trackingWriter records whether a status line has been written.
type trackingWriter struct {
	http.ResponseWriter
	written atomic.Bool
	status  atomic.Int32
}

func (tw *trackingWriter) WriteHeader(status int) {
	if tw.written.Swap(true) {
		return
	}
	tw.status.Store(int32(status))
	tw.ResponseWriter.WriteHeader(status)
}

func (tw *trackingWriter) Write(b []byte) (int, error) {
	if !tw.written.Load() {
		tw.WriteHeader(http.StatusOK)
	}
	return tw.ResponseWriter.Write(b)
}

// Written reports whether the response has started.
func (tw *trackingWriter) Written() bool {
	return tw.written.Load()
}

// Status returns the written status, or 0 before anything was written.
func (tw *trackingWriter) Status() int {
	return int(tw.status.Load())
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (tw *trackingWriter) Unwrap() http.ResponseWriter {
	return tw.ResponseWriter
}

// Flush implements http.Flusher when the underlying writer does.
func (tw *trackingWriter) Flush() {
	if f, ok := tw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Track wraps the response writer so duplicate sends can be detected.
func Track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := w.(*trackingWriter); ok {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(&trackingWriter{ResponseWriter: w}, r)
	})
}

// Written reports whether a response has already started on w. Writers not
// wrapped by Track always report false.
func Written(w http.ResponseWriter) bool {
	tw, ok := w.(*trackingWriter)
	return ok && tw.Written()
}

// StatusOf returns the status written on w, or 0 when unknown.
func StatusOf(w http.ResponseWriter) int {
	if tw, ok := w.(*trackingWriter); ok {
		return tw.Status()
	}
	return 0
}

type exposeKey struct{}

// ExposeDetails marks every request so internal error details are serialized.
// Only meant for development environments.
func ExposeDetails(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), exposeKey{}, true)))
	})
}

func exposeDetails(r *http.Request) bool {
	v, _ := r.Context().Value(exposeKey{}).(bool)
	return v
}
