package handler

import (
	"context"
	"log"
	"net/http"
	"time"
)

type studentIDKey struct{}

// studentIDHeader carries the verified identity injected by the upstream
// gateway. This service trusts it; authentication itself happens before
// requests reach us.
const studentIDHeader = "X-Student-ID"

// Identity extracts the gateway-injected student identity and stores it
// on the request context. Requests without one are rejected before any
// core operation runs.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(studentIDHeader)
		if id == "" {
			writeError(w, http.StatusUnauthorized, "missing "+studentIDHeader+" header")
			return
		}
		ctx := context.WithValue(r.Context(), studentIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// studentID returns the identity placed on the context by Identity.
func studentID(r *http.Request) string {
	id, _ := r.Context().Value(studentIDKey{}).(string)
	return id
}

// Logger logs basic request details and latency.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		log.Printf("request method=%s path=%s status=%d duration=%s",
			r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// CORS applies a permissive CORS policy.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+studentIDHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
