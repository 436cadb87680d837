// Package middleware provides HTTP middleware for the API.
package middleware

import (
	"log"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// RequestLogger tags every request with a short id (echoed in X-Request-ID)
// and logs one line per request. Quiet unless verbose: without the config's
// verbose flag only error responses are logged.
func RequestLogger(verbose bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := uuid.New().String()[:8]
			w.Header().Set("X-Request-ID", requestID)

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if verbose || ww.Status() >= http.StatusBadRequest {
				log.Printf("[%s] %s %s %d %dB %s",
					requestID, r.Method, r.URL.Path,
					ww.Status(), ww.BytesWritten(), time.Since(start))
			}
		})
	}
}
