package middleware

import (
	"net/http"
	"time"

	"github.com/moolen/groundwork/internal/logging"
	"github.com/moolen/groundwork/internal/pipeline"
)

// statusRecorder captures the status code and body size written downstream.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// AccessLog writes one line per request after it completes.
func AccessLog(logger *logging.Logger) pipeline.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.WithContext(r.Context()).InfoWithFields("Request handled",
				logging.Field("method", r.Method),
				logging.Field("path", r.URL.Path),
				logging.Field("status", status),
				logging.Field("bytes", rec.bytes),
				logging.Field("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}
