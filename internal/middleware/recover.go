package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/moolen/groundwork/internal/logging"
	"github.com/moolen/groundwork/internal/pipeline"
	"github.com/moolen/groundwork/internal/response"
)

// Recover turns a panic in a later handler into a 500 response.
func Recover(logger *logging.Logger) pipeline.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.WithContext(r.Context()).ErrorWithFields("Recovered from panic",
					logging.Field("method", r.Method),
					logging.Field("path", r.URL.Path),
					logging.Field("panic", fmt.Sprint(rec)),
				)
				logger.Debug("Stack: %s", debug.Stack())
				response.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}
