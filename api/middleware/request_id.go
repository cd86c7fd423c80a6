package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/enamelgeorgia/storefront/pkg/logger"
)

// requestIDHeader is echoed on the response so callers can correlate
// their own traces with ours.
const requestIDHeader = "X-Request-Id"

// RequestID tags every request with an id, minting one when the caller
// did not supply its own.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		}
		return http.HandlerFunc(fn)
	}
}
