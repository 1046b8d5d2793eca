package middleware

import (
	"net/http"

	"github.com/cloo-solutions/ragchat/internal/api"
	"github.com/cloo-solutions/ragchat/internal/domain"
)

// LimitBody caps request bodies at limit bytes. A declared length over the
// limit is refused before routing; a body that only turns out too large while
// streaming fails in api.DecodeJSON with the same PAYLOAD_TOO_LARGE code.
func LimitBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 || r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > limit {
				TraceFrom(r.Context()).RecordError(domain.ErrPayloadTooLarge)
				api.HandleError(w, domain.ErrPayloadTooLarge)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
