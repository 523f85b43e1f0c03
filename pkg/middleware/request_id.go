package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/supplier-intake/intake-pipeline/pkg/requestid"
)

const RequestIDHeader = "X-Request-Id"

// RequestID takes the request id from the X-Request-Id header, or from chi's middleware when it ran first,
// or generates one. The id is stored with requestid.ToContext and echoed on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = middleware.GetReqID(r.Context())
		}
		if id == "" {
			id = requestid.Generate()
		}

		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(requestid.ToContext(r.Context(), id)))
	})
}
