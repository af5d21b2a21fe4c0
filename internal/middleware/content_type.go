package middleware

import (
	"mime"
	"net/http"

	"github.com/gorilla/mux"
)

// RequireJSON rejects state-changing requests whose body is not declared as
// application/json. Browsers cannot send that content type cross-origin
// without a preflight, so plain form posts from other pages never reach a
// handler.
func RequireJSON() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mediaType != "application/json" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnsupportedMediaType)
				w.Write([]byte(`{"code":"VALIDATION_FAILED","message":"Content-Type must be application/json"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
