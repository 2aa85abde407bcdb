package middleware

import (
	"net/http"

	"github.com/meddevice/medauth"
)

// RequirePermission rejects requests whose caller lacks perm. It must run
// after Guard.
func RequirePermission(engine *medauth.Engine, perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := ClaimsFromContext(r.Context())
			if err := engine.RequirePermission(r.Context(), claims, perm); err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
