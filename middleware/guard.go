package middleware

import (
	"context"
	"net/http"

	"github.com/meddevice/medauth"
	"github.com/meddevice/medauth/jwt"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the claims Guard attached to ctx.
func ClaimsFromContext(ctx context.Context) (*jwt.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*jwt.Claims)
	return claims, ok && claims != nil
}

// WithClaims attaches claims to ctx the way Guard does. Useful in handler
// tests.
func WithClaims(ctx context.Context, claims *jwt.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// Guard authenticates the Authorization header through Engine.Authenticate
// and injects the verified claims into the request context. Rejected
// requests get a 401 JSON error; the engine has already audited them.
func Guard(engine *medauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, medauth.ErrEngineNotReady)
				return
			}

			claims, err := engine.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}
