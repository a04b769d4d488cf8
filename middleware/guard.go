package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/zgoteam/authengine"
)

type identityContextKey struct{}

// IdentityFromContext extracts the authenticated identity injected by [Guard].
// The second return value reports whether the request carried a valid access
// token.
func IdentityFromContext(ctx context.Context) (*authengine.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*authengine.Identity)
	return id, ok
}

// Guard returns middleware that resolves the request identity from the
// Authorization header and always forwards the request. Requests with a
// missing, malformed, or invalid token proceed unauthenticated; rejection is
// the job of [RequireAuthenticated] and [RequireRole].
//
// Requests whose path starts with one of publicPaths skip token resolution
// entirely.
func Guard(engine *authengine.Engine, publicPaths ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil || isPublicPath(r.URL.Path, publicPaths) {
				next.ServeHTTP(w, r)
				return
			}

			id, ok := engine.AuthenticateHeader(r.Context(), r.Header.Get("Authorization"))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isPublicPath(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
