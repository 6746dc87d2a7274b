package handler

import (
	"net/http"

	"github.com/pixles/authcore/internal/reqctx"
)

// requireAuth mirrors services/gateway/api/internal/middleware/auth.go's
// RequiredAuthMiddleware, generalized from an RPC ValidateToken call to an
// in-process reqctx.Resolver decode.
func requireAuth(resolver *reqctx.Resolver) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			principal, err := resolver.Resolve(r.Header.Get("Authorization"))
			if err != nil {
				writeError(r.Context(), w, err)
				return
			}
			ctx := reqctx.WithPrincipal(r.Context(), principal)
			next(w, r.WithContext(ctx))
		}
	}
}
