package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-payments/api/responses"
	pkgAuth "github.com/angelmondragon/storefront-payments/pkg/auth"
	"github.com/angelmondragon/storefront-payments/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-payments/pkg/errors"
	"github.com/angelmondragon/storefront-payments/pkg/logger"
)

const bearerScheme = "bearer"

// Auth admits requests carrying a valid admin bearer token.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			userID := claims.UserID.String()
			ctx := WithRole(WithUserID(r.Context(), userID), string(claims.Role))
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"user_id":    userID,
					"actor_role": string(claims.Role),
				})
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken accepts both "Bearer <jwt>" and a bare token.
func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	switch {
	case len(parts) == 2 && strings.EqualFold(parts[0], bearerScheme):
		return parts[1], true
	case len(parts) == 1 && !strings.EqualFold(parts[0], bearerScheme):
		return parts[0], true
	}
	return "", false
}
