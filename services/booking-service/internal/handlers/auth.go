package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/coachbook/coachbook/libs/auth"
	"github.com/coachbook/coachbook/libs/httpx"
)

const (
	RoleMember = "member"
	RoleCoach  = "coach"
	RoleAdmin  = "admin"
)

type claimsContextKey struct{}

// Authenticate extracts and verifies the bearer token. With an empty secret
// the signature check is skipped, matching gateway-terminated deployments
// where the token was already verified upstream.
func Authenticate(secret string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(raw, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))

			var claims *auth.Claims
			var err error
			if secret == "" {
				claims, err = auth.ParseJWTNoVerify(token)
			} else {
				claims, err = auth.ParseAndVerifyHS256(token, secret)
			}
			if err != nil || claims.Sub == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsContextKey{}, claims)))
		})
	}
}

func claimsFrom(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsContextKey{}).(*auth.Claims)
	return claims
}

// requireRole returns the caller's claims when the role matches. Admin passes
// every check.
func requireRole(w http.ResponseWriter, r *http.Request, roles ...string) (*auth.Claims, bool) {
	claims := claimsFrom(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing credentials")
		return nil, false
	}
	if claims.Role == RoleAdmin {
		return claims, true
	}
	for _, role := range roles {
		if claims.Role == role {
			return claims, true
		}
	}
	writeError(w, http.StatusForbidden, "forbidden", "insufficient role")
	return nil, false
}
