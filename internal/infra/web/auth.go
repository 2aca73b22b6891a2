package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pravartak01/shlokayug-enrollment/internal/infra/logging"
)

type ctxKey int

const ctxKeyLearnerID ctxKey = iota

// learnerID returns the authenticated learner from the request context.
func learnerID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyLearnerID).(string)
	return id
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", false
	}
	return parts[1], true
}

// learnerAuth authenticates learner-facing routes with an HS256 JWT.
// The subject claim carries the learner id.
func (s *Server) learnerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.jwtSecret == "" {
			s.log.Error().Msg("JWT secret is not configured")
			writeForbidden(w, "authentication is not configured")
			return
		}
		tokenStr, ok := bearerToken(r)
		if !ok {
			writeUnauthorized(w, "missing or malformed bearer token")
			return
		}

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			return []byte(s.jwtSecret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			writeUnauthorized(w, "invalid token")
			return
		}
		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			writeUnauthorized(w, "token has no subject")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyLearnerID, sub)
		ctx = logging.WithLearnerID(ctx, sub)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// adminAuth provides simple Bearer token authentication for admin routes.
func (s *Server) adminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminKey == "" {
			s.log.Error().Msg("Admin API key is not configured")
			writeForbidden(w, "admin API is not configured")
			return
		}
		token, ok := bearerToken(r)
		if !ok {
			writeUnauthorized(w, "missing or malformed bearer token")
			return
		}
		if token != s.adminKey {
			writeForbidden(w, "invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
