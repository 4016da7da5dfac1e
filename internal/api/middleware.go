/**
 * @description
 * This file contains custom middleware for the HTTP router: bearer-token
 * authentication for the blockchain transaction routes and correlation-id
 * propagation for every request.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: For HS256 token validation.
 * - github.com/google/uuid: For generated correlation ids.
 */

package api

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	userIDKey        contextKey = "userID"
	correlationIDKey contextKey = "correlationID"

	CorrelationIDHeader = "X-Correlation-ID"
	maxCorrelationIDLen = 128
)

// JWTConfig holds the symmetric token settings shared with the auth service.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// JWTAuthMiddleware validates HS256 bearer tokens and stores the subject in the request
// context. When no secret is configured the protected routes answer 503.
func JWTAuthMiddleware(cfg JWTConfig) func(http.Handler) http.Handler {
	options := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}
	parser := jwt.NewParser(options...)
	secret := []byte(cfg.Secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(secret) == 0 {
				writeError(w, http.StatusServiceUnavailable, "authentication is not configured")
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader || strings.TrimSpace(tokenString) == "" {
				writeError(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			claims := jwt.MapClaims{}
			token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				return secret, nil
			})
			if err != nil || !token.Valid {
				log.Printf("level=warn component=api msg=\"token rejected\" correlation_id=%s err=%v", CorrelationIDFromContext(r.Context()), err)
				writeError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			subject, err := claims.GetSubject()
			if err != nil || subject == "" {
				writeError(w, http.StatusUnauthorized, "User ID not found in token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the authenticated subject, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

// CorrelationIDMiddleware reuses the caller's X-Correlation-ID or generates one, echoes it
// on the response and stores it in the request context.
func CorrelationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(CorrelationIDHeader))
		if id == "" || len(id) > maxCorrelationIDLen {
			id = uuid.NewString()
		}
		w.Header().Set(CorrelationIDHeader, id)
		ctx := context.WithValue(r.Context(), correlationIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CorrelationIDFromContext returns the request's correlation id or "-".
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok && id != "" {
		return id
	}
	return "-"
}
