package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Context key type to avoid collisions.
type contextKey string

// UserContextKey is the context key for the authenticated user's claims.
const UserContextKey contextKey = "user"

// SupabaseClaims represents the claims in a Supabase JWT.
type SupabaseClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *SupabaseClaims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}

// GetUserFromContext retrieves the authenticated user's claims from the request context.
func GetUserFromContext(r *http.Request) *SupabaseClaims {
	if claims, ok := r.Context().Value(UserContextKey).(*SupabaseClaims); ok {
		return claims
	}
	return nil
}

// AuthMiddleware verifies the bearer JWT and stores its claims in the request context.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := extractToken(r)
		if tokenString == "" {
			writeError(w, http.StatusUnauthorized, "No authorization header")
			return
		}

		opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
		if h.issuer != "" {
			opts = append(opts, jwt.WithIssuer(h.issuer))
		}

		claims := &SupabaseClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if len(h.jwtSecret) == 0 {
				return nil, fmt.Errorf("JWT secret not configured")
			}
			return h.jwtSecret, nil
		}, opts...)
		if err != nil || !token.Valid {
			h.log.Info("rejected token", zap.Error(err))
			writeError(w, http.StatusUnauthorized, "Invalid authorization")
			return
		}
		if claims.Subject == "" {
			writeError(w, http.StatusUnauthorized, "Invalid authorization")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}

	return parts[1]
}

// RequestLogger logs one line per request through log.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Duration("duration", time.Since(start)))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
