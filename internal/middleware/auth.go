package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cassiomorais/edi-gateway/internal/domain/actor"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const ActorKey contextKey = "actor"

// Claims identifies the market actor calling the API.
type Claims struct {
	ActorNumber string `json:"actor_number"`
	ActorRole   string `json:"actor_role"`
	jwt.RegisteredClaims
}

// Actor resolves the claims to a validated market actor.
func (c *Claims) Actor() (actor.Actor, error) {
	role, err := actor.RoleFromCode(c.ActorRole)
	if err != nil {
		return actor.Actor{}, err
	}
	return actor.New(actor.Number(c.ActorNumber), role)
}

func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "auth_required", "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "auth_invalid_scheme", "invalid authorization scheme")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method")
				}
				return []byte(jwtSecret), nil
			})

			if err != nil || !token.Valid {
				writeError(w, http.StatusUnauthorized, "auth_invalid", "invalid token")
				return
			}

			a, err := claims.Actor()
			if err != nil {
				writeError(w, http.StatusUnauthorized, "auth_invalid_actor", "token does not identify a market actor")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), a)))
		})
	}
}

// RequireRole only lets actors with one of the roles through. It must run
// after RequireAuth.
func RequireRole(roles ...actor.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a, ok := GetActor(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "auth_required", "missing actor")
				return
			}
			for _, role := range roles {
				if a.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "forbidden", "actor role is not allowed")
		})
	}
}

func WithActor(ctx context.Context, a actor.Actor) context.Context {
	return context.WithValue(ctx, ActorKey, a)
}

func GetActor(ctx context.Context) (actor.Actor, bool) {
	a, ok := ctx.Value(ActorKey).(actor.Actor)
	return a, ok
}
