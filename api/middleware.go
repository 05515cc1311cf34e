package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Actor is the already-authenticated identity this service consumes. The
// token is issued by the identity service; we only verify and read it.
type Actor struct {
	ID         string
	Role       string
	Department string
}

type contextKey string

const actorKey contextKey = "actor"

var jwtSecret []byte

// SetupAuth stores the shared secret used to verify identity tokens
func SetupAuth(secret string) {
	jwtSecret = []byte(secret)
}

// Middleware verifies the Bearer identity token on each request and puts
// the resulting Actor on the request context
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		actor, err := ParseActor(token)
		if err != nil || header == token {
			zap.S().Errorw("unauthorized",
				"url", r.URL)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// ParseActor verifies an identity token and extracts the actor claims.
// Used by the middleware and by the websocket route, which receives the
// token as a query parameter.
func ParseActor(tokenString string) (Actor, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return Actor{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Actor{}, fmt.Errorf("unexpected claims type")
	}

	actor := Actor{}
	if sub, ok := claims["sub"].(string); ok {
		actor.ID = sub
	}
	if role, ok := claims["role"].(string); ok {
		actor.Role = role
	}
	if department, ok := claims["department"].(string); ok {
		actor.Department = department
	}
	if actor.ID == "" {
		return Actor{}, fmt.Errorf("token has no subject")
	}
	return actor, nil
}

// WithActor returns a context carrying the actor
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the actor stored by the middleware
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok
}
