package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/worklane-app/worklane-backend/pkg/actors"
	"github.com/worklane-app/worklane-backend/pkg/auth/jwt"
	"github.com/worklane-app/worklane-backend/pkg/communication"
)

// AuthenticationMiddleware checks the login token and resolves the acting identity
type AuthenticationMiddleware struct {
	ResponseManager *communication.ResponseManager
	Resolver        *actors.Resolver
	Secret          string
}

type key string

const (
	// KeyActor is the key for the request context variable holding the resolved actor
	KeyActor key = "actor"
)

// ActorFromContext pulls the resolved actor out of a request context
func ActorFromContext(ctx context.Context) (actors.Actor, bool) {
	actor, ok := ctx.Value(KeyActor).(actors.Actor)
	return actor, ok
}

// Middleware gets called when a request needs to be authenticated
func (m *AuthenticationMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, r *http.Request) {
		extractedToken, err := extractTokenStringFromHeader(r)
		if err != nil {
			m.ResponseManager.RespondWithError(writer, http.StatusUnauthorized, "No authorization", err)
			return
		}

		token, err := jwt.Verify(extractedToken, m.Secret, jwt.AlgHS256, jwt.Claims{})
		if err != nil {
			m.ResponseManager.RespondWithError(writer, http.StatusUnauthorized, "Token invalid", err)
			return
		}

		actor, err := m.Resolver.Resolve(r.Context(), token.Payload.Subject)
		if err != nil {
			m.ResponseManager.RespondWithError(writer, http.StatusUnauthorized, "Unknown actor", err)
			return
		}

		newContext := context.WithValue(r.Context(), KeyActor, *actor)
		next.ServeHTTP(writer, r.WithContext(newContext))
	})
}

func extractTokenStringFromHeader(r *http.Request) (string, error) {
	nonformatted := r.Header.Get("Authorization")
	if strings.TrimSpace(nonformatted) == "" {
		return "", errors.New("no authorization token specified")
	}

	tokenParts := strings.Fields(nonformatted)
	if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
		return "", errors.New("token must be a bearer token")
	}

	if strings.TrimSpace(tokenParts[1]) == "" {
		return "", errors.New("no authorization token specified")
	}

	return tokenParts[1], nil
}
