package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type contextKey struct{}

// Authenticator resolves the calling actor from a request.
type Authenticator interface {
	Authenticate(r *http.Request) (appointment.Actor, error)
}

// Claims carries the actor in a bearer token: sub is the actor id and role
// is one of the closed role names.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

type JWTAuthenticator struct {
	key []byte
}

func NewJWTAuthenticator(secret []byte) *JWTAuthenticator {
	return &JWTAuthenticator{key: secret}
}

func (a *JWTAuthenticator) Authenticate(r *http.Request) (appointment.Actor, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return appointment.Actor{}, fmt.Errorf("%w: missing authorization header", ErrUnauthenticated)
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return appointment.Actor{}, fmt.Errorf("%w: invalid authorization format", ErrUnauthenticated)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(parts[1]), claims, func(*jwt.Token) (interface{}, error) {
		return a.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return appointment.Actor{}, fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	}

	return actorFrom(claims.Subject, claims.Role)
}

// Issue signs a token for actor. Used by the seed and simulate tools.
func (a *JWTAuthenticator) Issue(actor appointment.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: string(actor.Role),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.key)
}

// HeaderAuthenticator trusts the X-Actor-ID and X-Actor-Role headers. Only
// for development and local simulation.
type HeaderAuthenticator struct{}

func (HeaderAuthenticator) Authenticate(r *http.Request) (appointment.Actor, error) {
	id, role := r.Header.Get(HeaderActorID), r.Header.Get(HeaderActorRole)
	if id == "" || role == "" {
		return appointment.Actor{}, fmt.Errorf("%w: %s and %s headers are required", ErrUnauthenticated, HeaderActorID, HeaderActorRole)
	}
	return actorFrom(id, role)
}

func actorFrom(rawID, rawRole string) (appointment.Actor, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return appointment.Actor{}, fmt.Errorf("%w: actor id is not a uuid", ErrUnauthenticated)
	}
	role, err := appointment.ParseRole(rawRole)
	if err != nil {
		return appointment.Actor{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return appointment.Actor{ID: id, Role: role}, nil
}

// Middleware rejects requests without a valid actor and stores the actor in
// the request context otherwise.
func Middleware(auth Authenticator, unauthorized func(w http.ResponseWriter, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := auth.Authenticate(r)
			if err != nil {
				unauthorized(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func WithActor(ctx context.Context, actor appointment.Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (appointment.Actor, bool) {
	actor, ok := ctx.Value(contextKey{}).(appointment.Actor)
	return actor, ok
}
