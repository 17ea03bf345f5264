package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, method jwt.SigningMethod, key any) string {
	t.Helper()
	tokenStr, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return tokenStr
}

func TestJWTAuthenticator_ValidToken(t *testing.T) {
	auth := NewJWTAuthenticator(testSigningKey)
	id := uuid.New()
	token := createTestToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "doctor",
	}, jwt.SigningMethodHS256, testSigningKey)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	actor, err := auth.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, appointment.Actor{ID: id, Role: appointment.RoleDoctor}, actor)
}

func TestJWTAuthenticator_IssueRoundTrip(t *testing.T) {
	auth := NewJWTAuthenticator(testSigningKey)
	want := appointment.Actor{ID: uuid.New(), Role: appointment.RoleSecretary}

	token, err := auth.Issue(want, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	got, err := auth.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestJWTAuthenticator_Rejects(t *testing.T) {
	id := uuid.New().String()
	valid := Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: id, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		Role:             "Patient",
	}
	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	badRole := valid
	badRole.Role = "Janitor"
	badSubject := valid
	badSubject.Subject = "not-a-uuid"

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"no bearer prefix", "Token abc123"},
		{"empty token", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"wrong key", "Bearer " + createTestToken(t, valid, jwt.SigningMethodHS256, []byte("other-key"))},
		{"expired", "Bearer " + createTestToken(t, expired, jwt.SigningMethodHS256, testSigningKey)},
		{"unknown role", "Bearer " + createTestToken(t, badRole, jwt.SigningMethodHS256, testSigningKey)},
		{"subject not uuid", "Bearer " + createTestToken(t, badSubject, jwt.SigningMethodHS256, testSigningKey)},
		{"unexpected algorithm", "Bearer " + createTestToken(t, valid, jwt.SigningMethodHS512, testSigningKey)},
	}

	auth := NewJWTAuthenticator(testSigningKey)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			_, err := auth.Authenticate(req)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}

func TestHeaderAuthenticator(t *testing.T) {
	id := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderActorID, id.String())
	req.Header.Set(HeaderActorRole, "admin")
	actor, err := HeaderAuthenticator{}.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, appointment.Actor{ID: id, Role: appointment.RoleAdmin}, actor)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderActorID, id.String())
	_, err = HeaderAuthenticator{}.Authenticate(req)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestMiddleware(t *testing.T) {
	id := uuid.New()
	var seen appointment.Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ActorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	unauthorized := func(w http.ResponseWriter, err error) {
		http.Error(w, err.Error(), http.StatusUnauthorized)
	}
	h := Middleware(HeaderAuthenticator{}, unauthorized)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderActorID, id.String())
	req.Header.Set(HeaderActorRole, "Nurse")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, appointment.Actor{ID: id, Role: appointment.RoleNurse}, seen)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
