package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/sagip-cad/emergency-dispatch-api/api"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func TestParseActor(t *testing.T) {
	api.SetupAuth(testSecret)

	token := signToken(t, jwt.MapClaims{
		"sub":        "u1",
		"role":       "police_admin",
		"department": "PNP",
	})

	actor, err := api.ParseActor(token)
	assert.NoError(t, err)
	assert.Equal(t, "u1", actor.ID)
	assert.Equal(t, "police_admin", actor.Role)
	assert.Equal(t, "PNP", actor.Department)
}

func TestParseActorMissingSubject(t *testing.T) {
	api.SetupAuth(testSecret)

	token := signToken(t, jwt.MapClaims{"role": "police_admin"})

	_, err := api.ParseActor(token)
	assert.Error(t, err)
}

func TestParseActorWrongSecret(t *testing.T) {
	api.SetupAuth(testSecret)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"}).
		SignedString([]byte("someone-elses-secret"))
	if err != nil {
		t.Fatal(err)
	}

	_, err = api.ParseActor(token)
	assert.Error(t, err)
}

func TestMiddlewarePutsActorOnContext(t *testing.T) {
	api.SetupAuth(testSecret)

	token := signToken(t, jwt.MapClaims{"sub": "u1", "role": "fire_responder"})

	var got api.Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = api.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/api/v1/emergencies", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	api.Middleware(next).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "u1", got.ID)
	assert.Equal(t, "fire_responder", got.Role)
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	api.SetupAuth(testSecret)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a token")
	})

	req := httptest.NewRequest("GET", "/api/v1/emergencies", nil)
	rr := httptest.NewRecorder()

	api.Middleware(next).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, `{"error": "unauthorized"}`, rr.Body.String())
}
