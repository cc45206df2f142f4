package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dormbill/internal/core"

	"github.com/golang-jwt/jwt/v5"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestJWTManagerRoundTrip(t *testing.T) {
	m := NewJWTManager(secret, "dorm-idp", time.Hour)
	actor := core.Actor{ID: "u1", Name: "Admin", Email: "admin@dorm.test", Role: RoleAdmin}
	tok, err := m.Generate(actor)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	claims, err := m.Validate(tok)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Actor() != actor {
		t.Fatalf("expected %+v, got %+v", actor, claims.Actor())
	}
}

func TestJWTManagerRejects(t *testing.T) {
	m := NewJWTManager(secret, "dorm-idp", time.Hour)
	actor := core.Actor{ID: "u1", Role: RoleAdmin}

	expired, _ := NewJWTManager(secret, "dorm-idp", -time.Minute).Generate(actor)
	otherKey, _ := NewJWTManager("ffffffffffffffffffffffffffffffff", "dorm-idp", time.Hour).Generate(actor)
	otherIssuer, _ := NewJWTManager(secret, "someone-else", time.Hour).Generate(actor)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	for name, tok := range map[string]string{
		"garbage":      "not-a-token",
		"expired":      expired,
		"wrong key":    otherKey,
		"wrong issuer": otherIssuer,
		"alg none":     none,
	} {
		if _, err := m.Validate(tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestRequireAuthAndRole(t *testing.T) {
	m := NewJWTManager(secret, "", time.Hour)
	adminTok, _ := m.Generate(core.Actor{ID: "u1", Name: "Admin", Role: RoleAdmin})
	dormerTok, _ := m.Generate(core.Actor{ID: "u2", Role: "dormer"})

	var seen core.Actor
	h := RequireAuth(m)(RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ActorFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"bad scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"wrong role", "Bearer " + dormerTok, http.StatusForbidden},
		{"admin", "Bearer " + adminTok, http.StatusNoContent},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/dormers", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, rec.Code)
		}
	}
	if seen.ID != "u1" || seen.Name != "Admin" {
		t.Fatalf("actor not propagated: %+v", seen)
	}
}

func TestRequireOwnerOrRole(t *testing.T) {
	m := NewJWTManager(secret, "", time.Hour)
	adminTok, _ := m.Generate(core.Actor{ID: "u1", Role: RoleAdmin})
	ownerTok, _ := m.Generate(core.Actor{ID: "d1", Role: "dormer"})
	otherTok, _ := m.Generate(core.Actor{ID: "d2", Role: "dormer"})

	owner := func(r *http.Request) (string, error) {
		if r.URL.Path == "/missing" {
			return "", errors.New("ledger not found")
		}
		return "d1", nil
	}
	h := RequireAuth(m)(RequireOwnerOrRole(owner, RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	cases := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"admin", "/owned", adminTok, http.StatusNoContent},
		{"admin missing", "/missing", adminTok, http.StatusNoContent},
		{"owner", "/owned", ownerTok, http.StatusNoContent},
		{"other dormer", "/owned", otherTok, http.StatusForbidden},
		{"owner lookup fails", "/missing", ownerTok, http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		req.Header.Set("Authorization", "Bearer "+tc.token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, rec.Code)
		}
	}
}
