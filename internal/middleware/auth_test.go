package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSignAndVerifyToken(t *testing.T) {
	secret := "test-secret"
	claims := TokenClaims{
		Sub:    "user-123",
		Locale: "yo",
		Exp:    time.Now().Add(time.Hour).Unix(),
		Issuer: "tester",
	}
	token, err := SignToken(secret, claims)
	if err != nil {
		t.Fatalf("SignToken() unexpected error: %v", err)
	}
	parsed, err := VerifyToken(secret, token)
	if err != nil {
		t.Fatalf("VerifyToken() unexpected error: %v", err)
	}
	if parsed.Sub != claims.Sub || parsed.Locale != claims.Locale {
		t.Fatalf("VerifyToken() returned %+v, want %+v", parsed, claims)
	}
}

func TestVerifyTokenInvalidSignature(t *testing.T) {
	token, err := SignToken("secret-a", TokenClaims{Sub: "user-123"})
	if err != nil {
		t.Fatalf("SignToken() error: %v", err)
	}
	if _, err := VerifyToken("secret-b", token); err == nil {
		t.Fatalf("VerifyToken() expected invalid signature error")
	}
}

func TestVerifyTokenExpired(t *testing.T) {
	token, err := SignToken("secret", TokenClaims{
		Sub: "user-123",
		Exp: time.Now().Add(-time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("SignToken() error: %v", err)
	}
	if _, err := VerifyToken("secret", token); err == nil {
		t.Fatalf("VerifyToken() expected expiration error")
	}
}

func TestVerifyTokenMissingSubject(t *testing.T) {
	token, err := SignToken("secret", TokenClaims{Locale: "en"})
	if err != nil {
		t.Fatalf("SignToken() error: %v", err)
	}
	if _, err := VerifyToken("secret", token); err == nil {
		t.Fatalf("VerifyToken() expected missing subject error")
	}
}

func TestAuthMiddleware(t *testing.T) {
	secret := "test-secret"
	var gotUser string
	handler := Auth(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	// no header
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Auth without header status = %d, want 401", rec.Code)
	}

	// garbage token
	req := httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Auth with garbage token status = %d, want 401", rec.Code)
	}

	// valid token
	token, err := SignToken(secret, TokenClaims{Sub: "user-9", Exp: time.Now().Add(time.Hour).Unix()})
	if err != nil {
		t.Fatalf("SignToken() error: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Auth with valid token status = %d, want 204", rec.Code)
	}
	if gotUser != "user-9" {
		t.Fatalf("Auth stored user id %q, want user-9", gotUser)
	}
}
