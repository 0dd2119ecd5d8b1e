package security

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIssueAndVerifyToken(t *testing.T) {
	secret := []byte("test-secret")
	tok, err := IssueToken("tui", secret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := VerifyToken(tok, secret)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "tui" {
		t.Errorf("expected tui, got %s", claims.Subject)
	}
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	tok, err := IssueToken("tui", []byte("right"), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := VerifyToken(tok, []byte("wrong")); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyTokenExpired(t *testing.T) {
	secret := []byte("s")
	tok, err := IssueToken("tui", secret, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := VerifyToken(tok, secret); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}

func TestAuthMiddleware(t *testing.T) {
	secret := []byte("s")
	handler := AuthMiddleware(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := ClaimsFromRequest(r)
		if err != nil {
			t.Errorf("claims missing: %v", err)
		} else if claims.Subject != "cli" {
			t.Errorf("expected cli, got %s", claims.Subject)
		}
		w.WriteHeader(http.StatusOK)
	}))

	// No token.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/status", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}

	// Valid token.
	tok, _ := IssueToken("cli", secret, time.Hour)
	req := httptest.NewRequest("GET", "/api/status", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestAuthMiddlewareDisabled(t *testing.T) {
	handler := AuthMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/status", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with auth disabled, got %d", rec.Code)
	}
}
