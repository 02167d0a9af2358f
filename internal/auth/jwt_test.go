package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIssueAndVerify(t *testing.T) {
	ts := NewTokenService("test-secret")

	token, err := ts.Issue("user-1", "ann@example.com")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	claims, err := ts.Verify(token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("expected userId 'user-1', got %q", claims.UserID)
	}
	if claims.Email != "ann@example.com" {
		t.Errorf("expected email 'ann@example.com', got %q", claims.Email)
	}
}

func TestIssueWithoutSecret(t *testing.T) {
	ts := NewTokenService("")
	if _, err := ts.Issue("user-1", "ann@example.com"); err == nil {
		t.Fatal("expected error when signing key is unavailable")
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	ts := NewTokenService("test-secret")

	issued := time.Now()
	ts.now = func() time.Time { return issued }
	token, err := ts.Issue("user-1", "ann@example.com")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	// 61 minutes later the 1-hour token must be expired.
	ts.now = func() time.Time { return issued.Add(61 * time.Minute) }
	if _, err := ts.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	// Just inside the hour it is still valid.
	ts.now = func() time.Time { return issued.Add(59 * time.Minute) }
	if _, err := ts.Verify(token); err != nil {
		t.Fatalf("expected token to still verify at +59min, got %v", err)
	}
}

func TestVerifyMalformedToken(t *testing.T) {
	ts := NewTokenService("test-secret")
	if _, err := ts.Verify("not-a-jwt"); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed, got %v", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	token, err := NewTokenService("secret-a").Issue("user-1", "ann@example.com")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if _, err := NewTokenService("secret-b").Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestMiddlewareRejectsMissingHeader(t *testing.T) {
	ts := NewTokenService("test-secret")

	handlerCalled := false
	handler := ts.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/feed/posts", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if handlerCalled {
		t.Error("handler must not run without a token")
	}
}

func TestMiddlewareRejectsBadToken(t *testing.T) {
	ts := NewTokenService("test-secret")

	for _, header := range []string{
		"Bearer garbage",
		"Bearer ",
		"Basic abc123",
	} {
		handlerCalled := false
		handler := ts.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true
		}))

		req := httptest.NewRequest(http.MethodGet, "/feed/posts", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		// Token problems must never surface as server errors.
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, rec.Code)
		}
		if handlerCalled {
			t.Errorf("header %q: handler must not run", header)
		}
	}
}

func TestMiddlewareAttachesClaims(t *testing.T) {
	ts := NewTokenService("test-secret")
	token, err := ts.Issue("user-7", "bob@example.com")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	handlerCalled := false
	handler := ts.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			t.Fatal("expected claims in context")
		}
		if claims.UserID != "user-7" {
			t.Errorf("expected userId 'user-7', got %q", claims.UserID)
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/feed/posts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !handlerCalled {
		t.Error("handler should have run")
	}
}
