package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func runMiddleware(t *testing.T, mw echo.MiddlewareFunc, authHeader string) (echo.Context, bool, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	c := e.NewContext(req, httptest.NewRecorder())

	var called bool
	var seen echo.Context
	err := mw(func(c echo.Context) error {
		called = true
		seen = c
		return c.String(http.StatusOK, "ok")
	})(c)
	if seen == nil {
		seen = c
	}
	return seen, called, err
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, called, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "")
	if called {
		t.Error("handler must not run without a token")
	}
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	for _, header := range []string{"Token abc123", "Bearer", "Basic dXNlcjpwYXNz"} {
		t.Run(header, func(t *testing.T) {
			_, _, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), header)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	cfg := JWTConfig{Issuer: "agenda", SigningKey: testSigningKey}
	token, err := IssueToken(cfg, "user-123", "consultorio", []string{RoleTherapist}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	c, called, err := runMiddleware(t, JWTMiddleware(cfg), "Bearer "+token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("expected handler to be called")
	}
	ctx := c.Request().Context()
	if uid := UserIDFromContext(ctx); uid != "user-123" {
		t.Errorf("expected user-123, got %s", uid)
	}
	if roles := RolesFromContext(ctx); len(roles) != 1 || roles[0] != RoleTherapist {
		t.Errorf("expected [therapist], got %v", roles)
	}
	if tid, _ := c.Get("jwt_tenant_id").(string); tid != "consultorio" {
		t.Errorf("expected consultorio, got %s", tid)
	}
}

func TestJWTMiddleware_Rejects(t *testing.T) {
	cfg := JWTConfig{Issuer: "agenda", SigningKey: testSigningKey}

	expired, _ := IssueToken(cfg, "u", "t", nil, -time.Minute)
	wrongKey, _ := IssueToken(JWTConfig{Issuer: "agenda", SigningKey: []byte("other")}, "u", "t", nil, time.Hour)
	wrongIssuer, _ := IssueToken(JWTConfig{Issuer: "someone-else", SigningKey: testSigningKey}, "u", "t", nil, time.Hour)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := map[string]string{
		"expired":      expired,
		"wrong key":    wrongKey,
		"wrong issuer": wrongIssuer,
		"alg none":     none,
		"garbage":      "not.a.jwt",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, called, err := runMiddleware(t, JWTMiddleware(cfg), "Bearer "+token)
			if called {
				t.Error("handler must not run")
			}
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestDevAuthMiddleware_Defaults(t *testing.T) {
	c, called, err := runMiddleware(t, DevAuthMiddleware(JWTConfig{SigningKey: testSigningKey}, "default"), "")
	if err != nil || !called {
		t.Fatalf("expected pass-through, got %v", err)
	}
	if tid, _ := c.Get("jwt_tenant_id").(string); tid != "default" {
		t.Errorf("expected default tenant, got %s", tid)
	}
	if roles := RolesFromContext(c.Request().Context()); len(roles) != 1 || roles[0] != RoleAdmin {
		t.Errorf("expected admin, got %v", roles)
	}
}

func TestDevAuthMiddleware_ValidatesPresentToken(t *testing.T) {
	_, called, err := runMiddleware(t, DevAuthMiddleware(JWTConfig{SigningKey: testSigningKey}, "default"), "Bearer junk")
	if called {
		t.Error("a bad token must be rejected even in development")
	}
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_WebSocketQueryToken(t *testing.T) {
	cfg := JWTConfig{Issuer: "agenda", SigningKey: testSigningKey}
	token, _ := IssueToken(cfg, "user-1", "consultorio", []string{RoleAssistant}, time.Hour)

	run := func(upgrade string) (bool, error) {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/live?access_token="+token, nil)
		if upgrade != "" {
			req.Header.Set("Upgrade", upgrade)
		}
		c := e.NewContext(req, httptest.NewRecorder())
		var called bool
		err := JWTMiddleware(cfg)(func(c echo.Context) error {
			called = true
			return nil
		})(c)
		return called, err
	}

	called, err := run("websocket")
	if err != nil || !called {
		t.Fatalf("expected handshake token to be accepted, got %v", err)
	}

	called, err = run("")
	if called {
		t.Error("query tokens must only be honoured on WebSocket handshakes")
	}
	expectStatus(t, err, http.StatusUnauthorized)
}
