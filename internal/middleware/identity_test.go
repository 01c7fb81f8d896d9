package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fleet-usage-control/internal/utils"
)

func identityContext(t *testing.T, token string) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.NewContext(req, httptest.NewRecorder())
}

func TestCurrentUserIDPrefersContextValue(t *testing.T) {
	c := identityContext(t, "")
	c.Set("user_id", float64(42))
	if got := currentUserID(c); got != "42" {
		t.Fatalf("currentUserID = %q, want 42", got)
	}
}

// The limiter runs before JWTAuth, so the user dimension has to come out
// of the bearer token itself when the context carries nothing.
func TestCurrentUserIDFallsBackToBearer(t *testing.T) {
	tok, err := utils.NewAccessToken(testSecret, 7, "motorista", 5)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	if got := currentUserID(identityContext(t, tok.Token)); got != "7" {
		t.Fatalf("currentUserID = %q, want 7", got)
	}
}

func TestCurrentUserIDAnonymous(t *testing.T) {
	if got := currentUserID(identityContext(t, "")); got != "anon" {
		t.Fatalf("no credentials: currentUserID = %q, want anon", got)
	}
	if got := currentUserID(identityContext(t, "not-a-jwt")); got != "anon" {
		t.Fatalf("garbage token: currentUserID = %q, want anon", got)
	}
}
