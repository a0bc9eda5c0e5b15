package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func newAuthRouter(opts AuthOptions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.Use(Auth(opts))
	r.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, UserIDFrom(c))
	})
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestAuth_ValidJWT(t *testing.T) {
	r := newAuthRouter(AuthOptions{JWTSecret: testSecret})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "user-42"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "user-42" {
		t.Fatalf("status %d, body %q; want 200 user-42", w.Code, w.Body.String())
	}
}

func TestAuth_RejectsBadTokens(t *testing.T) {
	r := newAuthRouter(AuthOptions{JWTSecret: testSecret})

	cases := map[string]string{
		"wrong secret": "Bearer " + signToken(t, "other-secret", "user-42"),
		"garbage":      "Bearer not.a.jwt",
		"no subject":   "Bearer " + signToken(t, testSecret, ""),
	}
	for name, authz := range cases {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", authz)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d; want 401", name, w.Code)
		}
	}
}

func TestAuth_RejectsNonHS256(t *testing.T) {
	r := newAuthRouter(AuthOptions{JWTSecret: testSecret})

	// alg=none style token must not be accepted.
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "user-42"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d; want 401", w.Code)
	}
}

func TestAuth_HeaderFallback(t *testing.T) {
	// Fallback disabled: X-User-ID is ignored.
	r := newAuthRouter(AuthOptions{JWTSecret: testSecret})
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-User-ID", "dev-user")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("fallback disabled: status = %d; want 401", w.Code)
	}

	// Fallback enabled: the header is the identity.
	r = newAuthRouter(AuthOptions{JWTSecret: testSecret, AllowHeaderFallback: true})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "dev-user" {
		t.Fatalf("fallback enabled: status %d, body %q", w.Code, w.Body.String())
	}
}

func TestAuth_MissingIdentity(t *testing.T) {
	r := newAuthRouter(AuthOptions{JWTSecret: testSecret, AllowHeaderFallback: true})
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d; want 401", w.Code)
	}
	if got := w.Body.String(); !strings.Contains(got, `"code":"unauthorized"`) {
		t.Fatalf("body = %q; want unauthorized envelope", got)
	}
}

func TestAuth_SkipPaths(t *testing.T) {
	r := newAuthRouter(AuthOptions{JWTSecret: testSecret, SkipPaths: []string{"/health"}})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("skip path status = %d; want 200", w.Code)
	}
}
