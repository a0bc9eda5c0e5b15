// Authentication middleware.
//
// This file verifies the caller's identity before any API handler runs. The
// token format is treated as an external contract: an HS256-signed bearer JWT
// whose subject claim is the opaque user id. No user records are kept here;
// whatever the subject says is the identity.
//
// For local development and tests, an X-User-ID header fallback can be
// enabled so requests do not need real tokens. Requests with no usable
// identity are aborted with a JSON 401 envelope carrying the request ID.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// userIDKey is the Gin context key under which the authenticated user id is
// stored for handlers and the access logger.
const userIDKey = "userID"

// AuthOptions configures the Auth middleware.
type AuthOptions struct {
	// JWTSecret is the HS256 signing secret. Empty disables JWT verification,
	// leaving only the header fallback (when enabled).
	JWTSecret string
	// AllowHeaderFallback accepts a plain X-User-ID header as identity when
	// no bearer token is present. Keep this off outside dev/test setups.
	AllowHeaderFallback bool
	// SkipPaths lists request paths exempt from authentication (health,
	// metrics, docs). A listed path also exempts everything nested under it.
	SkipPaths []string
}

// Auth enforces caller identity on every request.
//
// Resolution order:
//  1. Bearer JWT from the Authorization header (HS256, subject = user id).
//  2. X-User-ID header, only when AllowHeaderFallback is set.
//
// On success the user id is stored in the Gin context under "userID"; on
// failure the request is aborted with 401 and the standard error envelope.
func Auth(opts AuthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if skipAuth(c.Request.URL.Path, opts.SkipPaths) {
			c.Next()
			return
		}

		if token, ok := bearerToken(c.GetHeader("Authorization")); ok {
			uid, err := verifyHS256(token, opts.JWTSecret)
			if err != nil {
				abortUnauthorized(c, "invalid token")
				return
			}
			c.Set(userIDKey, uid)
			c.Next()
			return
		}

		if opts.AllowHeaderFallback {
			if uid := strings.TrimSpace(c.GetHeader("X-User-ID")); uid != "" {
				c.Set(userIDKey, uid)
				c.Next()
				return
			}
		}

		abortUnauthorized(c, "authentication required")
	}
}

// UserIDFrom returns the authenticated user id stored by Auth, or "".
func UserIDFrom(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// verifyHS256 parses and validates an HS256 JWT and returns its subject.
func verifyHS256(token, secret string) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwt.RegisteredClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	if !parsed.Valid {
		return "", errors.New("invalid token")
	}
	if claims.Subject == "" {
		return "", errors.New("subject claim required")
	}
	return claims.Subject, nil
}

// skipAuth reports whether path is exempt (exact match or nested under an
// exempt path).
func skipAuth(path string, skipPaths []string) bool {
	for _, p := range skipPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// bearerToken extracts the token from an Authorization header value.
func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// abortUnauthorized writes the standard 401 envelope with the request ID.
func abortUnauthorized(c *gin.Context, msg string) {
	rid, _ := c.Get(requestIDKey)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": asString(rid),
		"code":       "unauthorized",
		"message":    msg,
	})
}
