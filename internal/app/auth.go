package app

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const principalKey = "principal"

// Principal is the authenticated owner-side caller. OwnerID is the JWT
// subject and is empty for static tokens.
type Principal struct {
	OwnerID string
	Method  string
}

// AuthMiddleware accepts a bearer token that is either an HMAC-signed JWT
// or one of the static tokens.
func AuthMiddleware(staticTokens []string, jwtSecret string) gin.HandlerFunc {
	tokens := make([][]byte, 0, len(staticTokens))
	for _, t := range staticTokens {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, []byte(t))
		}
	}
	secret := []byte(strings.TrimSpace(jwtSecret))

	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}
		parts := strings.Fields(auth)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		tokenStr := parts[1]

		if len(secret) > 0 {
			var claims jwt.RegisteredClaims
			_, err := jwt.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) {
				return secret, nil
			},
				jwt.WithLeeway(5*time.Second),
				jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
			)
			if err == nil {
				c.Set(principalKey, &Principal{OwnerID: claims.Subject, Method: "jwt"})
				c.Next()
				return
			}
		}

		for _, t := range tokens {
			if subtle.ConstantTimeCompare([]byte(tokenStr), t) == 1 {
				c.Set(principalKey, &Principal{Method: "static"})
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	}
}

// PrincipalFrom returns the caller set by AuthMiddleware, or nil.
func PrincipalFrom(c *gin.Context) *Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*Principal)
	return p
}
