package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/personapal/internal/auth"
	"github.com/suPer8Hu/personapal/internal/common"
)

const (
	UserIDKey    = "user_id"
	UserEmailKey = "user_email"
)

func bearer(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearer(c)
		if tok == "" {
			common.Fail(c, http.StatusUnauthorized, 40101, "missing bearer token")
			c.Abort()
			return
		}
		claims, err := auth.ParseJWT(tok, secret)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, 40102, "invalid token")
			c.Abort()
			return
		}
		c.Set(UserIDKey, claims.Subject)
		c.Set(UserEmailKey, claims.Email)
		c.Next()
	}
}

// AuthOptional attaches the caller when a valid token is present and lets
// anonymous (demo) requests through otherwise.
func AuthOptional(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tok := bearer(c); tok != "" {
			if claims, err := auth.ParseJWT(tok, secret); err == nil {
				c.Set(UserIDKey, claims.Subject)
				c.Set(UserEmailKey, claims.Email)
			}
		}
		c.Next()
	}
}

// UserID returns "" for anonymous callers.
func UserID(c *gin.Context) string {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return ""
	}
	id, _ := v.(string)
	return id
}

func UserEmail(c *gin.Context) string {
	v, ok := c.Get(UserEmailKey)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
