package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextKeyAPIKey holds a fingerprint of the caller's API key once authenticated.
const ContextKeyAPIKey = "apiKeyID"

// APIKeyMiddleware accepts `Authorization: Bearer <key>` or `X-API-Key: <key>`.
// With no keys configured every request passes.
func APIKeyMiddleware(keys []string) gin.HandlerFunc {
	allowed := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			allowed = append(allowed, []byte(k))
		}
	}
	return func(c *gin.Context) {
		if len(allowed) == 0 {
			c.Next()
			return
		}
		presented := presentedKey(c)
		if presented == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "missing API key"})
			return
		}
		if !matches(allowed, []byte(presented)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "invalid API key"})
			return
		}
		c.Set(ContextKeyAPIKey, fingerprint(presented))
		c.Next()
	}
}

func presentedKey(c *gin.Context) string {
	if k := strings.TrimSpace(c.GetHeader("X-API-Key")); k != "" {
		return k
	}
	auth := c.GetHeader("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func matches(allowed [][]byte, presented []byte) bool {
	ok := 0
	for _, k := range allowed {
		ok |= subtle.ConstantTimeCompare(k, presented)
	}
	return ok == 1
}

func fingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:6])
}

// clientKey picks the rate-limit key: the API key fingerprint when present,
// otherwise the client IP.
func clientKey(c *gin.Context) string {
	if v, ok := c.Get(ContextKeyAPIKey); ok {
		if id, ok := v.(string); ok && id != "" {
			return "key:" + id
		}
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}
