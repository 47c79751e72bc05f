// Package api holds the gin handlers for both attendance services.
package api

import (
	"net/http"

	"attendtrack/internal/auth"
	"attendtrack/internal/config"

	"github.com/gin-gonic/gin"
)

// CORS allows browser clients on both services.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// SecurityHeaders sets standard response hardening headers.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// failInternal hides error details from the client; the caller logs them.
func failInternal(c *gin.Context) {
	fail(c, http.StatusInternalServerError, "internal server error")
}

// tokenHandler exchanges the configured admin key for a bearer token.
func tokenHandler(cfg config.App, subject string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Key string `json:"key" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "missing required field: key")
			return
		}
		if cfg.AdminKey == "" || req.Key != cfg.AdminKey {
			fail(c, http.StatusUnauthorized, "invalid admin key")
			return
		}
		token, exp, err := auth.Issue(subject, "admin", cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err != nil {
			failInternal(c)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":      true,
			"access_token": token,
			"expires_at":   exp.Unix(),
		})
	}
}
