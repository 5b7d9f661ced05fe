package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// SecureHeadersConfig contains configuration for secure headers
type SecureHeadersConfig struct {
	UseHSTS        bool
	HSTSMaxAge     time.Duration
	XFrameOptions  string
	ReferrerPolicy string
}

// DefaultSecureHeadersConfig returns the headers for a JSON API. HSTS is
// only sent in production, behind TLS.
func DefaultSecureHeadersConfig(production bool) SecureHeadersConfig {
	return SecureHeadersConfig{
		UseHSTS:        production,
		HSTSMaxAge:     365 * 24 * time.Hour,
		XFrameOptions:  "DENY",
		ReferrerPolicy: "no-referrer",
	}
}

// SecureHeadersMiddleware adds security headers to responses
func SecureHeadersMiddleware(config SecureHeadersConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.UseHSTS {
			c.Header("Strict-Transport-Security",
				"max-age="+strconv.FormatInt(int64(config.HSTSMaxAge.Seconds()), 10)+"; includeSubDomains")
		}
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", config.XFrameOptions)
		c.Header("Referrer-Policy", config.ReferrerPolicy)
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
