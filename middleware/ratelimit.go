package middleware

import (
	"net/http"

	"github.com/derpycloud/derpycloud/application/dependency"
	"github.com/derpycloud/derpycloud/pkg/conf"
	"github.com/gin-gonic/gin"
)

// RateLimit rejects clients exceeding the configured request rate with 429.
// A non-positive RequestsPerSecond disables the limiter.
func RateLimit(config *conf.RateLimit) gin.HandlerFunc {
	burst := config.Burst
	if burst <= 0 {
		burst = 1
	}

	return func(c *gin.Context) {
		if config.RequestsPerSecond <= 0 {
			c.Next()
			return
		}

		dep := dependency.FromContext(c.Request.Context())
		if !dep.TPSLimiter().Allow(c.ClientIP(), config.RequestsPerSecond, burst) {
			dep.Metrics().RateLimited()
			c.Header("Retry-After", "1")
			c.String(http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
			c.Abort()
			return
		}

		c.Next()
	}
}
