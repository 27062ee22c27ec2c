package middleware

import (
	"net/http"

	"github.com/coinbox-app/coinbox-api/pkg"
	"github.com/gin-gonic/gin"
)

// RateLimit returns Gin middleware rejecting requests once the limiter runs dry.
// Applied to the write endpoints only; reads are cheap and stay unthrottled.
func RateLimit(limiter *pkg.DistributedLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.Request.Context()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, pkg.ErrorResponse{
				Code:    pkg.ErrRateLimitedCode.Code,
				Message: pkg.ErrRateLimitedCode.Message,
			})
			return
		}
		c.Next()
	}
}
