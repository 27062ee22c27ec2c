package middleware

import (
	"net/http"
	"strconv"

	"github.com/coinbox-app/coinbox-api/pkg"
	"github.com/gin-gonic/gin"
)

// Owner returns Gin middleware that scopes requests to the authenticated user.
// Authentication itself happens upstream (gateway / auth service); this layer
// only trusts the X-User-Id header it forwards. Requests without a positive
// integer id are rejected.
func Owner() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Request.Header.Get(pkg.HeaderUserId)
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, pkg.ErrorResponse{
				Code:    pkg.ErrUnauthorizedCode.Code,
				Message: pkg.ErrUnauthorizedCode.Message,
			})
			return
		}
		c.Set(pkg.UserId, userID)
		c.Next()
	}
}
