package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"openlend.ai/position-cache/app/interfaces/http/responses"
	"openlend.ai/position-cache/config/environment_variables"
)

// AdminKeyMiddleware guards the operator surface with the shared admin
// secret. A deployment without a configured secret exposes no admin API.
func AdminKeyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := environment_variables.EnvironmentVariables.ADMIN_API_SECRET
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, responses.ErrorResponse{
				Code:  "a3d9d7b0-6f31-4c1b-9a7e-2f4a1e8c5d10",
				Error: "admin API disabled",
			})
			return
		}
		provided := c.GetHeader("X-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, responses.ErrorResponse{
				Code:  "f1c2b6e4-8a5d-4e0f-b3a9-6c7d8e9f0a1b",
				Error: "invalid admin key",
			})
			return
		}
		c.Next()
	}
}
