package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/arbos-dev/arbos-api/internal/middleware"
	"github.com/arbos-dev/arbos-api/internal/models"
)

// claimsFromContext pulls the authenticated claims set by the JWT middleware.
func claimsFromContext(c *gin.Context) (*models.JWTClaims, bool) {
	value, exists := c.Get(middleware.ContextKeyClaims)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok
}
