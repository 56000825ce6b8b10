package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Rodovar-GPS/GPS/internal/service"
)

// Context keys under which JWTAuth stores the token claims.
const (
	ContextKeyUsername     = "auth_username"
	ContextKeyRole         = "auth_role"
	ContextKeyShipmentCode = "auth_shipment_code"
)

// JWTAuth validates the Bearer token in the Authorization header and stores
// its claims in the gin context. Requests without a valid token are aborted
// with 401.
func JWTAuth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format; expected 'Bearer <token>'"})
			return
		}

		claims, err := authService.ValidateAccessToken(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(ContextKeyUsername, claims.Username)
		c.Set(ContextKeyRole, claims.Role)
		c.Set(ContextKeyShipmentCode, claims.ShipmentCode)
		c.Next()
	}
}

// RequireRole aborts with 403 unless the authenticated role is one of
// allowed. Must run after JWTAuth.
func RequireRole(allowed ...string) gin.HandlerFunc {
	roleSet := make(map[string]bool, len(allowed))
	for _, r := range allowed {
		roleSet[r] = true
	}

	return func(c *gin.Context) {
		role, exists := c.Get(ContextKeyRole)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if r, ok := role.(string); !ok || !roleSet[r] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}
		c.Next()
	}
}

// RequireShipment admits driver tokens that are bound to a shipment.
func RequireShipment() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextKeyRole) != service.RoleDriver || c.GetString(ContextKeyShipmentCode) == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "driver token required"})
			return
		}
		c.Next()
	}
}

// ShipmentCode returns the shipment the driver token is scoped to.
func ShipmentCode(c *gin.Context) string { return c.GetString(ContextKeyShipmentCode) }

// Username returns the authenticated admin username.
func Username(c *gin.Context) string { return c.GetString(ContextKeyUsername) }
