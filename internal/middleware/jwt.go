package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sangam-association/backend/internal/auth"
	"github.com/sangam-association/backend/pkg/response"
)

const (
	// ContextMemberID is the key for the authenticated member's ID in gin context.
	ContextMemberID = "member_id"
	// ContextMemberRole is the key for the member's role in gin context.
	ContextMemberRole = "member_role"
	// ContextMemberPhone is the key for the member's phone in gin context.
	ContextMemberPhone = "member_phone"
)

// JWT returns a middleware that validates the bearer token and sets member claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextMemberID, claims.MemberID)
		c.Set(ContextMemberRole, claims.Role)
		c.Set(ContextMemberPhone, claims.Phone)
		c.Next()
	}
}

// MemberID returns the authenticated member's ID from context, or 0 when absent.
func MemberID(c *gin.Context) int64 {
	v, ok := c.Get(ContextMemberID)
	if !ok {
		return 0
	}
	id, _ := v.(int64)
	return id
}
