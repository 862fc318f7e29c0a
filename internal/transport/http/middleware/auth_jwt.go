package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"gin-gorm-bookstore/internal/core/auth"
	resp "gin-gorm-bookstore/internal/transport/http/response"
)

const (
	KeyClaims = "claims"
	KeyUserID = "userId"
	KeyRole   = "role"
)

// TokenParser 由 *auth.JWTer 实现
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// AuthJWT 校验 Bearer token；requireRole 为空则只要求登录
func AuthJWT(j TokenParser, requireRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ah := c.GetHeader("Authorization")
		if !strings.HasPrefix(ah, "Bearer ") {
			resp.Abort(c, http.StatusUnauthorized, "missing token")
			return
		}
		claims, err := j.Parse(strings.TrimPrefix(ah, "Bearer "))
		if err != nil {
			resp.Abort(c, http.StatusUnauthorized, "invalid token")
			return
		}
		if requireRole != "" && claims.Role != requireRole {
			resp.Abort(c, http.StatusForbidden, "forbidden")
			return
		}
		c.Set(KeyClaims, claims)
		c.Set(KeyUserID, claims.UID)
		c.Set(KeyRole, claims.Role)
		c.Next()
	}
}
