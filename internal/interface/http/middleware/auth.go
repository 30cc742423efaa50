package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xiebiao/biblioteca/internal/domain/user"
	apperrors "github.com/xiebiao/biblioteca/pkg/errors"
	"github.com/xiebiao/biblioteca/pkg/jwt"
	"github.com/xiebiao/biblioteca/pkg/response"
)

// Context键
const (
	ctxUserID         = "user_id"
	ctxEmail          = "email"
	ctxRole           = "role"
	ctxTokenID        = "token_id"
	ctxTokenExpiresAt = "token_expires_at"
)

// TokenBlacklist 已注销Token查询（redis.SessionStore实现）
type TokenBlacklist interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// AuthMiddleware JWT认证中间件
// 验证Token后把操作者身份写入Context，用例通过GetActor拿到user.Actor
type AuthMiddleware struct {
	jwtManager *jwt.Manager
	blacklist  TokenBlacklist
}

// NewAuthMiddleware 创建认证中间件
func NewAuthMiddleware(jwtManager *jwt.Manager, blacklist TokenBlacklist) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
		blacklist:  blacklist,
	}
}

// RequireAuth 要求登录
// 格式：Authorization: Bearer <token>
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Error(c, apperrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.ErrorWithCode(c, apperrors.ErrCodeInvalidToken, "Token格式错误")
			c.Abort()
			return
		}

		claims, err := m.jwtManager.ParseToken(parts[1])
		if err != nil {
			response.Error(c, err) // ErrTokenExpired / ErrInvalidToken
			c.Abort()
			return
		}

		role, ok := user.ParseRole(claims.Role)
		if !ok {
			response.Error(c, apperrors.ErrInvalidToken)
			c.Abort()
			return
		}

		// 已登出的Token
		revoked, err := m.blacklist.IsRevoked(c.Request.Context(), claims.ID)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		if revoked {
			response.ErrorWithCode(c, apperrors.ErrCodeTokenExpired, "Token已失效，请重新登录")
			c.Abort()
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxEmail, claims.Email)
		c.Set(ctxRole, role)
		c.Set(ctxTokenID, claims.ID)
		if claims.ExpiresAt != nil {
			c.Set(ctxTokenExpiresAt, claims.ExpiresAt.Time)
		}

		c.Next()
	}
}

// RequireStaff 要求馆员身份，需放在RequireAuth之后
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !GetActor(c).IsStaff() {
			response.Error(c, apperrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetUserID 当前登录用户ID，未登录返回0
func GetUserID(c *gin.Context) uint {
	if v, ok := c.Get(ctxUserID); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

// GetEmail 当前登录用户邮箱
func GetEmail(c *gin.Context) string {
	return c.GetString(ctxEmail)
}

// GetActor 当前操作者，未登录时为零值（非馆员、ID为0）
func GetActor(c *gin.Context) user.Actor {
	actor := user.Actor{UserID: GetUserID(c)}
	if v, ok := c.Get(ctxRole); ok {
		if role, ok := v.(user.Role); ok {
			actor.Role = role
		}
	}
	return actor
}

// GetToken 当前Access Token的jti与过期时间（登出时使用）
func GetToken(c *gin.Context) (string, time.Time) {
	var expiresAt time.Time
	if v, ok := c.Get(ctxTokenExpiresAt); ok {
		expiresAt, _ = v.(time.Time)
	}
	return c.GetString(ctxTokenID), expiresAt
}
