package middleware

import (
	"net/http"
	"strings"
	"time"

	"pkgsync/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const bearerPrefix = "Bearer "

/**
 * Issue an upload token for the blob mirror
 * @param {string} secret - HMAC secret shared with the mirror (server.token_secret)
 * @param {string} subject - Who the token is issued to, e.g. a builder name
 * @param {time.Duration} ttl - Lifetime, 0 issues a token that never expires
 * @returns {string} Signed HS256 token
 */
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken verifies tokenString against secret and returns its claims.
func ParseToken(secret, tokenString string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

/**
 * 写操作鉴权中间件
 * @param {string} secret - HMAC secret, empty lets every request through
 * @description
 * - 从Authorization头取Bearer令牌
 * - 校验签名和过期时间
 * - 校验失败返回401
 */
func RequireToken(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Code: "auth.missing", Message: "missing bearer token"})
			return
		}
		claims, err := ParseToken(secret, strings.TrimPrefix(auth, bearerPrefix))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Code: "auth.invalid", Message: err.Error()})
			return
		}
		c.Set("subject", claims.Subject)
		c.Next()
	}
}
