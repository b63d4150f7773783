package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"distribution-service/pkg/config"
	"distribution-service/pkg/errno"
	"distribution-service/pkg/restapi"
)

// AuthMiddleware 解析 Bearer JWT（HS256），subject 即用户ID。
// 未配置 secret 时退化为信任网关注入的 X-User-UUID。
func AuthMiddleware(cfg config.JWTConfig) gin.HandlerFunc {
	secret := []byte(cfg.Secret)
	return func(c *gin.Context) {
		if len(secret) == 0 {
			if user := strings.TrimSpace(c.GetHeader("X-User-UUID")); user != "" {
				c.Set(ContextUserUUID, user)
				c.Next()
				return
			}
			restapi.Failed(c, errno.ErrUnauthorized)
			return
		}

		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(raw, "Bearer ") {
			restapi.Failed(c, errno.ErrUnauthorized)
			return
		}
		subject, err := ParseToken(strings.TrimPrefix(raw, "Bearer "), secret, cfg.Issuer)
		if err != nil {
			restapi.Failed(c, errno.NewBizError(errno.ErrUnauthorized, err))
			return
		}
		c.Set(ContextUserUUID, subject)
		c.Next()
	}
}

// ParseToken 校验签名、有效期与签发者，返回 subject
func ParseToken(token string, secret []byte, issuer string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return "", err
	}
	if !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("token subject missing")
	}
	return claims.Subject, nil
}
