package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/teerapat-ch/eventhub/pkg/response"
)

// Context keys populated by the auth middleware.
const (
	ContextKeyUserID    = "user_id"
	ContextKeyUserName  = "user_name"
	ContextKeyUserEmail = "user_email"
)

// AuthConfig holds JWT verification settings
type AuthConfig struct {
	Secret string
	Issuer string
}

// PrincipalClaims are the claims the service trusts from the auth collaborator
type PrincipalClaims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Auth returns a middleware that verifies the bearer token and stores the
// authenticated principal in the gin context. The service performs no
// credential checks itself; identity issuance belongs to the auth service.
func Auth(cfg *AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}

		claims := &PrincipalClaims{}
		parserOpts := []jwt.ParserOption{
			jwt.WithValidMethods([]string{"HS256"}),
		}
		if cfg.Issuer != "" {
			parserOpts = append(parserOpts, jwt.WithIssuer(cfg.Issuer))
		}

		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(cfg.Secret), nil
		}, parserOpts...)
		if err != nil || !token.Valid {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		if claims.Subject == "" {
			response.Unauthorized(c, "token missing subject")
			c.Abort()
			return
		}

		c.Set(ContextKeyUserID, claims.Subject)
		c.Set(ContextKeyUserName, claims.Name)
		c.Set(ContextKeyUserEmail, claims.Email)
		c.Next()
	}
}
