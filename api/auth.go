package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

type apiJWT struct {
	Subject   string  `json:"sub"`
	Email     *string `json:"email"`
	ExpiresAt int64   `json:"exp"`
	IssuedAt  int64   `json:"iat"`
}

// authMiddleware verifies the bearer token and stashes the caller's
// subject in the gin context as "userAccountID".
func (m ApiHandler) authMiddleware(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		returnErrorJsonCode(fmt.Errorf("missing authorization header"), c, 401)
		return
	}
	tokenStr := strings.TrimPrefix(header, "Bearer ")

	parsed, err := parseApiJWT(tokenStr, m.JwtSecret)
	if err != nil {
		returnErrorJsonCode(fmt.Errorf("failed to authenticate: %w", err), c, 401)
		return
	}

	c.Set("userAccountID", parsed.Subject)
	c.Next()
}

func parseApiJWT(jwtStr string, secret string) (*apiJWT, error) {
	token, err := jwt.Parse(jwtStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("failed to parse claims")
	}

	out := apiJWT{}
	if sub, ok := claims["sub"].(string); ok {
		out.Subject = sub
	}
	if email, ok := claims["email"].(string); ok {
		out.Email = &email
	}
	if exp, ok := claims["exp"].(float64); ok {
		out.ExpiresAt = int64(exp)
	}
	if iat, ok := claims["iat"].(float64); ok {
		out.IssuedAt = int64(iat)
	}

	if out.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	if time.Now().UTC().Unix() > out.ExpiresAt {
		return nil, fmt.Errorf("jwt is expired")
	}

	return &out, nil
}
