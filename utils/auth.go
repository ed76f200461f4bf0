// utils/auth.go
package utils

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Supabase roles carried in the "role" claim.
const (
	RoleAuthenticated = "authenticated"
	RoleService       = "service_role"
)

// GenerateToken signs an HS256 token shaped like the ones Supabase Auth issues.
func GenerateToken(userID, secret string, ttl time.Duration) (string, error) {
	return GenerateRoleToken(userID, RoleAuthenticated, secret, ttl)
}

func GenerateRoleToken(userID, role, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret not set")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  now.Add(ttl).Unix(),
		"iat":  now.Unix(),
	})
	return token.SignedString([]byte(secret))
}

// AuthMiddleware verifies the Supabase access token and exposes its subject as "userId".
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.GetHeader("Authorization")
		if tokenString == "" {
			RespondWithError(c, http.StatusUnauthorized, "Authorization header required")
			return
		}

		if len(tokenString) > 7 && strings.ToUpper(tokenString[0:6]) == "BEARER" {
			tokenString = tokenString[7:]
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(secret), nil
		})

		if err != nil || !token.Valid {
			RespondWithError(c, http.StatusUnauthorized, "Invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			RespondWithError(c, http.StatusUnauthorized, "Invalid token claims")
			return
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			RespondWithError(c, http.StatusUnauthorized, "Token has no subject")
			return
		}

		role, _ := claims["role"].(string)

		c.Set("userId", sub)
		c.Set("role", role)
		c.Next()
	}
}

// RequireRole rejects tokens whose role claim is not one of roles. Must run after AuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString("role")
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		RespondWithError(c, http.StatusForbidden, "Insufficient role")
	}
}
