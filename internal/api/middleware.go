package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/carepulse/carepulse/internal/metrics"
)

const tokenTTL = 7 * 24 * time.Hour

func (s *Server) authMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth := c.Get("Authorization")
		if auth == "" {
			return c.Status(401).JSON(fiber.Map{"error": "missing authorization header"})
		}

		tokenString := strings.TrimPrefix(auth, "Bearer ")
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			return []byte(s.config.Security.JWTSecret), nil
		})

		if err != nil || !token.Valid {
			return c.Status(401).JSON(fiber.Map{"error": "invalid token"})
		}

		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			if sub, ok := claims["sub"].(string); ok {
				c.Locals("userID", sub)
			}
		}

		return c.Next()
	}
}

func (s *Server) requestMetrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		metrics.RecordRequest(err == nil && c.Response().StatusCode() < 500)
		return err
	}
}

func (s *Server) signToken(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(tokenTTL).Unix(),
	})
	return token.SignedString([]byte(s.config.Security.JWTSecret))
}

func (s *Server) userID(c *fiber.Ctx) string {
	id, _ := c.Locals("userID").(string)
	return id
}
