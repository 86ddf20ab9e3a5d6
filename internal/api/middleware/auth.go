package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/patientid/internal/domain"
)

// AdminAuth protects the descriptor administration routes with a single
// shared key sent as a Bearer token. Keys are compared as SHA-256 digests
// in constant time.
func AdminAuth(apiKey string) fiber.Handler {
	expected := hashAPIKey(apiKey)

	return func(c *fiber.Ctx) error {
		// 1. Extract Bearer token
		token := extractBearerToken(c)
		if token == "" || apiKey == "" {
			return domain.ErrUnauthorized
		}

		// 2. Compare digests
		got := hashAPIKey(token)
		if subtle.ConstantTimeCompare(got[:], expected[:]) != 1 {
			return domain.ErrUnauthorized
		}

		return c.Next()
	}
}

// extractBearerToken extracts token from Authorization header
func extractBearerToken(c *fiber.Ctx) string {
	auth := c.Get("Authorization")
	if auth == "" {
		return ""
	}

	// Expected format: "Bearer <token>"
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

func hashAPIKey(apiKey string) [sha256.Size]byte {
	return sha256.Sum256([]byte(apiKey))
}
