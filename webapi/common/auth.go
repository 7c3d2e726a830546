package common

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amirasaad/checkoutflow/pkg/config"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// OwnerClaim is the JWT claim naming the owner of checkout sessions.
const OwnerClaim = "user_id"

var errMissingOwner = errors.New("token has no user_id claim")

// JwtProtected verifies HS256 bearer tokens signed with cfg.Secret.
func JwtProtected(cfg *config.Jwt) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   jwtware.SigningKey{JWTAlg: jwtware.HS256, Key: []byte(cfg.Secret)},
		ErrorHandler: jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if strings.EqualFold(err.Error(), "missing or malformed JWT") {
		return ProblemDetailsJSON(c, "Missing or malformed JWT", err, fiber.StatusBadRequest)
	}
	return ProblemDetailsJSON(c, "Invalid or expired JWT", err, fiber.StatusUnauthorized)
}

// OwnerID returns the user_id claim of the verified token.
func OwnerID(c *fiber.Ctx) (string, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return "", errMissingOwner
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errMissingOwner
	}
	switch v := claims[OwnerClaim].(type) {
	case string:
		if v == "" {
			return "", errMissingOwner
		}
		return v, nil
	case float64:
		return fmt.Sprintf("%.0f", v), nil
	default:
		return "", errMissingOwner
	}
}

// SignToken issues a token for ownerID. It serves tests and local tooling.
func SignToken(cfg *config.Jwt, ownerID string, issued time.Time) (string, error) {
	claims := jwt.MapClaims{
		OwnerClaim: ownerID,
		"iat":      issued.Unix(),
		"exp":      issued.Add(cfg.Expiry).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
}
