package serverutils

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const SessionLocalKey = "session_id"

var ErrInvalidSessionToken = errors.New("invalid session token")

// IssueSessionToken signs a token naming the session. The token carries no credentials.
func IssueSessionToken(secret, sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"session_id": sessionID,
		"iat":        now.Unix(),
		"exp":        now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseSessionToken verifies the signature and expiry and returns the session id.
func ParseSessionToken(secret, tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", ErrInvalidSessionToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidSessionToken
	}
	id, ok := claims["session_id"].(string)
	if !ok || id == "" {
		return "", ErrInvalidSessionToken
	}
	return id, nil
}

var ErrMissingSessionToken = errors.New("missing session token")

// BearerSessionID reads and verifies the request's Bearer session token.
func BearerSessionID(ctx *fiber.Ctx, secret string) (string, error) {
	authHeader := ctx.Get("Authorization")
	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return "", ErrMissingSessionToken
	}
	return ParseSessionToken(secret, authHeader[7:])
}

// SessionMiddleware requires a Bearer session token and stores the session id in locals.
func SessionMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		id, err := BearerSessionID(ctx, secret)
		if errors.Is(err, ErrMissingSessionToken) {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing session token"))
		}
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid session token"))
		}

		ctx.Locals(SessionLocalKey, id)
		return ctx.Next()
	}
}
