package serverutils

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	token, err := IssueSessionToken("secret", "abc", time.Minute)
	require.NoError(t, err)

	id, err := ParseSessionToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	_, err = ParseSessionToken("other", token)
	assert.ErrorIs(t, err, ErrInvalidSessionToken)

	expired, err := IssueSessionToken("secret", "abc", -time.Minute)
	require.NoError(t, err)
	_, err = ParseSessionToken("secret", expired)
	assert.ErrorIs(t, err, ErrInvalidSessionToken)
}

func TestSessionMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/", SessionMiddleware("secret"), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(SessionLocalKey).(string))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	token, err := IssueSessionToken("secret", "s-1", time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "s-1", string(body))
}

func TestErrorHandlerMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/app", func(c *fiber.Ctx) error { return NewNotFound("session not found") })
	app.Get("/fiber", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusConflict, "busy") })
	app.Get("/plain", func(c *fiber.Ctx) error { return errors.New("boom") })

	tests := map[string]int{
		"/app":   fiber.StatusNotFound,
		"/fiber": fiber.StatusConflict,
		"/plain": fiber.StatusInternalServerError,
	}
	for path, want := range tests {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, path)
	}
}

func TestValidateRequest(t *testing.T) {
	type request struct {
		Type string `validate:"required,oneof=scratch api"`
		ID   int64  `validate:"required_if=Type api"`
	}

	assert.NoError(t, ValidateRequest(request{Type: "scratch"}))

	err := ValidateRequest(request{Type: "api"})
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, fiber.StatusBadRequest, appErr.Code)
	assert.Contains(t, appErr.Message, "id is required")

	err = ValidateRequest(request{Type: "fax"})
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Message, "type must be one of")
}
