package fibergate

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	goSession "github.com/MrEthical07/goSession"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/require"
)

type stubValidator struct{}

func (stubValidator) Validate(_ context.Context, token string) (*goSession.Subject, error) {
	switch token {
	case "good":
		return &goSession.Subject{ID: "u1", Name: "Ada"}, nil
	case "revoked":
		return nil, goSession.ErrSessionRevoked
	default:
		return nil, goSession.ErrTokenInvalid
	}
}

func newApp(cfgs ...Config) *fiber.App {
	app := fiber.New()
	app.Use(New(stubValidator{}, cfgs...))
	app.Get("/me", func(c fiber.Ctx) error {
		s, ok := SubjectFromCtx(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		fromCtx, ok := SubjectFromContext(c.Context())
		if !ok || fromCtx.ID != s.ID {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendString(s.ID)
	})
	app.Get("/public", func(c fiber.Ctx) error {
		return c.SendString("public")
	})
	return app
}

func TestGateAdmitsValidToken(t *testing.T) {
	app := newApp()

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	res, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Equal(t, "u1", string(body))
}

func TestGateRejectionsAreIdentical(t *testing.T) {
	app := newApp()

	var first string
	for _, header := range []string{"", "Bearer revoked", "Bearer garbage"} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		res, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, res.StatusCode)

		body, err := io.ReadAll(res.Body)
		require.NoError(t, err)
		if first == "" {
			first = string(body)
		}
		require.Equal(t, first, string(body))
	}
	require.Contains(t, first, "UNAUTHORIZED")
}

func TestGateNextSkips(t *testing.T) {
	app := newApp(Config{Next: func(c fiber.Ctx) bool { return c.Path() == "/public" }})

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/public", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
}
