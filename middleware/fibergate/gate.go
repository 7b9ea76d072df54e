// Package fibergate is the request gate for fiber v3 applications.
package fibergate

import (
	"context"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

const subjectLocalsKey = "gosession.subject"

// Config tunes [New].
type Config struct {
	// Logger receives one Debug entry per rejected request. Optional.
	Logger *zap.Logger
	// Next skips the gate when it returns true.
	Next func(c fiber.Ctx) bool
}

// New returns a handler that admits only requests carrying a valid, active
// bearer token. Every rejection is an identical 401 body.
func New(v middleware.Validator, cfgs ...Config) fiber.Handler {
	var cfg Config
	if len(cfgs) > 0 {
		cfg = cfgs[0]
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c fiber.Ctx) error {
		if cfg.Next != nil && cfg.Next(c) {
			return c.Next()
		}
		if v == nil {
			return unauthorized(c)
		}

		token, ok := middleware.BearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return unauthorized(c)
		}

		subject, err := v.Validate(c.Context(), token)
		if err != nil {
			cfg.Logger.Debug("request rejected",
				zap.String("path", c.Path()),
				zap.Error(err),
			)
			return unauthorized(c)
		}

		c.Locals(subjectLocalsKey, subject)
		c.SetContext(middleware.WithSubject(c.Context(), subject))
		return c.Next()
	}
}

// SubjectFromCtx returns the subject stored by [New].
func SubjectFromCtx(c fiber.Ctx) (*goSession.Subject, bool) {
	s, ok := c.Locals(subjectLocalsKey).(*goSession.Subject)
	return s, ok
}

// SubjectFromContext is the context.Context counterpart of [SubjectFromCtx].
func SubjectFromContext(ctx context.Context) (*goSession.Subject, bool) {
	return middleware.SubjectFromContext(ctx)
}

func unauthorized(c fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "UNAUTHORIZED",
			"message": "unauthorized",
		},
	})
}
