// Package webapi provides the HTTP API of the checkout flow engine.
// It is organized into sub-packages per concern:
// - pricing: quote and token previews
// - checkout: funding sources and checkout sessions
// - common: problem details, validation and JWT helpers
package webapi

import (
	"errors"
	"strings"

	"github.com/amirasaad/checkoutflow/pkg/app"
	checkoutweb "github.com/amirasaad/checkoutflow/webapi/checkout"
	"github.com/amirasaad/checkoutflow/webapi/common"
	pricingweb "github.com/amirasaad/checkoutflow/webapi/pricing"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// SetupApp builds the Fiber app with middleware and every route group.
func SetupApp(a *app.App) *fiber.App {
	fiberApp := fiber.New(fiber.Config{
		AppName:                 "checkoutflow",
		EnableTrustedProxyCheck: true,
		TrustedProxies:          a.Config.RateLimit.TrustedProxies,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return common.ProblemDetailsJSON(c, "Internal Server Error", err)
		},
	})

	fiberApp.Use(requestid.New())
	fiberApp.Use(limiter.New(limiter.Config{
		Max:          a.Config.RateLimit.MaxRequests,
		Expiration:   a.Config.RateLimit.Window,
		KeyGenerator: clientKey,
		LimitReached: func(c *fiber.Ctx) error {
			return common.ProblemDetailsJSON(
				c,
				"Too Many Requests",
				errors.New("rate limit exceeded"),
				fiber.StatusTooManyRequests,
			)
		},
	}))
	fiberApp.Use(recover.New())
	fiberApp.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))

	fiberApp.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Checkout API is running! 🚀")
	})
	fiberApp.Get("/health", health(a))

	pricingweb.Routes(fiberApp, a.CheckoutService, a.TokenPrice)
	checkoutweb.Routes(fiberApp, a.CheckoutService, a.Config)
	return fiberApp
}

// clientKey identifies the caller for rate limiting. Forwarding headers
// are only read when the peer is a trusted proxy.
func clientKey(c *fiber.Ctx) string {
	return clientAddr(
		c.IsProxyTrusted(),
		c.Get(fiber.HeaderXForwardedFor),
		c.Get("X-Real-IP"),
		c.Context().RemoteIP().String(),
	)
}

// clientAddr picks the last X-Forwarded-For hop, the one our proxy appended,
// then X-Real-IP, then the peer address.
func clientAddr(trusted bool, forwardedFor, realIP, peer string) string {
	if !trusted {
		return peer
	}
	if forwardedFor != "" {
		hops := strings.Split(forwardedFor, ",")
		if last := strings.TrimSpace(hops[len(hops)-1]); last != "" {
			return last
		}
	}
	if realIP != "" {
		return strings.TrimSpace(realIP)
	}
	return peer
}

// health reports the checkout settings clients need before starting.
func health(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return common.SuccessResponseJSON(c, fiber.StatusOK, "ok", fiber.Map{
			"currency":    a.Config.Checkout.Currency(),
			"token_price": pricingweb.ToMoneyDTO(a.TokenPrice),
		})
	}
}
