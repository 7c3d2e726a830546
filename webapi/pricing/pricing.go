// Package pricing serves quote previews over HTTP.
package pricing

import (
	"strings"

	"github.com/amirasaad/checkoutflow/pkg/money"
	checkoutsvc "github.com/amirasaad/checkoutflow/pkg/service/checkout"
	"github.com/amirasaad/checkoutflow/webapi/common"
	"github.com/gofiber/fiber/v2"
)

// Routes registers the pricing endpoints. tokenPrice is used when a token
// request names no price of its own.
func Routes(app *fiber.App, svc *checkoutsvc.Service, tokenPrice money.Money) {
	app.Post("/pricing/quote", Quote(svc))
	app.Post("/pricing/tokens", Tokens(svc, tokenPrice))
}

// Quote returns a Fiber handler that prices a purchase intent.
// @Summary Price a purchase intent
// @Tags pricing
// @Accept json
// @Produce json
// @Param request body IntentRequest true "Purchase intent"
// @Success 200 {object} common.Response "Quote computed"
// @Failure 400 {object} common.ProblemDetails "Invalid request"
// @Failure 422 {object} common.ProblemDetails "Intent cannot be priced"
// @Router /pricing/quote [post]
func Quote(svc *checkoutsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := common.BindAndValidate[IntentRequest](c)
		if input == nil {
			return err
		}
		intent, err := input.ToIntent()
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid purchase intent", err)
		}
		quote, err := svc.Quote(intent)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid purchase intent", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Quote computed", ToQuoteDTO(quote))
	}
}

// Tokens returns a Fiber handler that splits an amount into whole tokens.
// @Summary Quote a token purchase
// @Tags pricing
// @Accept json
// @Produce json
// @Param request body TokenRequest true "Amount to spend"
// @Success 200 {object} common.Response "Token purchase computed"
// @Failure 400 {object} common.ProblemDetails "Invalid request"
// @Failure 422 {object} common.ProblemDetails "Amount cannot buy a token"
// @Router /pricing/tokens [post]
func Tokens(svc *checkoutsvc.Service, defaultPrice money.Money) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := common.BindAndValidate[TokenRequest](c)
		if input == nil {
			return err
		}

		code := defaultPrice.Code()
		if input.Currency != "" {
			code = money.Code(strings.ToUpper(input.Currency))
		}
		amount, err := ParseAmount(input.Amount, code)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid amount", err)
		}
		price := defaultPrice
		if input.TokenPrice != "" {
			if price, err = ParseAmount(input.TokenPrice, code); err != nil {
				return common.ProblemDetailsJSON(c, "Invalid token price", err)
			}
		}

		purchase, err := svc.TokenQuote(amount, price)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid token purchase", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Token purchase computed", toTokenDTO(purchase))
	}
}
