package checkout

import (
	"errors"
	"strings"

	"github.com/amirasaad/checkoutflow/pkg/checkout"
	"github.com/amirasaad/checkoutflow/pkg/config"
	"github.com/amirasaad/checkoutflow/pkg/money"
	checkoutsvc "github.com/amirasaad/checkoutflow/pkg/service/checkout"
	"github.com/amirasaad/checkoutflow/webapi/common"
	pricingweb "github.com/amirasaad/checkoutflow/webapi/pricing"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// Routes registers HTTP routes for checkout-related operations.
func Routes(
	app *fiber.App,
	checkoutSvc *checkoutsvc.Service,
	cfg *config.App,
) {
	protected := common.JwtProtected(cfg.Auth.Jwt)
	defaultCurrency := cfg.Checkout.Currency()

	app.Get("/funding-sources", protected, ListFundingSources(checkoutSvc, defaultCurrency))
	app.Post("/checkout/sessions", protected, CreateSession(checkoutSvc))
	app.Get("/checkout/sessions/:id", protected, GetSession(checkoutSvc))
	app.Post("/checkout/sessions/:id/events", protected, PostEvent(checkoutSvc))
	app.Post("/checkout/sessions/:id/submit", protected, Submit(checkoutSvc))
}

func owner(c *fiber.Ctx) (string, error) {
	ownerID, err := common.OwnerID(c)
	if err != nil {
		return "", common.ProblemDetailsJSON(c, "Unauthorized", err, fiber.StatusUnauthorized)
	}
	return ownerID, nil
}

// ListFundingSources returns a Fiber handler listing the caller's funding sources.
// @Summary List funding sources
// @Tags checkout
// @Produce json
// @Param currency query string false "Currency code"
// @Success 200 {object} common.Response "Funding sources fetched"
// @Failure 401 {object} common.ProblemDetails "Unauthorized"
// @Router /funding-sources [get]
// @Security Bearer
func ListFundingSources(svc *checkoutsvc.Service, defaultCurrency money.Code) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := owner(c)
		if ownerID == "" {
			return err
		}

		code := defaultCurrency
		if q := c.Query("currency"); q != "" {
			code = money.Code(strings.ToUpper(q))
		}
		if !code.IsValid() {
			return common.ProblemDetailsJSON(c, "Invalid currency", money.ErrInvalidCurrency, fiber.StatusBadRequest)
		}

		sources, err := svc.FundingSources(c.UserContext(), ownerID, code)
		if err != nil {
			log.Errorf("Failed to list funding sources: %v", err)
			return common.ProblemDetailsJSON(c, "Failed to list funding sources", err)
		}
		dtos := make([]FundingSourceDTO, 0, len(sources))
		for _, src := range sources {
			dtos = append(dtos, toSourceDTO(src.ID, src.Label, string(src.Kind()), pricingweb.ToMoneyDTO(src.Balance), nil))
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Funding sources fetched", dtos)
	}
}

// CreateSession returns a Fiber handler that starts a checkout session.
// @Summary Start a checkout session
// @Tags checkout
// @Accept json
// @Produce json
// @Param request body pricingweb.IntentRequest true "Purchase intent"
// @Success 201 {object} common.Response "Checkout session created"
// @Failure 409 {object} common.ProblemDetails "Guard violation"
// @Failure 422 {object} common.ProblemDetails "No eligible funding"
// @Router /checkout/sessions [post]
// @Security Bearer
func CreateSession(svc *checkoutsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := owner(c)
		if ownerID == "" {
			return err
		}
		input, err := common.BindAndValidate[pricingweb.IntentRequest](c)
		if input == nil {
			return err // error response already written
		}
		intent, err := input.ToIntent()
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid purchase intent", err)
		}

		sess, err := svc.Begin(c.UserContext(), ownerID, intent)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to start checkout", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Checkout session created", ToSessionDTO(sess))
	}
}

// GetSession returns a Fiber handler that fetches one of the caller's sessions.
// @Summary Get a checkout session
// @Tags checkout
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} common.Response "Checkout session fetched"
// @Failure 404 {object} common.ProblemDetails "Session not found"
// @Router /checkout/sessions/{id} [get]
// @Security Bearer
func GetSession(svc *checkoutsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := owner(c)
		if ownerID == "" {
			return err
		}
		sess, err := svc.Get(c.UserContext(), ownerID, c.Params("id"))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Checkout session not found", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Checkout session fetched", ToSessionDTO(sess))
	}
}

// PostEvent returns a Fiber handler that applies a user event to a session.
// A rejected event leaves the session unchanged and answers 409 with the
// violated rule.
// @Summary Apply a checkout event
// @Tags checkout
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body EventRequest true "Event"
// @Success 200 {object} common.Response "Event applied"
// @Failure 409 {object} common.ProblemDetails "Guard violation"
// @Router /checkout/sessions/{id}/events [post]
// @Security Bearer
func PostEvent(svc *checkoutsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := owner(c)
		if ownerID == "" {
			return err
		}
		input, err := common.BindAndValidate[EventRequest](c)
		if input == nil {
			return err // error response already written
		}
		event, err := input.toEvent()
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid event", err)
		}

		sess, err := svc.Dispatch(c.UserContext(), ownerID, c.Params("id"), event)
		if err != nil {
			if errors.Is(err, checkout.ErrGuardViolation) {
				return common.ProblemDetailsJSON(c, "Event rejected", err)
			}
			return common.ProblemDetailsJSON(c, "Failed to apply event", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Event applied", ToSessionDTO(sess))
	}
}

// Submit returns a Fiber handler that confirms and settles a session.
// A declined payment is not an HTTP error: the session comes back in the
// failure state with the reason.
// @Summary Submit a checkout session
// @Tags checkout
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} common.Response "Checkout submitted"
// @Failure 409 {object} common.ProblemDetails "Session is not ready"
// @Router /checkout/sessions/{id}/submit [post]
// @Security Bearer
func Submit(svc *checkoutsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := owner(c)
		if ownerID == "" {
			return err
		}
		sess, err := svc.Submit(c.UserContext(), ownerID, c.Params("id"))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to submit checkout", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Checkout submitted", ToSessionDTO(sess))
	}
}
