package testutils

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/amirasaad/checkoutflow/infra/eventbus"
	"github.com/amirasaad/checkoutflow/infra/provider/mocksettlement"
	"github.com/amirasaad/checkoutflow/infra/sessionstore"
	"github.com/amirasaad/checkoutflow/pkg/app"
	"github.com/amirasaad/checkoutflow/pkg/checkout"
	"github.com/amirasaad/checkoutflow/pkg/config"
	"github.com/amirasaad/checkoutflow/pkg/funding"
	"github.com/amirasaad/checkoutflow/pkg/money"
	checkoutsvc "github.com/amirasaad/checkoutflow/pkg/service/checkout"
	"github.com/amirasaad/checkoutflow/webapi"
	"github.com/amirasaad/checkoutflow/webapi/common"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/suite"
)

// Funding source ids served to every test owner.
const (
	WalletID       = "w-1"
	DeclinedCardID = "card-declined"
	LockedCardID   = "card-locked"
)

// E2ETestSuite runs the HTTP API against in-memory infrastructure: a memory
// session store and bus, a scripted mock settler and fixed funding sources.
type E2ETestSuite struct {
	suite.Suite
	app   *fiber.App
	cfg   *config.App
	store *sessionstore.MemoryStore
	Bus   *eventbus.MemoryEventBus
}

// TestConfig returns the configuration the suite runs with.
func TestConfig() *config.App {
	return &config.App{
		Env:       "test",
		Auth:      &config.Auth{Jwt: &config.Jwt{Secret: "test-secret", Expiry: time.Hour}},
		RateLimit: &config.RateLimit{MaxRequests: 10000, Window: time.Minute},
		Checkout: &config.Checkout{
			DefaultCurrency:   "USD",
			MinimumPurchase:   map[string]string{"USD": "1.00"},
			TokenPrice:        "15.00",
			SessionTTL:        time.Minute,
			SettlementTimeout: 2 * time.Second,
		},
	}
}

// TestSources returns the funding sources every owner sees.
func TestSources() []funding.Source {
	return []funding.Source{
		{
			ID:      WalletID,
			Label:   "Wallet",
			Balance: money.MustFromDecimal(100, money.USD),
			Details: funding.Wallet{Network: "internal", Address: "w"},
		},
		{
			ID:      DeclinedCardID,
			Label:   "Card that declines",
			Balance: money.MustFromDecimal(1000, money.USD),
			Details: funding.CreditCard{Brand: "visa", Last4: "0002"},
		},
		{
			ID:      LockedCardID,
			Label:   "Locked card",
			Balance: money.MustFromDecimal(1000, money.USD),
			Details: funding.CreditCard{Brand: "visa", Last4: "0069", Locked: true},
		},
	}
}

// SetupSuite builds the application once for the suite.
func (s *E2ETestSuite) SetupSuite() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.cfg = TestConfig()
	s.store = sessionstore.NewMemoryStore()
	s.Bus = eventbus.NewWithMemory(logger)

	settler := mocksettlement.New(0, logger).
		FailFor(DeclinedCardID, checkout.ErrorInsufficientFunds)

	a, err := app.New(&app.Deps{
		Store:    s.store,
		Sources:  checkoutsvc.Shared{Provider: funding.NewStatic(TestSources()...)},
		Settler:  settler,
		EventBus: s.Bus,
		Logger:   logger,
	}, s.cfg)
	s.Require().NoError(err)
	s.app = webapi.SetupApp(a)
}

// TearDownSuite cleans up the test suite resources
func (s *E2ETestSuite) TearDownSuite() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

// Token signs a JWT for ownerID.
func (s *E2ETestSuite) Token(ownerID string) string {
	token, err := common.SignToken(s.cfg.Auth.Jwt, ownerID, time.Now())
	s.Require().NoError(err)
	return token
}

// MakeRequest is a helper for making HTTP requests in tests
func (s *E2ETestSuite) MakeRequest(method, path, body, token string) *http.Response {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	s.Require().NoError(err)
	return resp
}

// DecodeData decodes the data field of a success response into out.
func (s *E2ETestSuite) DecodeData(resp *http.Response, out any) {
	defer resp.Body.Close() //nolint:errcheck
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&envelope))
	s.Require().NoError(json.Unmarshal(envelope.Data, out))
}

// DecodeProblem decodes a problem details response.
func (s *E2ETestSuite) DecodeProblem(resp *http.Response) common.ProblemDetails {
	defer resp.Body.Close() //nolint:errcheck
	var pd common.ProblemDetails
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&pd))
	return pd
}
