package app

import (
	"fmt"
	"log/slog"

	"github.com/amirasaad/checkoutflow/pkg/checkout"
	"github.com/amirasaad/checkoutflow/pkg/config"
	"github.com/amirasaad/checkoutflow/pkg/eventbus"
	"github.com/amirasaad/checkoutflow/pkg/handler/lifecycle"
	"github.com/amirasaad/checkoutflow/pkg/money"
	"github.com/amirasaad/checkoutflow/pkg/provider/settlement"
	checkoutsvc "github.com/amirasaad/checkoutflow/pkg/service/checkout"
)

// Deps contains the infrastructure the application is assembled from.
type Deps struct {
	Store    checkout.Store
	Sources  checkoutsvc.Sources
	Settler  settlement.Settler
	Debiter  lifecycle.Debiter
	EventBus eventbus.Bus
	Logger   *slog.Logger
}

type App struct {
	Deps            *Deps
	Config          *config.App
	Controller      *checkout.Controller
	CheckoutService *checkoutsvc.Service
	TokenPrice      money.Money
}

// New wires the checkout controller and service from deps and cfg.
func New(deps *Deps, cfg *config.App) (*App, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.EventBus == nil {
		deps.EventBus = eventbus.Nop{}
	}

	minimums, err := cfg.Checkout.Minimums()
	if err != nil {
		return nil, fmt.Errorf("checkout minimums: %w", err)
	}
	opts := make([]checkout.MachineOption, 0, len(minimums))
	for _, m := range minimums {
		opts = append(opts, checkout.WithMinimumPurchase(m))
	}

	tokenPrice, err := cfg.Checkout.TokenPriceMoney()
	if err != nil {
		return nil, err
	}

	app := &App{
		Deps:       deps,
		Config:     cfg,
		TokenPrice: tokenPrice,
	}
	app.setupEventBus()

	app.Controller = checkout.NewController(
		checkout.NewMachine(opts...),
		checkout.WithEventBus(deps.EventBus),
		checkout.WithLogger(deps.Logger),
		checkout.WithSettlementTimeout(cfg.Checkout.SettlementTimeout),
		checkout.WithSubmissionTTL(cfg.Checkout.SessionTTL),
	)
	app.CheckoutService = checkoutsvc.New(
		app.Controller,
		deps.Store,
		deps.Sources,
		deps.Settler,
		cfg.Checkout.SessionTTL,
		deps.Logger,
	)
	return app, nil
}
