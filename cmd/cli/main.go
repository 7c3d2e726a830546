// Command cli buys tokens through an interactive checkout in the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirasaad/checkoutflow/infra/initializer"
	"github.com/amirasaad/checkoutflow/infra/provider/mocksettlement"
	"github.com/amirasaad/checkoutflow/pkg/checkout"
	"github.com/amirasaad/checkoutflow/pkg/config"
	"github.com/amirasaad/checkoutflow/pkg/funding"
	"github.com/amirasaad/checkoutflow/pkg/provider/settlement"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/log"
)

func main() {
	logger := initializer.NewLogger(&config.Log{
		Level:      int(log.WarnLevel),
		Format:     "text",
		TimeFormat: time.Kitchen,
		Prefix:     "[checkout-cli]",
	}, os.Stderr)
	config.LoadEnv(logger)

	w, err := newWizard(logger)
	if err != nil {
		log.Fatal("Failed to set up checkout", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := w.Run(ctx)
	switch {
	case errors.Is(err, huh.ErrUserAborted):
		fmt.Println("Bye 👋")
	case err != nil:
		log.Error("Checkout failed", "err", err)
		stop()
		os.Exit(1)
	case sess.Succeeded():
		logger.Info("🎉 Purchase complete", "session_id", sess.ID)
	}
}

func newWizard(logger *slog.Logger) (*wizard, error) {
	cfg, err := config.LoadCheckout()
	if err != nil {
		return nil, fmt.Errorf("load checkout config: %w", err)
	}
	price, err := cfg.TokenPriceMoney()
	if err != nil {
		return nil, err
	}
	minimums, err := cfg.Minimums()
	if err != nil {
		return nil, err
	}

	sources, err := initializer.DemoSources(price.Code())
	if err != nil {
		return nil, err
	}

	opts := make([]checkout.MachineOption, 0, len(minimums))
	for _, m := range minimums {
		opts = append(opts, checkout.WithMinimumPurchase(m))
	}
	controller := checkout.NewController(
		checkout.NewMachine(opts...),
		checkout.WithProvider(funding.NewStatic(sources...)),
		checkout.WithLogger(logger),
		checkout.WithSettlementTimeout(cfg.SettlementTimeout),
		checkout.WithSubmissionTTL(cfg.SessionTTL),
	)

	settler := mocksettlement.New(config.GetEnvAsDuration("CHECKOUT_CLI_DELAY", 1500*time.Millisecond), logger)
	if declined := config.GetEnv("CHECKOUT_CLI_DECLINE", "demo-bank"); declined != "" {
		settler.FailFor(declined, checkout.ErrorInsufficientFunds)
	}

	return &wizard{
		controller: controller,
		settle:     settlement.Func(settler),
		tokenPrice: price,
		ui:         newHuhPrompter(os.Stdout),
	}, nil
}
