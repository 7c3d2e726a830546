package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	infraeventbus "github.com/amirasaad/checkoutflow/infra/eventbus"
	"github.com/amirasaad/checkoutflow/pkg/checkout"
	"github.com/amirasaad/checkoutflow/pkg/config"
	"github.com/amirasaad/checkoutflow/pkg/eventbus"
	"github.com/amirasaad/checkoutflow/pkg/money"
	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
)

// RunSmokeTest emits one checkout.succeeded event through the Kafka bus and
// waits for the registered handler to receive it back.
func RunSmokeTest() error {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var cfg config.Kafka
	if err := envconfig.Process("EVENTBUS_KAFKA", &cfg); err != nil {
		return err
	}
	if cfg.GroupID == "checkoutflow" {
		cfg.GroupID = "checkoutflow-smoketest"
	}

	bus, err := infraeventbus.NewWithKafka(&cfg, checkout.LifecycleEventTypes(), logger)
	if err != nil {
		logger.Error("kafka bus init failed", "brokers", cfg.Brokers, "error", err)
		return err
	}
	defer func() { _ = bus.Close() }()

	sessionID := "smoke-" + uuid.NewString()
	received := make(chan *checkout.LifecycleEvent, 1)
	bus.Register(checkout.EventTypeSucceeded, func(ctx context.Context, e eventbus.Event) error {
		ev, ok := e.(*checkout.LifecycleEvent)
		if ok && ev.SessionID == sessionID {
			select {
			case received <- ev:
			default:
			}
		}
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	total, err := money.FromMinorUnits(4500, money.USD)
	if err != nil {
		return err
	}
	sent := &checkout.LifecycleEvent{
		EventType:      checkout.EventTypeSucceeded,
		SessionID:      sessionID,
		OwnerID:        "smoketest",
		From:           checkout.StateProcessing,
		To:             checkout.StateSuccess,
		Trigger:        checkout.EventConfirmPurchase,
		Total:          total,
		FundingID:      "demo-wallet",
		Attempt:        1,
		ConfirmationID: "smoke_" + uuid.NewString(),
		OccurredAt:     time.Now().UTC(),
	}
	if err := bus.Emit(ctx, sent); err != nil {
		logger.Error("emit failed", "error", err)
		return err
	}
	logger.Info("produced", "type", sent.EventType, "session_id", sessionID)

	select {
	case got := <-received:
		if got.ConfirmationID != sent.ConfirmationID || !got.Total.Equals(total) {
			return fmt.Errorf("round trip mismatch: sent %+v, got %+v", sent, got)
		}
		logger.Info("consumed", "type", got.EventType, "total", got.Total.Display())
	case <-ctx.Done():
		logger.Error("no event consumed before timeout")
		return ctx.Err()
	}

	logger.Info("kafka smoke test passed")
	return nil
}

// main runs the smoke test and exits non-zero on failure.
func main() {
	if err := RunSmokeTest(); err != nil {
		os.Exit(1)
	}
}
