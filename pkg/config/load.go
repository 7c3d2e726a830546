package config

import (
	"fmt"
	"log/slog"

	"github.com/kelseyhightower/envconfig"
)

// Load reads the first environment file found (see LoadEnv) and then the
// App settings from the environment.
func Load(envFiles ...string) (*App, error) {
	LoadEnv(slog.Default(), envFiles...)
	return loadFromEnv()
}

func loadFromEnv() (*App, error) {
	var cfg App
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Default().Info("App config loaded",
		"env", cfg.Env,
		"rate_limit_max_requests", cfg.RateLimit.MaxRequests,
		"rate_limit_window", cfg.RateLimit.Window,
		"db", maskValue(cfg.DB.Url),
		"redis", maskValue(cfg.Redis.URL),
		"auth_jwt_expiry", cfg.Auth.Jwt.Expiry,
		"checkout_currency", cfg.Checkout.DefaultCurrency,
		"checkout_store", cfg.Checkout.Store,
		"checkout_settler", cfg.Checkout.Settler,
		"checkout_session_ttl", cfg.Checkout.SessionTTL,
		"eventbus_driver", cfg.EventBus.Driver,
		"stripe_api_key", maskValue(cfg.PaymentProviders.Stripe.ApiKey),
	)
	return &cfg, nil
}

// Validate checks values envconfig cannot express as tags.
func (a *App) Validate() error {
	switch a.Checkout.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("CHECKOUT_STORE must be memory or redis, got %q", a.Checkout.Store)
	}
	switch a.Checkout.Settler {
	case "mock", "stripe":
	default:
		return fmt.Errorf("CHECKOUT_SETTLER must be mock or stripe, got %q", a.Checkout.Settler)
	}
	switch a.EventBus.Driver {
	case "memory", "kafka", "redis":
	default:
		return fmt.Errorf("EVENTBUS_DRIVER must be memory, kafka or redis, got %q", a.EventBus.Driver)
	}
	if !a.Checkout.Currency().IsValid() {
		return fmt.Errorf("CHECKOUT_DEFAULT_CURRENCY %q is not an ISO 4217 code", a.Checkout.DefaultCurrency)
	}
	if _, err := a.Checkout.Minimums(); err != nil {
		return err
	}
	if _, err := a.Checkout.TokenPriceMoney(); err != nil {
		return err
	}
	if a.Checkout.Settler == "stripe" && a.PaymentProviders.Stripe.ApiKey == "" {
		return fmt.Errorf("PAYMENT_PROVIDER_STRIPE_API_KEY is required when CHECKOUT_SETTLER=stripe")
	}
	return nil
}

func maskValue(key string) string {
	if len(key) <= 6 {
		return "****"
	}
	return key[:2] + "****" + key[len(key)-4:]
}

// LoadCheckout reads only the CHECKOUT_* section, for tools that run
// without the API settings.
func LoadCheckout() (*Checkout, error) {
	var c Checkout
	if err := envconfig.Process("CHECKOUT", &c); err != nil {
		return nil, err
	}
	return &c, nil
}
