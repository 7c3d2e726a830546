package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/amirasaad/checkoutflow/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "test-secret")

	cfg, err := Load("does-not-exist.env")
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Checkout.Store)
	assert.Equal(t, "mock", cfg.Checkout.Settler)
	assert.Equal(t, "memory", cfg.EventBus.Driver)
	assert.Equal(t, 30*time.Minute, cfg.Checkout.SessionTTL)
	assert.Equal(t, money.USD, cfg.Checkout.Currency())
	assert.Equal(t, "checkoutflow.events", cfg.EventBus.Kafka.TopicPrefix)

	mins, err := cfg.Checkout.Minimums()
	require.NoError(t, err)
	require.Len(t, mins, 2)
	assert.Equal(t, money.EUR, mins[0].Code())
	assert.Equal(t, int64(100), mins[1].MinorUnits())

	price, err := cfg.Checkout.TokenPriceMoney()
	require.NoError(t, err)
	assert.Equal(t, int64(1500), price.MinorUnits())
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"AUTH_JWT_SECRET=file-secret\n"+
			"CHECKOUT_DEFAULT_CURRENCY=JPY\n"+
			"CHECKOUT_MINIMUM_PURCHASE=JPY:500\n"+
			"CHECKOUT_TOKEN_PRICE=150\n"+
			"CHECKOUT_STORE=redis\n",
	), 0o600))

	// godotenv does not override variables already present in the environment
	for _, key := range []string{
		"AUTH_JWT_SECRET",
		"CHECKOUT_DEFAULT_CURRENCY",
		"CHECKOUT_MINIMUM_PURCHASE",
		"CHECKOUT_TOKEN_PRICE",
		"CHECKOUT_STORE",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "file-secret", cfg.Auth.Jwt.Secret)
	assert.Equal(t, money.JPY, cfg.Checkout.Currency())
	assert.Equal(t, "redis", cfg.Checkout.Store)

	mins, err := cfg.Checkout.Minimums()
	require.NoError(t, err)
	require.Len(t, mins, 1)
	assert.Equal(t, int64(500), mins[0].MinorUnits())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing jwt secret", map[string]string{"AUTH_JWT_SECRET": ""}},
		{"unknown store", map[string]string{"CHECKOUT_STORE": "disk"}},
		{"unknown settler", map[string]string{"CHECKOUT_SETTLER": "paypal"}},
		{"unknown bus", map[string]string{"EVENTBUS_DRIVER": "nats"}},
		{"bad currency", map[string]string{"CHECKOUT_DEFAULT_CURRENCY": "dollars"}},
		{"bad minimum", map[string]string{"CHECKOUT_MINIMUM_PURCHASE": "USD:lots"}},
		{"stripe without key", map[string]string{"CHECKOUT_SETTLER": "stripe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AUTH_JWT_SECRET", "test-secret")
			for k, v := range tt.env {
				t.Setenv(k, v)
				if v == "" {
					require.NoError(t, os.Unsetenv(k))
				}
			}
			_, err := Load("does-not-exist.env")
			require.Error(t, err)
		})
	}
}

func TestMaskValue(t *testing.T) {
	assert.Equal(t, "****", maskValue("short"))
	assert.Equal(t, "sk****cdef", maskValue("sk_test_abcdef"))
}

func TestLoadCheckout(t *testing.T) {
	t.Setenv("CHECKOUT_DEFAULT_CURRENCY", "eur")
	t.Setenv("CHECKOUT_TOKEN_PRICE", "2.50")

	c, err := LoadCheckout()
	require.NoError(t, err)
	assert.Equal(t, money.EUR, c.Currency())

	price, err := c.TokenPriceMoney()
	require.NoError(t, err)
	assert.Equal(t, int64(250), price.MinorUnits())
	assert.Equal(t, money.EUR, price.Code())
}
