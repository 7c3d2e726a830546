package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/amirasaad/checkoutflow/pkg/money"
	"github.com/shopspring/decimal"
)

type DB struct {
	Url             string        `envconfig:"URL"`
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS" default:"25"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"1h"`
	PingTimeout     time.Duration `envconfig:"PING_TIMEOUT" default:"5s"`
}

type Jwt struct {
	Secret string        `envconfig:"SECRET" required:"true"`
	Expiry time.Duration `envconfig:"EXPIRY" default:"24h"`
}

type Auth struct {
	Jwt *Jwt `envconfig:"JWT"`
}

type Redis struct {
	URL          string        `envconfig:"URL" default:"redis://localhost:6379/0"`
	KeyPrefix    string        `envconfig:"KEY_PREFIX" default:"checkout:session:"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
}

type RateLimit struct {
	MaxRequests int           `envconfig:"MAX_REQUESTS" default:"100"`
	Window      time.Duration `envconfig:"WINDOW" default:"1m"`
	// TrustedProxies lists proxy IPs or CIDR ranges whose forwarding headers
	// are honoured. Empty means requests are keyed by peer address only.
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES"`
}

//revive:disable
type Stripe struct {
	ApiKey      string `envconfig:"API_KEY"`
	Description string `envconfig:"DESCRIPTION" default:"Checkout purchase"`
}

//revive:enable
type PaymentProviders struct {
	Stripe *Stripe `envconfig:"STRIPE"`
}

type Kafka struct {
	Brokers       string        `envconfig:"BROKERS" default:"localhost:9092"`
	GroupID       string        `envconfig:"GROUP_ID" default:"checkoutflow"`
	TopicPrefix   string        `envconfig:"TOPIC_PREFIX" default:"checkoutflow.events"`
	SASLUsername  string        `envconfig:"SASL_USERNAME"`
	SASLPassword  string        `envconfig:"SASL_PASSWORD"`
	TLSEnabled    bool          `envconfig:"TLS_ENABLED" default:"false"`
	TLSSkipVerify bool          `envconfig:"TLS_SKIP_VERIFY" default:"false"`
	WriteTimeout  time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
}

type RedisStream struct {
	Stream string `envconfig:"STREAM" default:"checkoutflow:events"`
	Group  string `envconfig:"GROUP" default:"checkoutflow"`
}

type EventBus struct {
	Driver string       `envconfig:"DRIVER" default:"memory"`
	Kafka  *Kafka       `envconfig:"KAFKA"`
	Redis  *RedisStream `envconfig:"REDIS"`
}

type Checkout struct {
	DefaultCurrency string            `envconfig:"DEFAULT_CURRENCY" default:"USD"`
	MinimumPurchase map[string]string `envconfig:"MINIMUM_PURCHASE" default:"USD:1.00,EUR:1.00"`
	// TokenPrice is the price of one token for /pricing/tokens and the CLI.
	TokenPrice        string        `envconfig:"TOKEN_PRICE" default:"15.00"`
	SessionTTL        time.Duration `envconfig:"SESSION_TTL" default:"30m"`
	SettlementTimeout time.Duration `envconfig:"SETTLEMENT_TIMEOUT" default:"30s"`
	Store             string        `envconfig:"STORE" default:"memory"`
	Settler           string        `envconfig:"SETTLER" default:"mock"`
}

type Log struct {
	Level      int    `envconfig:"LEVEL" default:"0"`
	Format     string `envconfig:"FORMAT" default:"json"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"2006-01-02 15:04:05"`
	Prefix     string `envconfig:"PREFIX" default:"[checkout]"`
}

type Server struct {
	Scheme string `envconfig:"SCHEME" default:"http"`
	Host   string `envconfig:"HOST" default:"localhost"`
	Port   int    `envconfig:"PORT" default:"3000"`
}

type App struct {
	Env              string            `envconfig:"APP_ENV" default:"development"`
	Server           *Server           `envconfig:"SERVER"`
	Log              *Log              `envconfig:"LOG"`
	DB               *DB               `envconfig:"DATABASE"`
	Auth             *Auth             `envconfig:"AUTH"`
	Redis            *Redis            `envconfig:"REDIS"`
	RateLimit        *RateLimit        `envconfig:"RATE_LIMIT"`
	PaymentProviders *PaymentProviders `envconfig:"PAYMENT_PROVIDER"`
	EventBus         *EventBus         `envconfig:"EVENTBUS"`
	Checkout         *Checkout         `envconfig:"CHECKOUT"`
}

// Minimums parses MinimumPurchase into money values, sorted by currency.
func (c *Checkout) Minimums() ([]money.Money, error) {
	codes := make([]string, 0, len(c.MinimumPurchase))
	for code := range c.MinimumPurchase {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	out := make([]money.Money, 0, len(codes))
	for _, code := range codes {
		raw := strings.TrimSpace(c.MinimumPurchase[code])
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("minimum purchase for %s: %w", code, err)
		}
		m, err := money.FromDecimalValue(value, money.Code(strings.ToUpper(strings.TrimSpace(code))))
		if err != nil {
			return nil, fmt.Errorf("minimum purchase for %s: %w", code, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// TokenPriceMoney returns TokenPrice in the default currency.
func (c *Checkout) TokenPriceMoney() (money.Money, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(c.TokenPrice))
	if err != nil {
		return money.Money{}, fmt.Errorf("token price: %w", err)
	}
	return money.FromDecimalValue(value, c.Currency())
}

// Currency returns DefaultCurrency as a money code.
func (c *Checkout) Currency() money.Code {
	return money.Code(strings.ToUpper(strings.TrimSpace(c.DefaultCurrency)))
}
