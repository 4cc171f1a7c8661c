package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (VEJOIAS_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (VEJOIAS_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL    string `usage:"Redis URL for the cart cache (VEJOIAS_REDIS_URL or REDIS_URL); empty disables the cache" flag:"redis-url"`
	JWT         JWTConfig
	Payment     PaymentConfig
	Email       EmailConfig
	WhatsApp    WhatsAppConfig
	CartCache   CartCacheConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// JWTConfig controls token signing.
type JWTConfig struct {
	Secret     string        `usage:"HS256 signing secret, at least 32 bytes" flag:"jwt-secret"`
	Issuer     string        `default:"vejoias" usage:"Token issuer claim"`
	AccessTTL  time.Duration `default:"60m" usage:"Access token lifetime"`
	RefreshTTL time.Duration `default:"24h" usage:"Refresh token lifetime"`
}

// PaymentConfig selects and configures the payment gateway.
type PaymentConfig struct {
	Provider     string  `default:"mock" usage:"Payment provider: mock or mercadopago"`
	FailureRatio float64 `default:"0" usage:"Share of mock charges that are refused (0..1)"`
	MercadoPago  MercadoPagoConfig
}

// MercadoPagoConfig holds the Mercado Pago credentials.
type MercadoPagoConfig struct {
	AccessToken string        `usage:"Mercado Pago access token" flag:"mercadopago-token"`
	BaseURL     string        `default:"https://api.mercadopago.com" usage:"Mercado Pago API root"`
	Timeout     time.Duration `default:"15s" usage:"Mercado Pago request timeout"`
}

// EmailConfig configures the SMTP relay. An empty host disables email.
type EmailConfig struct {
	Host     string `usage:"SMTP host"`
	Port     int    `default:"587" usage:"SMTP port"`
	Username string `usage:"SMTP user"`
	Password string `usage:"SMTP password"`
	From     string `default:"Vê Joias <nao-responda@vejoias.com.br>" usage:"Sender address"`
}

// WhatsAppConfig configures the Evolution API. An empty base URL disables
// WhatsApp messages.
type WhatsAppConfig struct {
	BaseURL  string        `usage:"Evolution API root"`
	APIKey   string        `usage:"Evolution API key"`
	Instance string        `usage:"Evolution instance name"`
	Timeout  time.Duration `default:"10s" usage:"Evolution request timeout"`
}

// CartCacheConfig controls the Redis cart cache.
type CartCacheConfig struct {
	TTL    time.Duration `default:"30m" usage:"Cart cache entry lifetime"`
	Jitter time.Duration `default:"5m" usage:"Random extra lifetime spreading expirations"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "VEJOIAS",
		Files:     []string{"config.yaml", "/etc/vejoias/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set VEJOIAS_DATABASE_URL or DATABASE_URL")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("jwt secret must have at least 32 bytes: set VEJOIAS_JWT_SECRET")
	}
	switch c.Payment.Provider {
	case "mock":
		if c.Payment.FailureRatio < 0 || c.Payment.FailureRatio > 1 {
			return errors.Errorf("payment failure ratio %v out of range [0, 1]", c.Payment.FailureRatio)
		}
	case "mercadopago":
		if c.Payment.MercadoPago.AccessToken == "" {
			return errors.New("mercadopago provider requires VEJOIAS_PAYMENT_MERCADO_PAGO_ACCESS_TOKEN")
		}
	default:
		return errors.Errorf("unknown payment provider %q", c.Payment.Provider)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's VEJOIAS_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.RedisURL == "" {
		c.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
