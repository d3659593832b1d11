package config

import "time"

type Config struct {
	Environment Environment
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL"`
	FrontendURL string `env:"FRONTEND_URL"`
	DatabaseURL string `env:"DATABASE_URL"`

	Auth    Auth    `envPrefix:"AUTH_"`
	Stripe  Stripe  `envPrefix:"STRIPE_"`
	SMTP    SMTP    `envPrefix:"SMTP_"`
	Verify  Verify  `envPrefix:"VERIFY_"`
	Pricing Pricing `envPrefix:"PRICE_"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}

type Auth struct {
	JWTSecret     string        `env:"JWT_SECRET,required"`
	TokenTTL      time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	GuestTokenTTL time.Duration `env:"GUEST_TOKEN_TTL" envDefault:"72h"`
}

type Stripe struct {
	BaseApiURL    string `env:"BASE_API_URL" envDefault:"https://api.stripe.com"`
	SecretKey     string `env:"SECRET_KEY,required"`
	WebhookSecret string `env:"WEBHOOK_SECRET,required"`
}

type SMTP struct {
	Host     string `env:"HOST"`
	Port     string `env:"PORT" envDefault:"587"`
	Email    string `env:"EMAIL"`
	Password string `env:"PASSWORD"`
}

// Verify bounds the post-checkout verification loop. Attempts x Delay (grown
// by Backoff) is the whole budget; there is no separate wall-clock deadline.
type Verify struct {
	MaxAttempts int           `env:"MAX_ATTEMPTS" envDefault:"5"`
	Delay       time.Duration `env:"DELAY" envDefault:"1s"`
	Backoff     float64       `env:"BACKOFF" envDefault:"1.5"`
}

type Pricing struct {
	ReportCents     int64  `env:"REPORT_CENTS" envDefault:"1900"`
	CreditPackCents int64  `env:"CREDIT_PACK_CENTS" envDefault:"4900"`
	CreditPackSize  int    `env:"CREDIT_PACK_SIZE" envDefault:"5"`
	Currency        string `env:"CURRENCY" envDefault:"usd"`
}
