package config

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL"`
	DatabaseURL string `env:"DATABASE_URL"`

	Stripe Stripe `envPrefix:"STRIPE_"`
	Fees   Fees   `envPrefix:"FEE_"`
	Notify Notify `envPrefix:"NOTIFY_"`
}

type Stripe struct {
	BaseApiURL    string `env:"BASE_API_URL" envDefault:"https://api.stripe.com"`
	SecretKey     string `env:"SECRET_KEY"`
	TestSecretKey string `env:"TEST_SECRET_KEY"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
}

// Fees holds the platform-wide fee defaults, expressed the way an operator
// writes them: percent as a percentage (3.3 = 3.3%), money in whole currency
// units. Per-store overrides in the same units can replace any field.
type Fees struct {
	PercentageFee     float64 `env:"PERCENTAGE" envDefault:"3.3"`
	BaseFee           float64 `env:"BASE" envDefault:"0.33"`
	MaxApplicationFee float64 `env:"MAX_APPLICATION" envDefault:"99.99"`
}

type Notify struct {
	FromEmail    string `env:"FROM_EMAIL" envDefault:"orders@marketplace.local"`
	SupportEmail string `env:"SUPPORT_EMAIL"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
