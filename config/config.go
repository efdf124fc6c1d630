package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBPort        string
	RedisAddr     string
	RedisPort     string
	RedisPassword string

	// Secret the external identity provider signs tokens with
	AuthTokenSecret   string
	AuthAutoProvision bool

	// Completion backend
	OpenAIAPIBase        string
	OpenAIAPIKey         string
	OpenAIModel          string
	CompletionMaxTokens  int
	CompletionTimeoutSec int

	// Stripe
	StripeSecretKey      string
	StripeWebhookSecret  string
	StripePriceMonthlyID string
	StripePriceYearlyID  string
	CheckoutOrigin       string

	SeedLifetimeEmail string

	// Log configuration
	LogLevel      string
	LogFilename   string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int
	LogCompress   bool
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

func (c *Config) RedisFullAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisAddr, c.RedisPort)
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		// Ignore error if .env file is not found
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	return &Config{
		DBHost:        os.Getenv("DB_HOST"),
		DBUser:        os.Getenv("DB_USER"),
		DBPassword:    os.Getenv("DB_PASSWORD"),
		DBName:        os.Getenv("DB_NAME"),
		DBPort:        os.Getenv("DB_PORT"),
		RedisAddr:     os.Getenv("REDIS_HOST"),
		RedisPort:     os.Getenv("REDIS_PORT"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		AuthTokenSecret:   os.Getenv("AUTH_TOKEN_SECRET"),
		AuthAutoProvision: getEnvAsBool("AUTH_AUTO_PROVISION", true),

		OpenAIAPIBase:        getEnv("OPENAI_API_BASE", "https://api.openai.com/v1"),
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		CompletionMaxTokens:  getEnvAsInt("COMPLETION_MAX_TOKENS", 2048),
		CompletionTimeoutSec: getEnvAsInt("COMPLETION_TIMEOUT_SECONDS", 60),

		StripeSecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripePriceMonthlyID: os.Getenv("STRIPE_PRICE_MONTHLY_ID"),
		StripePriceYearlyID:  os.Getenv("STRIPE_PRICE_YEARLY_ID"),
		CheckoutOrigin:       getEnv("CHECKOUT_ORIGIN", "http://localhost:3000"),

		SeedLifetimeEmail: os.Getenv("SEED_LIFETIME_EMAIL"),

		LogLevel:      getEnv("LOG_LEVEL", "INFO"),
		LogFilename:   getEnv("LOG_FILENAME", "logs/app.log"),
		LogMaxSize:    getEnvAsInt("LOG_MAX_SIZE", 100),
		LogMaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 3),
		LogMaxAge:     getEnvAsInt("LOG_MAX_AGE", 28),
		LogCompress:   getEnvAsBool("LOG_COMPRESS", true),
	}, nil
}

// Validate checks that configuration required to serve requests is present.
// The server must refuse to start without it rather than fail at first request.
func (c *Config) Validate() error {
	var missing []string
	if c.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.AuthTokenSecret == "" {
		missing = append(missing, "AUTH_TOKEN_SECRET")
	}
	if c.StripeSecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if c.StripeWebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if c.StripePriceMonthlyID == "" {
		missing = append(missing, "STRIPE_PRICE_MONTHLY_ID")
	}
	if c.StripePriceYearlyID == "" {
		missing = append(missing, "STRIPE_PRICE_YEARLY_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
