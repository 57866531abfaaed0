package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port      string
	JWTKey    string
	SaltRound int

	Currency string // platform currency, single-currency wallets

	GatewayApiURL        string // payment provider base URL
	GatewayApiKey        string
	GatewayWebhookSecret string // shared secret for webhook signatures

	SendGridKey string
	EmailSender string

	RedisAddr     string // optional, report caching only
	RedisPassword string

	ReferralBonus   string // credited to the referrer on a referred user's first exam purchase
	DiscountCode    string
	DiscountPercent int
	CancellationFee string // charged when an active subscription is cancelled mid-period
}

// AppConfig is a global variable to access configuration
var AppConfig *Config

// LoadConfig initializes configuration from environment variables or defaults
func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found. Using system environment variables.")
	}

	AppConfig = &Config{
		Port:      getEnv("PORT", "3000"),
		JWTKey:    getEnv("JWT_SECRET_KEY", "defaultSecret"),
		SaltRound: getEnvInt("SALT_ROUND", 10),

		Currency: getEnv("WALLET_CURRENCY", "USD"),

		GatewayApiURL:        getEnv("GATEWAY_API_URL", "https://api.sandbox.paygate.io/v1"),
		GatewayApiKey:        getEnv("GATEWAY_API_KEY", ""),
		GatewayWebhookSecret: getEnv("GATEWAY_WEBHOOK_SECRET", ""),

		SendGridKey: getEnv("SENDGRID_API_KEY", ""),
		EmailSender: getEnv("EMAIL_SENDER", "billing@examportal.io"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		ReferralBonus:   getEnv("REFERRAL_BONUS", "5.00"),
		DiscountCode:    getEnv("DISCOUNT_CODE", ""),
		DiscountPercent: getEnvInt("DISCOUNT_PERCENT", 10),
		CancellationFee: getEnv("CANCELLATION_FEE", "2.00"),
	}

	// Validate critical configuration
	if AppConfig.JWTKey == "defaultSecret" {
		log.Println("Warning: Using default JWT_SECRET_KEY. Update it in your environment.")
	}
	if AppConfig.GatewayWebhookSecret == "" {
		log.Println("Warning: GATEWAY_WEBHOOK_SECRET is empty. Webhook processing will reject all events.")
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns the default integer value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to int: %v", key, err)
		return defaultValue
	}
	return intValue
}
