/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables,
 * providing a centralized and straightforward way to manage application
 * settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the payments service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort            string `mapstructure:"SERVER_PORT"`
	Environment           string `mapstructure:"ENVIRONMENT"`
	DatabaseURL           string `mapstructure:"DATABASE_URL"`
	RedisURL              string `mapstructure:"REDIS_URL"`
	RabbitMQURL           string `mapstructure:"RABBITMQ_URL"`
	PaymentEventsExchange string `mapstructure:"PAYMENT_EVENTS_EXCHANGE"`
	StripeAPIKey          string `mapstructure:"STRIPE_API_KEY"`
	StripeAPIBaseURL      string `mapstructure:"STRIPE_API_BASE_URL"`
	StripeWebhookSecret   string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	ServiceMasterSecret   string `mapstructure:"SERVICE_MASTER_SECRET"`
	AllowedServiceIDs     string `mapstructure:"ALLOWED_SERVICE_IDS"`
	PublicBaseURL         string `mapstructure:"PUBLIC_BASE_URL"`
	OnboardingCompleteURL string `mapstructure:"ONBOARDING_COMPLETE_URL"`
	OnboardingErrorURL    string `mapstructure:"ONBOARDING_ERROR_URL"`
	ReconcileSchedule     string `mapstructure:"RECONCILE_SCHEDULE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("PAYMENT_EVENTS_EXCHANGE", "payment_events")
	viper.SetDefault("STRIPE_API_BASE_URL", "https://api.stripe.com")
	viper.SetDefault("RECONCILE_SCHEDULE", "@every 30s")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("ENVIRONMENT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("PAYMENT_EVENTS_EXCHANGE")
	_ = viper.BindEnv("STRIPE_API_KEY")
	_ = viper.BindEnv("STRIPE_API_BASE_URL")
	_ = viper.BindEnv("STRIPE_WEBHOOK_SECRET")
	_ = viper.BindEnv("SERVICE_MASTER_SECRET")
	_ = viper.BindEnv("ALLOWED_SERVICE_IDS")
	_ = viper.BindEnv("PUBLIC_BASE_URL")
	_ = viper.BindEnv("ONBOARDING_COMPLETE_URL")
	_ = viper.BindEnv("ONBOARDING_ERROR_URL")
	_ = viper.BindEnv("RECONCILE_SCHEDULE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	// Hosting platforms inject PORT; it wins over SERVER_PORT.
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.PublicBaseURL = strings.TrimSuffix(strings.TrimSpace(config.PublicBaseURL), "/")

	return
}

// IsProduction reports whether the service runs with production settings.
// The reconciler fallback and other dev conveniences key off this.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// AllowedServices returns the parsed ALLOWED_SERVICE_IDS list: the service
// ids permitted to call the internal endpoints.
func (c Config) AllowedServices() []string {
	parts := strings.Split(c.AllowedServiceIDs, ",")
	services := make([]string, 0, len(parts))
	for _, part := range parts {
		if id := strings.TrimSpace(part); id != "" {
			services = append(services, id)
		}
	}
	return services
}
