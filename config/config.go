package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort    string `mapstructure:"APP_PORT"`
	Env        string `mapstructure:"ENV"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
	AdminToken string `mapstructure:"ADMIN_TOKEN"`

	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	DatabaseName string `mapstructure:"DATABASE_NAME"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Payment gateway.
	StripeKey string `mapstructure:"STRIPE_KEY"`

	// Settlement knobs.
	PlatformFeePercent       float64 `mapstructure:"PLATFORM_FEE_PERCENT"`
	CycleLengthDays          int     `mapstructure:"CYCLE_LENGTH_DAYS"`
	CycleCutoffGraceDays     int     `mapstructure:"CYCLE_CUTOFF_GRACE_DAYS"`
	ConfirmationTimeoutHours int     `mapstructure:"CONFIRMATION_TIMEOUT_HOURS"`
	ChargeMaxAttempts        int     `mapstructure:"CHARGE_MAX_ATTEMPTS"`
	ChargeBaseRetryMinutes   int     `mapstructure:"CHARGE_BASE_RETRY_MINUTES"`
	OrchestratorSchedule     string  `mapstructure:"ORCHESTRATOR_SCHEDULE"`
	MaxRequestsPerMin        int     `mapstructure:"MAX_REQUESTS_PER_MIN"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("ADMIN_TOKEN", "")
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "bookly")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_QUEUE_DB", 3)
	viper.SetDefault("STRIPE_KEY", "")
	viper.SetDefault("PLATFORM_FEE_PERCENT", 15.0)
	viper.SetDefault("CYCLE_LENGTH_DAYS", 7)
	viper.SetDefault("CYCLE_CUTOFF_GRACE_DAYS", 2)
	viper.SetDefault("CONFIRMATION_TIMEOUT_HOURS", 72)
	viper.SetDefault("CHARGE_MAX_ATTEMPTS", 3)
	viper.SetDefault("CHARGE_BASE_RETRY_MINUTES", 60)
	viper.SetDefault("ORCHESTRATOR_SCHEDULE", "@every 15m")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

// ConfirmationTimeout is how long an unanswered party has before the
// orchestrator treats silence as an implicit accept. Both sides get the
// same window.
func (c Config) ConfirmationTimeout() time.Duration {
	return time.Duration(c.ConfirmationTimeoutHours) * time.Hour
}

// ChargeBaseRetryDelay is the first fee-charge retry delay; each further
// attempt doubles it.
func (c Config) ChargeBaseRetryDelay() time.Duration {
	return time.Duration(c.ChargeBaseRetryMinutes) * time.Minute
}
