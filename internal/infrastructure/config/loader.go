package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment constants
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// ConfigPaths defines the paths to look for config files
var ConfigPaths = []string{
	"./configs",
	"../configs",
	"../../configs",
}

// DotEnvPaths defines the paths to look for .env files
var DotEnvPaths = []string{
	".env",
	"./.env",
	"../.env",
	"../../.env",
	"./configs/.env",
	"../configs/.env",
	"../../configs/.env",
}

// LoadConfig loads configuration from file based on the environment
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file first
	if err := loadDotEnvFile(); err != nil {
		fmt.Println("Warning: Could not load .env file:", err)
	}

	env := getEnvironment()

	v := viper.New()
	v.SetConfigName(env)
	v.SetConfigType("yaml")

	for _, path := range ConfigPaths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Environment variables override config file values
	v.SetEnvPrefix("QP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	processEnvOverrides(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	config.Environment = env

	processDurations(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// loadDotEnvFile attempts to load environment variables from .env files
func loadDotEnvFile() error {
	var lastError error

	for _, path := range DotEnvPaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return nil
			} else {
				lastError = err
			}
		}
	}

	if lastError != nil {
		return fmt.Errorf("could not load any .env file: %w", lastError)
	}

	return fmt.Errorf("no .env file found in search paths")
}

// setDefaults sets default values for non-critical configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 15)       // seconds
	v.SetDefault("server.writeTimeout", 15)      // seconds
	v.SetDefault("server.idleTimeout", 60)       // seconds
	v.SetDefault("server.readHeaderTimeout", 10) // seconds
	v.SetDefault("server.shutdownTimeout", 10)   // seconds

	// Storage defaults
	v.SetDefault("storage.driver", "bolt")
	v.SetDefault("storage.path", "./data/qrpay.db")
	v.SetDefault("storage.postgres.port", "5432")
	v.SetDefault("storage.postgres.sslMode", "disable")
	v.SetDefault("storage.postgres.maxOpenConns", 25)
	v.SetDefault("storage.postgres.maxIdleConns", 10)
	v.SetDefault("storage.postgres.connMaxLifetime", 30) // minutes

	// Bank defaults
	v.SetDefault("bank.qrTemplate", "compact2")
	v.SetDefault("bank.fetchTimeout", 10) // seconds

	// Reconciler defaults
	v.SetDefault("reconciler.interval", 30) // seconds

	// Notifier defaults
	v.SetDefault("notifier.timeout", 5) // seconds

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
}

// getEnvironment determines the environment to use based on QP_ENV
func getEnvironment() string {
	env := os.Getenv("QP_ENV")
	if env == "" {
		env = Development
	}
	return strings.ToLower(env)
}

// processEnvOverrides ensures environment variables override config values
func processEnvOverrides(v *viper.Viper) {
	// Postgres sensitive information
	if dbHost := os.Getenv("QP_DB_HOST"); dbHost != "" {
		v.Set("storage.postgres.host", dbHost)
	}
	if dbPort := os.Getenv("QP_DB_PORT"); dbPort != "" {
		v.Set("storage.postgres.port", dbPort)
	}
	if dbUser := os.Getenv("QP_DB_USERNAME"); dbUser != "" {
		v.Set("storage.postgres.username", dbUser)
	}
	if dbPass := os.Getenv("QP_DB_PASSWORD"); dbPass != "" {
		v.Set("storage.postgres.password", dbPass)
	}
	if dbName := os.Getenv("QP_DB_NAME"); dbName != "" {
		v.Set("storage.postgres.database", dbName)
	}

	// Bank settings
	if account := os.Getenv("QP_BANK_ACCOUNT"); account != "" {
		v.Set("bank.account", account)
	}
	if code := os.Getenv("QP_BANK_CODE"); code != "" {
		v.Set("bank.code", code)
	}
	if feedURL := os.Getenv("QP_BANK_FEED_URL"); feedURL != "" {
		v.Set("bank.feedUrl", feedURL)
	}

	// Notifier settings
	if baseURL := os.Getenv("QP_NOTIFIER_BASE_URL"); baseURL != "" {
		v.Set("notifier.baseUrl", baseURL)
	}
	if adminChat := os.Getenv("QP_NOTIFIER_ADMIN_CHAT_ID"); adminChat != "" {
		v.Set("notifier.adminChatId", adminChat)
	}

	// Server settings
	if serverHost := os.Getenv("QP_SERVER_HOST"); serverHost != "" {
		v.Set("server.host", serverHost)
	}
	if serverPort := os.Getenv("QP_SERVER_PORT"); serverPort != "" {
		v.Set("server.port", serverPort)
	}

	// Logger settings
	if logLevel := os.Getenv("QP_LOGGER_LEVEL"); logLevel != "" {
		v.Set("logger.level", logLevel)
	}

	// Storage settings
	if driver := os.Getenv("QP_STORAGE_DRIVER"); driver != "" {
		v.Set("storage.driver", driver)
	}
	if path := os.Getenv("QP_STORAGE_PATH"); path != "" {
		v.Set("storage.path", path)
	}
}

// processDurations converts duration fields from their raw values to actual durations
func processDurations(config *Config) {
	config.Server.ReadTimeout = time.Duration(config.Server.ReadTimeout) * time.Second
	config.Server.WriteTimeout = time.Duration(config.Server.WriteTimeout) * time.Second
	config.Server.IdleTimeout = time.Duration(config.Server.IdleTimeout) * time.Second
	config.Server.ReadHeaderTimeout = time.Duration(config.Server.ReadHeaderTimeout) * time.Second
	config.Server.ShutdownTimeout = time.Duration(config.Server.ShutdownTimeout) * time.Second

	config.Storage.Postgres.ConnMaxLifetime = time.Duration(config.Storage.Postgres.ConnMaxLifetime) * time.Minute

	config.Bank.FetchTimeout = time.Duration(config.Bank.FetchTimeout) * time.Second
	config.Reconciler.Interval = time.Duration(config.Reconciler.Interval) * time.Second
	config.Notifier.Timeout = time.Duration(config.Notifier.Timeout) * time.Second

	// The feed answers slowly; clamp the per-candidate timeout to a sane band
	if config.Bank.FetchTimeout < 10*time.Second {
		config.Bank.FetchTimeout = 10 * time.Second
	}
	if config.Bank.FetchTimeout > 25*time.Second {
		config.Bank.FetchTimeout = 25 * time.Second
	}
}

// validate rejects configurations the application cannot start with
func validate(config *Config) error {
	if config.Bank.Account == "" {
		return fmt.Errorf("bank.account is required")
	}
	if config.Bank.Code == "" {
		return fmt.Errorf("bank.code is required")
	}
	if config.Bank.FeedURL == "" {
		return fmt.Errorf("bank.feedUrl is required")
	}
	switch config.Storage.Driver {
	case "bolt", "postgres":
	default:
		return fmt.Errorf("storage.driver must be bolt or postgres, got %q", config.Storage.Driver)
	}
	return nil
}

// DSN builds the connection string for the postgres driver
func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
}
