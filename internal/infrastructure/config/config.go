package config

import "time"

// Config holds all configuration for the application
type Config struct {
	Environment string           `mapstructure:"environment"`
	Server      ServerConfig     `mapstructure:"server"`
	Storage     StorageConfig    `mapstructure:"storage"`
	Bank        BankConfig       `mapstructure:"bank"`
	Reconciler  ReconcilerConfig `mapstructure:"reconciler"`
	Notifier    NotifierConfig   `mapstructure:"notifier"`
	Logger      LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	ReadTimeout       time.Duration `mapstructure:"readTimeout"`       // seconds
	WriteTimeout      time.Duration `mapstructure:"writeTimeout"`      // seconds
	IdleTimeout       time.Duration `mapstructure:"idleTimeout"`       // seconds
	ReadHeaderTimeout time.Duration `mapstructure:"readHeaderTimeout"` // seconds
	ShutdownTimeout   time.Duration `mapstructure:"shutdownTimeout"`   // seconds
}

// StorageConfig selects and configures the persistence backend
type StorageConfig struct {
	Driver   string         `mapstructure:"driver"` // bolt or postgres
	Path     string         `mapstructure:"path"`   // bolt database file
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig contains database connection settings
type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"sslMode"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"` // minutes
}

// BankConfig contains the receiving account and statement feed settings
type BankConfig struct {
	Account      string        `mapstructure:"account"`
	Code         string        `mapstructure:"code"`
	QRTemplate   string        `mapstructure:"qrTemplate"`
	FeedURL      string        `mapstructure:"feedUrl"`
	FetchTimeout time.Duration `mapstructure:"fetchTimeout"` // seconds
}

// ReconcilerConfig contains the settlement loop settings
type ReconcilerConfig struct {
	Interval time.Duration `mapstructure:"interval"` // seconds
}

// NotifierConfig contains the chat bot transport settings
type NotifierConfig struct {
	BaseURL     string        `mapstructure:"baseUrl"`
	AdminChatID string        `mapstructure:"adminChatId"`
	Timeout     time.Duration `mapstructure:"timeout"` // seconds
}

// LoggerConfig contains logger settings
type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
