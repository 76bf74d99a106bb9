package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// defaultConfigFile is the config file name looked up when no path is given.
const defaultConfigFile = "porsino.yaml"

// AppConfig holds the full application configuration.
type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	JWT      JWTConfig      `yaml:"jwt"`
	SMS      SMSConfig      `yaml:"sms"`
	Payment  PaymentConfig  `yaml:"payment"`
	AI       AIConfig       `yaml:"ai"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
	BaseURL string `yaml:"base-url"`
}

// DatabaseConfig holds the database DSN.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig holds Redis connection settings for the chat job store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// JWTConfig holds JWT signing settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// SMSConfig holds SMS gateway settings.
type SMSConfig struct {
	APIKey     string `yaml:"api-key"`
	TemplateID int    `yaml:"template-id"`
	BaseURL    string `yaml:"base-url"`
	Console    bool   `yaml:"console"`
}

// PaymentConfig holds payment gateway settings.
type PaymentConfig struct {
	GatewayID   string `yaml:"gateway-id"`
	Secret      string `yaml:"secret"`
	BaseURL     string `yaml:"base-url"`
	CallbackURL string `yaml:"callback-url"`
}

// AIConfig holds the upstream chat backend settings.
type AIConfig struct {
	BaseURL        string        `yaml:"base-url"`
	APIKey         string        `yaml:"api-key"`
	RequestTimeout time.Duration `yaml:"request-timeout"`
	MaxJobRuntime  time.Duration `yaml:"max-job-runtime"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
}

// ResolveConfigPath normalizes a config path, defaulting to porsino.yaml in the working directory.
func ResolveConfigPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return defaultConfigFile
	}
	return filepath.Clean(trimmed)
}

// Load reads the YAML config file and applies environment overrides.
func Load(path string) (AppConfig, error) {
	cfg := defaults()

	resolved := ResolveConfigPath(path)
	data, errRead := os.ReadFile(resolved)
	if errRead != nil {
		if !os.IsNotExist(errRead) {
			return cfg, fmt.Errorf("config: read %s: %w", resolved, errRead)
		}
	} else if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", resolved, errUnmarshal)
	}

	applyEnvOverrides(&cfg)

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return cfg, fmt.Errorf("config: missing database dsn")
	}
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return cfg, fmt.Errorf("config: missing jwt secret")
	}
	return cfg, nil
}

// defaults returns the built-in configuration defaults.
func defaults() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			Address: ":8317",
			BaseURL: "http://localhost:8317",
		},
		JWT: JWTConfig{
			Expiry: 30 * 24 * time.Hour,
		},
		SMS: SMSConfig{
			BaseURL: "https://api.sms.ir",
		},
		Payment: PaymentConfig{
			BaseURL: "https://api.directpay.click",
		},
		AI: AIConfig{
			RequestTimeout: 60 * time.Second,
			MaxJobRuntime:  3 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
	}
}

// applyEnvOverrides overlays environment variables onto the config.
func applyEnvOverrides(cfg *AppConfig) {
	setString := func(target *string, key string) {
		if value, ok := os.LookupEnv(key); ok {
			trimmed := strings.TrimSpace(value)
			if trimmed != "" {
				*target = trimmed
			}
		}
	}
	setString(&cfg.Server.Address, "PORSINO_ADDRESS")
	setString(&cfg.Server.BaseURL, "PORSINO_BASE_URL")
	setString(&cfg.Database.DSN, "PORSINO_DATABASE_DSN")
	setString(&cfg.Redis.Addr, "PORSINO_REDIS_ADDR")
	setString(&cfg.Redis.Password, "PORSINO_REDIS_PASSWORD")
	setString(&cfg.JWT.Secret, "PORSINO_JWT_SECRET")
	setString(&cfg.SMS.APIKey, "PORSINO_SMS_API_KEY")
	setString(&cfg.Payment.GatewayID, "PORSINO_PAYMENT_GATEWAY_ID")
	setString(&cfg.Payment.Secret, "PORSINO_PAYMENT_SECRET")
	setString(&cfg.AI.BaseURL, "PORSINO_AI_BASE_URL")
	setString(&cfg.AI.APIKey, "PORSINO_AI_API_KEY")
}
