// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	AI       AIConfig
	PDF      PDFConfig
	Items    ItemsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// DatabaseConfig selects the key-value store backend.
// Driver is "sqlite" (Path is used) or "postgres" (the connection fields are used).
type DatabaseConfig struct {
	Driver   string
	Path     string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	Debug    bool
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev        bool
	Migrations bool
}

// AIConfig holds the settings of the hosted completion service.
type AIConfig struct {
	APIKey       string
	BaseURL      string
	ChatModel    string
	SuggestModel string
	Timeout      time.Duration
	RetryMax     int
}

// PDFConfig holds the export rendering options.
type PDFConfig struct {
	PageFormat string  // A4 or Letter
	Margin     float64 // mm
	Scale      float64
}

// ItemsConfig controls which line item values the session accepts.
type ItemsConfig struct {
	AllowNegative bool
	AllowZero     bool
}

// DSN returns the PostgreSQL connection string in key=value format.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// Enabled reports whether an API key is configured.
func (a AIConfig) Enabled() bool {
	return strings.TrimSpace(a.APIKey) != ""
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 60),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			Path:     getEnv("DB_PATH", "devisflow.db"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "devisflow"),
			Password: getEnv("DB_PASSWORD", "devisflow"),
			DBName:   getEnv("DB_NAME", "devisflow"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Debug:    getEnvBool("DB_DEBUG", false),
		},
		App: AppConfig{
			Dev:        getEnvBool("DEV", false),
			Migrations: getEnvBool("MIGRATIONS", true),
		},
		AI: AIConfig{
			// API_KEY is the variable name the hosted assistant used historically.
			APIKey:       getEnv("AI_API_KEY", os.Getenv("API_KEY")),
			BaseURL:      strings.TrimRight(getEnv("AI_BASE_URL", "https://generativelanguage.googleapis.com"), "/"),
			ChatModel:    getEnv("AI_CHAT_MODEL", "gemini-3-pro-preview"),
			SuggestModel: getEnv("AI_SUGGEST_MODEL", "gemini-3-flash-preview"),
			Timeout:      getEnvDuration("AI_TIMEOUT", 30*time.Second),
			RetryMax:     getEnvInt("AI_RETRY_MAX", 2),
		},
		PDF: PDFConfig{
			PageFormat: getEnv("PDF_PAGE_FORMAT", "A4"),
			Margin:     getEnvFloat("PDF_MARGIN", 10),
			Scale:      getEnvFloat("PDF_SCALE", 1),
		},
		Items: ItemsConfig{
			AllowNegative: getEnvBool("ITEMS_ALLOW_NEGATIVE", true),
			AllowZero:     getEnvBool("ITEMS_ALLOW_ZERO", true),
		},
	}
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("45s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if i, err := strconv.Atoi(value); err == nil {
		return time.Duration(i) * time.Second
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}
