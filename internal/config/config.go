package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	App     AppConfig
	CORS    CORSConfig
	Form    FormConfig
	Session SessionConfig
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Name    string
	Version string
	Debug   bool
	Port    string
	Host    string
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// FormConfig holds the contact form collaborators
type FormConfig struct {
	EndpointURL      string
	RecaptchaSiteKey string
	SuccessDisplay   time.Duration
	// RequestTimeout bounds the submission request; zero keeps the transport default
	RequestTimeout time.Duration
}

// SessionConfig holds settings for the per-browser form sessions
type SessionConfig struct {
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "Contact Form"),
			Version: getEnv("APP_VERSION", "1.0.0"),
			Debug:   getEnvAsBool("DEBUG", false),
			Port:    getEnv("PORT", "8000"),
			Host:    getEnv("HOST", "0.0.0.0"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("ALLOWED_HOSTS", []string{"*"}),
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS", "HEAD"},
			AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
			MaxAge:         86400,
		},
		Form: FormConfig{
			EndpointURL:      getEnv("PUBLIC_FIREBASE_FUNCTION_URL", ""),
			RecaptchaSiteKey: getEnv("PUBLIC_RECAPTCHA_SITE_KEY", ""),
			SuccessDisplay:   getEnvAsSeconds("FORM_SUCCESS_DISPLAY_SECONDS", 5*time.Second),
			RequestTimeout:   getEnvAsSeconds("FORM_REQUEST_TIMEOUT_SECONDS", 0),
		},
		Session: SessionConfig{
			IdleTimeout:   getEnvAsSeconds("SESSION_IDLE_TIMEOUT_SECONDS", 30*time.Minute),
			SweepInterval: getEnvAsSeconds("SESSION_SWEEP_INTERVAL_SECONDS", time.Minute),
		},
	}

	// Validate configuration
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.App.Port == "" {
		return fmt.Errorf("PORT must be set")
	}
	if cfg.Form.EndpointURL == "" {
		return fmt.Errorf("PUBLIC_FIREBASE_FUNCTION_URL must be set")
	}
	u, err := url.Parse(cfg.Form.EndpointURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("PUBLIC_FIREBASE_FUNCTION_URL must be an absolute http(s) URL")
	}
	if cfg.Form.SuccessDisplay <= 0 {
		return fmt.Errorf("FORM_SUCCESS_DISPLAY_SECONDS must be greater than 0")
	}
	if cfg.Form.RequestTimeout < 0 {
		return fmt.Errorf("FORM_REQUEST_TIMEOUT_SECONDS must not be negative")
	}
	if cfg.Session.IdleTimeout <= 0 || cfg.Session.SweepInterval <= 0 {
		return fmt.Errorf("session timeouts must be greater than 0")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSeconds(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return time.Duration(value * float64(time.Second))
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
