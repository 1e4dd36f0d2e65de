package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Files
	CredentialsFile string
	StateFile       string
	OutputFile      string

	// Bitunix API
	BaseURL        string
	PageSize       int
	HTTPTimeoutSec int

	// Retry / backoff
	RetryMaxAttempts int
	RetryMinDelayMs  int
	RetryMaxDelayMs  int
	RetryFactor      float64

	// Telegram
	TelegramToken  string
	TelegramChatID string

	// Metrics
	MetricsAPIURL   string
	MetricsAPIToken string
}

func Load() (*Config, error) {
	// A .env file is optional; a plain environment works too
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	cfg := &Config{
		CredentialsFile:  "credentials.json",
		StateFile:        "last_export_state.json",
		OutputFile:       "new_trades.csv",
		BaseURL:          "https://fapi.bitunix.com",
		PageSize:         100,
		HTTPTimeoutSec:   10,
		RetryMaxAttempts: 5,
		RetryMinDelayMs:  500,
		RetryMaxDelayMs:  30000,
		RetryFactor:      2.0,
	}
	var err error

	if v := os.Getenv("CREDENTIALS_FILE"); v != "" {
		cfg.CredentialsFile = v
	}
	if v := os.Getenv("STATE_FILE"); v != "" {
		cfg.StateFile = v
	}
	if v := os.Getenv("OUTPUT_FILE"); v != "" {
		cfg.OutputFile = v
	}
	if v := os.Getenv("BITUNIX_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}

	if v := os.Getenv("PAGE_SIZE"); v != "" {
		cfg.PageSize, err = parseInt(v, "PAGE_SIZE")
		if err != nil {
			return nil, err
		}
	}
	if v := os.Getenv("HTTP_TIMEOUT_SEC"); v != "" {
		cfg.HTTPTimeoutSec, err = parseInt(v, "HTTP_TIMEOUT_SEC")
		if err != nil {
			return nil, err
		}
	}
	if v := os.Getenv("RETRY_MAX_ATTEMPTS"); v != "" {
		cfg.RetryMaxAttempts, err = parseInt(v, "RETRY_MAX_ATTEMPTS")
		if err != nil {
			return nil, err
		}
	}
	if v := os.Getenv("RETRY_MIN_DELAY_MS"); v != "" {
		cfg.RetryMinDelayMs, err = parseInt(v, "RETRY_MIN_DELAY_MS")
		if err != nil {
			return nil, err
		}
	}
	if v := os.Getenv("RETRY_MAX_DELAY_MS"); v != "" {
		cfg.RetryMaxDelayMs, err = parseInt(v, "RETRY_MAX_DELAY_MS")
		if err != nil {
			return nil, err
		}
	}
	if v := os.Getenv("RETRY_FACTOR"); v != "" {
		cfg.RetryFactor, err = parseFloat(v, "RETRY_FACTOR")
		if err != nil {
			return nil, err
		}
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	cfg.TelegramChatID = os.Getenv("TELEGRAM_CHAT_ID")

	cfg.MetricsAPIURL = os.Getenv("METRICS_API_URL")
	cfg.MetricsAPIToken = os.Getenv("METRICS_API_TOKEN")

	return cfg, nil
}

func parseFloat(value, name string) (float64, error) {
	if value == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", name, err)
	}
	return f, nil
}

func parseInt(value, name string) (int, error) {
	if value == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", name, err)
	}
	return i, nil
}
