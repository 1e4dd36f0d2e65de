package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Credentials holds the Bitunix API keys plus the optional initial export
// boundary used when no sync state exists yet.
type Credentials struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
	StartTime string `json:"start_time,omitempty"`
}

// LoadCredentials reads and validates the credentials file.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("credentials file %q not found", path)
		}
		return nil, fmt.Errorf("error reading credentials file %q: %w", path, err)
	}

	creds := &Credentials{}
	if err := json.Unmarshal(data, creds); err != nil {
		return nil, fmt.Errorf("invalid credentials file %q: %w", path, err)
	}
	if creds.APIKey == "" || creds.SecretKey == "" {
		return nil, fmt.Errorf("both api_key and secret_key must be set in %s", path)
	}
	return creds, nil
}

// StartTimeMs parses the optional ISO-8601 start_time into epoch milliseconds.
// Returns 0 when unset.
func (c *Credentials) StartTimeMs() (int64, error) {
	raw := strings.TrimSpace(c.StartTime)
	if raw == "" {
		return 0, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		// Timestamps without an explicit offset are read as UTC
		t, err = time.Parse("2006-01-02T15:04:05", raw)
		if err != nil {
			return 0, fmt.Errorf("invalid start_time %q in credentials: %w", raw, err)
		}
	}
	return t.UnixMilli(), nil
}
