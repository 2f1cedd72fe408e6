package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ClientConfig holds the categoryctl settings
type ClientConfig struct {
	APIURL  string        `envconfig:"API_URL" default:"http://localhost:8080"`
	Timeout time.Duration `envconfig:"TIMEOUT" default:"10s"`
}

// LoadDotEnv loads the given .env files, or ./.env when none are named.
// Missing files are ignored and variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// LoadClientConfig reads CATEGORYCTL_* variables
func LoadClientConfig() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.Process("categoryctl", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process client configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the API URL and timeout
func (c *ClientConfig) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: "CATEGORYCTL_API_URL", Message: "must be an absolute http(s) URL"}
	}
	if c.Timeout <= 0 {
		return &ValidationError{Field: "CATEGORYCTL_TIMEOUT", Message: "must be a positive duration"}
	}
	return nil
}
