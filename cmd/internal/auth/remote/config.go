package remote

import (
	"net/url"
	"os"
	"strings"
	"time"
)

// Config controls where and how the client talks to the identity service.
type Config struct {
	// BaseURL is the API root; endpoint paths are appended to it.
	BaseURL string

	// Timeout bounds a whole request, including reading the body.
	Timeout time.Duration

	UserAgent string
}

// DefaultConfig matches the service's development defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:   "https://localhost:5000/api",
		Timeout:   15 * time.Second,
		UserAgent: "nuvem-client",
	}
}

// LoadConfigFromEnv loads client configuration from environment variables.
//
// Optional:
//   - NUVEM_API_URL
//   - NUVEM_HTTP_TIMEOUT
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("NUVEM_API_URL")); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("NUVEM_HTTP_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.Timeout = d
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" {
		return ErrConfig
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrConfig
	}
	if c.Timeout <= 0 {
		return ErrConfig
	}
	return nil
}
