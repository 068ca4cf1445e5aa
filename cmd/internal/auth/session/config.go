package session

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config defines runtime configuration for the session manager.
type Config struct {
	// DefaultDisplayName is used when the service returns no name.
	DefaultDisplayName string

	// ChallengeTTL bounds how long a Challenge can be verified. It matches the
	// service's code lifetime.
	ChallengeTTL time.Duration

	// RotateBefore makes RefreshSession rotate the secret when it expires
	// within this window. Zero disables rotation.
	RotateBefore time.Duration

	// LogoutTimeout bounds the best-effort remote logout call.
	LogoutTimeout time.Duration

	// RefreshTimeout bounds one shared RefreshSession round trip.
	RefreshTimeout time.Duration

	// ChallengeLimit code requests are allowed per ChallengeWindow.
	// Zero disables the limit.
	ChallengeLimit  int
	ChallengeWindow time.Duration
}

// DefaultConfig returns the defaults used by the CLI and agent.
func DefaultConfig() Config {
	return Config{
		DefaultDisplayName: "Usuário",
		ChallengeTTL:       15 * time.Minute,
		RotateBefore:       5 * time.Minute,
		LogoutTimeout:      5 * time.Second,
		RefreshTimeout:     20 * time.Second,
		ChallengeLimit:     5,
		ChallengeWindow:    10 * time.Minute,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Optional (durations must be valid Go duration strings):
//   - NUVEM_DEFAULT_DISPLAY_NAME
//   - NUVEM_CHALLENGE_TTL
//   - NUVEM_ROTATE_BEFORE
//   - NUVEM_LOGOUT_TIMEOUT
//   - NUVEM_REFRESH_TIMEOUT
//   - NUVEM_CHALLENGE_LIMIT
//   - NUVEM_CHALLENGE_WINDOW
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("NUVEM_DEFAULT_DISPLAY_NAME")); v != "" {
		cfg.DefaultDisplayName = v
	}

	durations := []struct {
		key       string
		dst       *time.Duration
		allowZero bool
	}{
		{"NUVEM_CHALLENGE_TTL", &cfg.ChallengeTTL, false},
		{"NUVEM_ROTATE_BEFORE", &cfg.RotateBefore, true},
		{"NUVEM_LOGOUT_TIMEOUT", &cfg.LogoutTimeout, false},
		{"NUVEM_REFRESH_TIMEOUT", &cfg.RefreshTimeout, false},
		{"NUVEM_CHALLENGE_WINDOW", &cfg.ChallengeWindow, false},
	}
	for _, d := range durations {
		v := strings.TrimSpace(os.Getenv(d.key))
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed < 0 || (parsed == 0 && !d.allowZero) {
			return Config{}, ErrConfig
		}
		*d.dst = parsed
	}

	if v := strings.TrimSpace(os.Getenv("NUVEM_CHALLENGE_LIMIT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 1000 {
			return Config{}, ErrConfig
		}
		cfg.ChallengeLimit = n
	}

	return cfg, nil
}
