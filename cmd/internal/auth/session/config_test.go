package session

import (
	"errors"
	"testing"
	"time"
)

func clearSessionEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"NUVEM_DEFAULT_DISPLAY_NAME",
		"NUVEM_CHALLENGE_TTL",
		"NUVEM_ROTATE_BEFORE",
		"NUVEM_LOGOUT_TIMEOUT",
		"NUVEM_REFRESH_TIMEOUT",
		"NUVEM_CHALLENGE_LIMIT",
		"NUVEM_CHALLENGE_WINDOW",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	clearSessionEnv(t)

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("cfg = %+v, want defaults", cfg)
	}
	if cfg.DefaultDisplayName != "Usuário" {
		t.Fatalf("DefaultDisplayName = %q", cfg.DefaultDisplayName)
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	clearSessionEnv(t)
	t.Setenv("NUVEM_DEFAULT_DISPLAY_NAME", "Guest")
	t.Setenv("NUVEM_CHALLENGE_TTL", "5m")
	t.Setenv("NUVEM_ROTATE_BEFORE", "0s")
	t.Setenv("NUVEM_CHALLENGE_LIMIT", "0")
	t.Setenv("NUVEM_REFRESH_TIMEOUT", "3s")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.DefaultDisplayName != "Guest" || cfg.ChallengeTTL != 5*time.Minute {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.RefreshTimeout != 3*time.Second {
		t.Fatalf("RefreshTimeout = %v", cfg.RefreshTimeout)
	}
	if cfg.RotateBefore != 0 || cfg.ChallengeLimit != 0 {
		t.Fatalf("zero values not honored: %+v", cfg)
	}
}

func TestLoadConfigFromEnv_Invalid(t *testing.T) {
	cases := map[string]string{
		"NUVEM_CHALLENGE_TTL":    "0s",
		"NUVEM_LOGOUT_TIMEOUT":   "-1s",
		"NUVEM_REFRESH_TIMEOUT":  "0s",
		"NUVEM_ROTATE_BEFORE":    "soon",
		"NUVEM_CHALLENGE_LIMIT":  "-3",
		"NUVEM_CHALLENGE_WINDOW": "x",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			clearSessionEnv(t)
			t.Setenv(key, val)
			if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
				t.Fatalf("%s=%q err = %v, want ErrConfig", key, val, err)
			}
		})
	}
}
