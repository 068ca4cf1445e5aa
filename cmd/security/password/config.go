package password

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Policy controls password validation boundaries.
type Policy struct {
	MinLength int
	MaxLength int
	// If true, enable an extra, minimal weak-pattern rejection.
	RejectVeryWeak bool
}

// DefaultPolicy returns the policy used when no env overrides are set.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:      8,
		MaxLength:      256,
		RejectVeryWeak: true,
	}
}

// FromEnv loads the policy from environment variables.
//
// Env surface:
//   - NUVEM_PASSWORD_MIN_LEN
//   - NUVEM_PASSWORD_MAX_LEN
//   - NUVEM_PASSWORD_REJECT_VERY_WEAK (true/false)
func FromEnv() (Policy, error) {
	p := DefaultPolicy()

	if v, ok := os.LookupEnv("NUVEM_PASSWORD_MIN_LEN"); ok {
		n, err := atoiPositiveInt(v, 1, 1024)
		if err != nil {
			return Policy{}, fmt.Errorf("NUVEM_PASSWORD_MIN_LEN: %w", err)
		}
		p.MinLength = n
	}

	if v, ok := os.LookupEnv("NUVEM_PASSWORD_MAX_LEN"); ok {
		n, err := atoiPositiveInt(v, 1, 4096)
		if err != nil {
			return Policy{}, fmt.Errorf("NUVEM_PASSWORD_MAX_LEN: %w", err)
		}
		p.MaxLength = n
	}

	if v, ok := os.LookupEnv("NUVEM_PASSWORD_REJECT_VERY_WEAK"); ok {
		b, err := parseBool(v)
		if err != nil {
			return Policy{}, fmt.Errorf("NUVEM_PASSWORD_REJECT_VERY_WEAK: %w", err)
		}
		p.RejectVeryWeak = b
	}

	if p.MinLength > p.MaxLength {
		return Policy{}, fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			p.MinLength,
			p.MaxLength,
		)
	}

	return p, nil
}

func atoiPositiveInt(s string, minVal, maxVal int) (int, error) {
	i64, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}

	i := int(i64)
	if i < minVal || i > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return i, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean")
	}
}
