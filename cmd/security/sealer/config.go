package sealer

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	// KeyEnv is the env var holding the local store key material.
	// #nosec G101 -- not a credential; it's an environment variable name.
	KeyEnv = "NUVEM_STORE_KEY"

	// MinKeyBytes is the minimum accepted key material length.
	MinKeyBytes = 16
)

// Params controls Argon2id key derivation cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
}

// DefaultParams follows the OWASP minimum for Argon2id (19 MiB, t=2, p=1).
// The cache holds one record, so this cost is paid once per load or save.
func DefaultParams() Params {
	return Params{
		MemoryKiB:   19 * 1024,
		Iterations:  2,
		Parallelism: 1,
	}
}

func (p Params) validate() error {
	if p.MemoryKiB < 8*uint32(p.Parallelism) || p.MemoryKiB > maxMemoryKiB {
		return ErrConfig
	}
	if p.Iterations == 0 || p.Iterations > maxIterations {
		return ErrConfig
	}
	if p.Parallelism == 0 || p.Parallelism > maxParallelism {
		return ErrConfig
	}
	return nil
}

// ParamsFromEnv loads derivation params from environment variables.
//
// Env surface:
//   - NUVEM_ARGON2_MEMORY_KIB
//   - NUVEM_ARGON2_ITERATIONS
//   - NUVEM_ARGON2_PARALLELISM
func ParamsFromEnv() (Params, error) {
	p := DefaultParams()

	if v, ok := os.LookupEnv("NUVEM_ARGON2_MEMORY_KIB"); ok {
		u, err := atou32(v, 8, maxMemoryKiB)
		if err != nil {
			return Params{}, fmt.Errorf("NUVEM_ARGON2_MEMORY_KIB: %w", err)
		}
		p.MemoryKiB = u
	}

	if v, ok := os.LookupEnv("NUVEM_ARGON2_ITERATIONS"); ok {
		u, err := atou32(v, 1, maxIterations)
		if err != nil {
			return Params{}, fmt.Errorf("NUVEM_ARGON2_ITERATIONS: %w", err)
		}
		p.Iterations = u
	}

	if v, ok := os.LookupEnv("NUVEM_ARGON2_PARALLELISM"); ok {
		u, err := atou32(v, 1, maxParallelism)
		if err != nil {
			return Params{}, fmt.Errorf("NUVEM_ARGON2_PARALLELISM: %w", err)
		}
		p.Parallelism = uint8(u) // #nosec G115 -- bounded by maxParallelism above.
	}

	if err := p.validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// KeyFromEnv returns the configured key material (trimmed), enforcing MinKeyBytes.
// If the env var is missing/blank -> ErrKeyMissing.
// If too short -> ErrKeyTooShort.
func KeyFromEnv() ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(KeyEnv))
	if raw == "" {
		return nil, ErrKeyMissing
	}
	b := []byte(raw)
	if len(b) < MinKeyBytes {
		return nil, ErrKeyTooShort
	}
	return b, nil
}

func atou32(s string, minVal, maxVal uint32) (uint32, error) {
	s = strings.TrimSpace(s)
	u64, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an unsigned integer")
	}

	u := uint32(u64)
	if u < minVal || u > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return u, nil
}
