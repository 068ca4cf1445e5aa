package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/EvertonHSP/Nuvem/cmd/internal/auth/remote"
	"github.com/EvertonHSP/Nuvem/cmd/internal/auth/session"
	"github.com/EvertonHSP/Nuvem/cmd/security/password"
	"github.com/EvertonHSP/Nuvem/cmd/security/sealer"
)

// Store drivers.
const (
	DriverFile     = "file"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Connectivity modes.
const (
	ConnectivityProbe     = "probe"
	ConnectivityWebSocket = "websocket"
	ConnectivityOn        = "on"
	ConnectivityOff       = "off"
)

// ErrConfig is returned when the environment describes an unusable setup.
var ErrConfig = errors.New("invalid app config")

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	LogLevel  string
	LogFormat string

	StoreDriver string
	StorePath   string
	RedisURL    string
	RedisPrefix string

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// StoreKey is the sealer key material. Required.
	StoreKey []byte
	Argon2   sealer.Params

	Connectivity         string
	ConnectivityURL      string
	ConnectivityInterval time.Duration

	AgentAddr            string
	AgentRefreshInterval time.Duration
	ReadHeaderTimeout    time.Duration

	Remote   remote.Config
	Session  session.Config
	Password password.Policy
}

// LoadConfig loads Config from environment variables with defaults. The
// per-package loaders own their variables; this collects their errors.
func LoadConfig() (Config, error) {
	cfg := Config{
		LogLevel:  EnvString("NUVEM_LOG_LEVEL", "info"),
		LogFormat: EnvString("NUVEM_LOG_FORMAT", "console"),

		StoreDriver: strings.ToLower(EnvString("NUVEM_STORE_DRIVER", DriverFile)),
		StorePath:   EnvString("NUVEM_STORE_PATH", ""),
		RedisURL:    EnvString("NUVEM_REDIS_URL", ""),
		RedisPrefix: EnvString("NUVEM_REDIS_PREFIX", "nuvem:session"),

		DatabaseURL: EnvString("NUVEM_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("NUVEM_DB_MAX_CONNS", 4),
		DBMinConns:  EnvInt32("NUVEM_DB_MIN_CONNS", 0),

		Connectivity:         strings.ToLower(EnvString("NUVEM_CONNECTIVITY", ConnectivityProbe)),
		ConnectivityURL:      EnvString("NUVEM_CONNECTIVITY_URL", ""),
		ConnectivityInterval: EnvDuration("NUVEM_CONNECTIVITY_INTERVAL", 10*time.Second),

		AgentAddr:            EnvString("NUVEM_AGENT_ADDR", "127.0.0.1:7465"),
		AgentRefreshInterval: EnvDuration("NUVEM_AGENT_REFRESH_INTERVAL", 5*time.Minute),
		ReadHeaderTimeout:    EnvDuration("NUVEM_AGENT_READ_HEADER_TIMEOUT", 5*time.Second),
	}

	var errs []error
	var err error
	if cfg.StoreKey, err = sealer.KeyFromEnv(); err != nil {
		errs = append(errs, err)
	}
	if cfg.Argon2, err = sealer.ParamsFromEnv(); err != nil {
		errs = append(errs, err)
	}
	if cfg.Remote, err = remote.LoadConfigFromEnv(); err != nil {
		errs = append(errs, err)
	}
	if cfg.Session, err = session.LoadConfigFromEnv(); err != nil {
		errs = append(errs, err)
	}
	if cfg.Password, err = password.FromEnv(); err != nil {
		errs = append(errs, err)
	}
	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

// Validate checks the settings LoadConfig does not delegate.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverFile, DriverMemory:
	case DriverRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("%w: NUVEM_STORE_DRIVER=redis requires NUVEM_REDIS_URL", ErrConfig)
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: NUVEM_STORE_DRIVER=postgres requires NUVEM_DATABASE_URL", ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown NUVEM_STORE_DRIVER %q", ErrConfig, c.StoreDriver)
	}

	switch c.Connectivity {
	case ConnectivityProbe, ConnectivityWebSocket, ConnectivityOn, ConnectivityOff:
	default:
		return fmt.Errorf("%w: unknown NUVEM_CONNECTIVITY %q", ErrConfig, c.Connectivity)
	}

	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("%w: unknown NUVEM_LOG_FORMAT %q", ErrConfig, c.LogFormat)
	}
	return nil
}
