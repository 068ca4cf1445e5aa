// Package app wires the Nuvem client runtime: config, logging, the session
// store and its backend, the identity client, connectivity and the session
// manager. The agent and dev identity service HTTP servers live here too.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/EvertonHSP/Nuvem/cmd/internal/auth/remote"
	"github.com/EvertonHSP/Nuvem/cmd/internal/auth/session"
	"github.com/EvertonHSP/Nuvem/cmd/internal/auth/store"
	"github.com/EvertonHSP/Nuvem/cmd/internal/connectivity"
	"github.com/EvertonHSP/Nuvem/cmd/security/sealer"
)

// App owns every long-lived dependency of a Nuvem process.
type App struct {
	cfg Config
	log Logger
	reg *prometheus.Registry

	remote  *remote.Client
	store   *store.Store
	monitor *connectivity.Monitor
	manager *session.Manager
}

// New constructs a fully wired App. The Manager is not initialized yet;
// ctx bounds the first connectivity probe and the background prober.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat, nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	rc, err := remote.New(cfg.Remote, remote.WithLogger(log), remote.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}

	backend, err := newBackend(cfg, log)
	if err != nil {
		return nil, err
	}
	cipher, err := sealer.New(cfg.StoreKey, cfg.Argon2)
	if err != nil {
		return nil, fmt.Errorf("sealer: %w", err)
	}
	st := store.New(backend, cipher, log)

	mon := newMonitor(ctx, cfg, log)

	mgr, err := session.NewManager(cfg.Session, rc, st, mon,
		session.WithLogger(log),
		session.WithRegisterer(reg),
		session.WithPasswordPolicy(cfg.Password),
	)
	if err != nil {
		mon.Close()
		_ = st.Close()
		return nil, err
	}

	log.Debug("app.ready", "store", cfg.StoreDriver, "connectivity", cfg.Connectivity, "api", cfg.Remote.BaseURL)
	return &App{
		cfg:     cfg,
		log:     log,
		reg:     reg,
		remote:  rc,
		store:   st,
		monitor: mon,
		manager: mgr,
	}, nil
}

// Manager returns the session manager.
func (a *App) Manager() *session.Manager { return a.manager }

// Monitor returns the connectivity monitor.
func (a *App) Monitor() *connectivity.Monitor { return a.monitor }

// Registry returns the registry every component reports to.
func (a *App) Registry() *prometheus.Registry { return a.reg }

// Close releases the monitor and the store backend. The session itself is
// left as is.
func (a *App) Close() error {
	a.manager.Close()
	a.monitor.Close()
	if err := a.store.Close(); err != nil {
		a.log.Warn("store.close.fail", "err", err)
		return err
	}
	return nil
}

func newBackend(cfg Config, log Logger) (store.Backend, error) {
	switch cfg.StoreDriver {
	case DriverMemory:
		log.Warn("store.memory", "detail", "the session is lost when the process exits")
		return store.NewMemoryBackend(), nil
	case DriverRedis:
		return store.NewRedisBackend(cfg.RedisURL, cfg.RedisPrefix)
	case DriverPostgres:
		return store.NewPostgresBackend(func(ctx context.Context) (*pgxpool.Pool, error) {
			return NewDBPool(ctx, cfg)
		}), nil
	case DriverFile:
		dir := cfg.StorePath
		if dir == "" {
			d, err := store.DefaultDir()
			if err != nil {
				return nil, fmt.Errorf("store dir: %w", err)
			}
			dir = d
		}
		return store.NewFileBackend(dir), nil
	}
	return nil, fmt.Errorf("%w: unknown store driver %q", ErrConfig, cfg.StoreDriver)
}

func newMonitor(ctx context.Context, cfg Config, log Logger) *connectivity.Monitor {
	switch cfg.Connectivity {
	case ConnectivityOn:
		return connectivity.NewStatic(true, log)
	case ConnectivityOff:
		return connectivity.NewStatic(false, log)
	}

	opts := connectivity.Options{Interval: cfg.ConnectivityInterval}
	if cfg.Connectivity == ConnectivityWebSocket {
		url := cfg.ConnectivityURL
		if url == "" {
			url = wsBaseURL(cfg.Remote.BaseURL) + "/ws"
		}
		return connectivity.New(ctx, &connectivity.WebSocketProbe{URL: url}, opts, log)
	}

	url := cfg.ConnectivityURL
	if url == "" {
		url = cfg.Remote.BaseURL
	}
	probe := connectivity.HTTPProbe{URL: url, Client: &http.Client{Timeout: cfg.Remote.Timeout}}
	return connectivity.New(ctx, probe, opts, log)
}

// isShutdown reports errors that only mean the server was asked to stop.
func isShutdown(err error) bool {
	return err == nil || errors.Is(err, http.ErrServerClosed) || errors.Is(err, context.Canceled)
}
