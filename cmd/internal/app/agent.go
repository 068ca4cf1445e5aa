package app

import (
	"context"
	"net"
	"time"
)

// RunAgent serves the agent HTTP surface on cfg.AgentAddr, initializes the
// session and keeps it fresh until ctx is done.
func (a *App) RunAgent(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.AgentAddr)
	if err != nil {
		return err
	}
	return a.ServeAgent(ctx, ln)
}

// ServeAgent is RunAgent on an existing listener.
func (a *App) ServeAgent(ctx context.Context, ln net.Listener) error {
	srv := newServer(a.Handler(), a.cfg.ReadHeaderTimeout)
	a.log.Info("agent.start", "url", runtimeBaseURL(ln.Addr().String()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, srv, ln, a.log)
		cancel()
	}()

	st := a.manager.Initialize(ctx)
	a.log.Info("agent.session", "state", st.String(), "online", a.manager.Online())

	a.keepFresh(ctx, a.cfg.AgentRefreshInterval)
	return <-done
}

// keepFresh refreshes the session every interval and whenever connectivity
// comes back, until ctx is done.
func (a *App) keepFresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	reconnected := make(chan struct{}, 1)
	unsubscribe := a.monitor.Subscribe(func(online bool) {
		if !online {
			return
		}
		select {
		case reconnected <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		var reason string
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reason = "interval"
		case <-reconnected:
			reason = "reconnect"
		}
		ok := a.manager.RefreshSession(ctx)
		a.log.Debug("agent.refresh", "reason", reason, "ok", ok, "state", a.manager.State().String())
	}
}
