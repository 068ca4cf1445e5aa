package app

import (
	"context"
	"net"
	"time"

	"github.com/EvertonHSP/Nuvem/cmd/internal/auth/remote/fakeidp"
)

// RunDevIDP serves an in-memory identity service on addr until ctx is done.
// One-time codes are written to log instead of e-mailed.
func RunDevIDP(ctx context.Context, addr string, cfg fakeidp.Config, log Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ServeDevIDP(ctx, ln, cfg, log)
}

// ServeDevIDP is RunDevIDP on an existing listener.
func ServeDevIDP(ctx context.Context, ln net.Listener, cfg fakeidp.Config, log Logger) error {
	idp, err := fakeidp.New(cfg, log)
	if err != nil {
		_ = ln.Close()
		return err
	}
	base := runtimeBaseURL(ln.Addr().String())
	log.Info("devidp.start", "api", base+"/api", "ws", wsBaseURL(base)+"/ws")

	srv := newServer(WithRequestLogging(idp.Handler(), log), 5*time.Second)
	// The /ws endpoint holds connections open indefinitely.
	srv.WriteTimeout = 0
	return serve(ctx, srv, ln, log)
}
