package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/EvertonHSP/Nuvem/cmd/internal/app"
	"github.com/EvertonHSP/Nuvem/cmd/internal/auth/remote/fakeidp"
)

func agentCmd(flags *rootFlags) *cobra.Command {
	var (
		addr     string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Keep the session fresh and serve its status over HTTP",
		Long: `Run a long-lived agent: restore the session, refresh it on an interval and
whenever connectivity comes back, and serve /healthz, /readyz, /status and
/metrics on the agent address.

Examples:
  nuvem agent
  nuvem agent --addr 127.0.0.1:9000 --refresh-interval 1m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			a, err := flags.openApp(ctx, cmd, func(cfg *app.Config) {
				if addr != "" {
					cfg.AgentAddr = addr
				}
				if interval > 0 {
					cfg.AgentRefreshInterval = interval
				}
			})
			if err != nil {
				return err
			}
			defer a.Close()
			return a.RunAgent(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from NUVEM_AGENT_ADDR)")
	cmd.Flags().DurationVar(&interval, "refresh-interval", 0, "Refresh interval (default from NUVEM_AGENT_REFRESH_INTERVAL)")
	return cmd
}

func devIDPCmd(flags *rootFlags) *cobra.Command {
	var (
		addr   string
		cfg    = fakeidp.DefaultConfig()
		avatar string
	)

	cmd := &cobra.Command{
		Use:   "dev-idp",
		Short: "Run an in-memory identity service for local development",
		Long: `Serve the identity API under /api and a WebSocket endpoint at /ws, keeping
every account in memory. One-time codes are written to the log instead of
being e-mailed.

Examples:
  nuvem dev-idp
  NUVEM_API_URL=http://127.0.0.1:5000/api nuvem login --email ana@example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			log := flags.logger(cmd, app.EnvString("NUVEM_LOG_LEVEL", "info"), app.EnvString("NUVEM_LOG_FORMAT", "console"))
			cfg.DefaultAvatar = avatar
			return app.RunDevIDP(ctx, addr, cfg, log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:5000", "Listen address")
	cmd.Flags().DurationVar(&cfg.TokenTTL, "token-ttl", cfg.TokenTTL, "Access token lifetime")
	cmd.Flags().DurationVar(&cfg.CodeTTL, "code-ttl", cfg.CodeTTL, "One-time code lifetime")
	cmd.Flags().StringVar(&avatar, "avatar", "", "Avatar reference returned for new accounts")
	return cmd
}
