package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/EvertonHSP/Nuvem/cmd/internal/app"
	"github.com/EvertonHSP/Nuvem/cmd/internal/auth/session"
)

type rootFlags struct {
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "nuvem",
		Short: "Nuvem session client",
		Long: `nuvem signs this device in to the Nuvem identity service and keeps the
session in an encrypted local cache. It keeps working offline with the
cached session and revalidates it when the service is reachable again.

Configuration comes from NUVEM_* environment variables; NUVEM_STORE_KEY is
required by every command that touches the session.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides NUVEM_LOG_LEVEL")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "Log format (console, json); overrides NUVEM_LOG_FORMAT")

	cmd.AddCommand(
		statusCmd(flags),
		loginCmd(flags),
		registerCmd(flags),
		refreshCmd(flags),
		logoutCmd(flags),
		agentCmd(flags),
		devIDPCmd(flags),
		versionCmd(),
	)
	return cmd
}

// signalContext is cmd's context cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}

func (f *rootFlags) logger(cmd *cobra.Command, cfgLevel, cfgFormat string) app.Logger {
	level, format := cfgLevel, cfgFormat
	if f.logLevel != "" {
		level = f.logLevel
	}
	if f.logFormat != "" {
		format = f.logFormat
	}
	return app.NewLogger(level, format, cmd.ErrOrStderr())
}

// openApp loads the config, applies flag overrides and wires an App. The
// caller closes it.
func (f *rootFlags) openApp(ctx context.Context, cmd *cobra.Command, mutate func(*app.Config)) (*app.App, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return app.New(ctx, cfg, f.logger(cmd, cfg.LogLevel, cfg.LogFormat))
}

// userError keeps the cause in the chain but leads with the message meant
// for people.
func userError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", session.UserMessage(err), err)
}

var errNoInput = errors.New("unexpected end of input")

// lineReader reads answers from stdin one line at a time.
type lineReader struct {
	s *bufio.Scanner
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{s: bufio.NewScanner(r)}
}

func (l *lineReader) prompt(w io.Writer, label string) (string, error) {
	if label != "" {
		fmt.Fprint(w, label)
	}
	if !l.s.Scan() {
		if err := l.s.Err(); err != nil {
			return "", err
		}
		return "", errNoInput
	}
	return strings.TrimRight(l.s.Text(), "\r"), nil
}
