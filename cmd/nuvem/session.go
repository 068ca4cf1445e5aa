package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/EvertonHSP/Nuvem/cmd/internal/auth/session"
)

func statusCmd(flags *rootFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the session on this device",
		Long: `Restore the cached session, revalidate it when the identity service is
reachable, and print the result.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			a, err := flags.openApp(ctx, cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			a.Manager().Initialize(ctx)
			st := a.Manager().Status()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the status as JSON")
	return cmd
}

func printStatus(w io.Writer, st session.Status) {
	fmt.Fprintf(w, "  Estado:   %s\n", st.State)
	fmt.Fprintf(w, "  Online:   %t\n", st.Online)
	if !st.State.Authenticated() {
		return
	}
	fmt.Fprintf(w, "  Usuário:  %s <%s>\n", st.DisplayName, st.Email)
	fmt.Fprintf(w, "  ID:       %s\n", st.UserID)
	if st.ExpiresAt != nil {
		fmt.Fprintf(w, "  Expira:   %s\n", st.ExpiresAt.Local().Format(time.RFC1123))
	}
}

func loginCmd(flags *rootFlags) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with e-mail, password and a one-time code",
		Long: `Sign in to the identity service. The password is read from the first line
of stdin; the service then e-mails a one-time code, read from the next line.

Examples:
  nuvem login --email ana@example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChallenge(cmd, flags, session.ChallengeLogin, email, "")
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account e-mail")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func registerCmd(flags *rootFlags) *cobra.Command {
	var email, name string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Long: `Create an account on the identity service. The password is read from the
first line of stdin and checked against the local password policy; the
one-time code e-mailed by the service is read from the next line. A verified
registration signs this device in.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChallenge(cmd, flags, session.ChallengeRegister, email, name)
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account e-mail")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func runChallenge(cmd *cobra.Command, flags *rootFlags, kind session.ChallengeKind, email, name string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	a, err := flags.openApp(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	m := a.Manager()
	m.Initialize(ctx)

	in := newLineReader(cmd.InOrStdin())
	stderr := cmd.ErrOrStderr()

	pw, err := in.prompt(stderr, "Senha: ")
	if err != nil {
		return err
	}

	var ch session.Challenge
	if kind == session.ChallengeRegister {
		ch, err = m.Register(ctx, email, pw, name)
	} else {
		ch, err = m.Login(ctx, email, pw)
	}
	if err != nil {
		return userError(err)
	}

	fmt.Fprintf(stderr, "Código de verificação enviado para %s (válido até %s)\n", ch.Email, ch.ExpiresAt.Local().Format("15:04"))
	code, err := in.prompt(stderr, "Código: ")
	if err != nil {
		return err
	}

	var s session.Session
	if kind == session.ChallengeRegister {
		s, err = m.VerifyRegister(ctx, ch, code)
	} else {
		s, err = m.VerifyLogin(ctx, ch, code)
	}
	if err != nil {
		return userError(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Conectado como %s <%s>\n", s.DisplayName, s.Email)
	return nil
}

var errRefreshFailed = errors.New("não foi possível atualizar a sessão")

func refreshCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Revalidate the session and pull profile changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			a, err := flags.openApp(ctx, cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			m := a.Manager()
			m.Initialize(ctx)
			if !m.RefreshSession(ctx) {
				return errRefreshFailed
			}
			printStatus(cmd.OutOrStdout(), m.Status())
			return nil
		},
	}
}

func logoutCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session on this device and on the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			a, err := flags.openApp(ctx, cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			m := a.Manager()
			m.Initialize(ctx)
			if err := m.Logout(ctx); err != nil {
				return userError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Sessão encerrada")
			return nil
		},
	}
}
