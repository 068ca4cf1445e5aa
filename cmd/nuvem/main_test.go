package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/EvertonHSP/Nuvem/cmd/internal/auth/remote/fakeidp"
	"github.com/EvertonHSP/Nuvem/cmd/internal/auth/session"
)

const testPassword = "correct horse battery"

// codeReader answers the password prompt, then waits for the identity
// service to issue a code for email and answers the code prompt with it.
type codeReader struct {
	idp      *fakeidp.Server
	email    string
	password string
	stale    string
	step     int
}

func (r *codeReader) Read(p []byte) (int, error) {
	switch r.step {
	case 0:
		r.step++
		return copy(p, r.password+"\n"), nil
	case 1:
		r.step++
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if code, ok := r.idp.CodeFor(r.email); ok && code != r.stale {
				return copy(p, code+"\n"), nil
			}
			time.Sleep(10 * time.Millisecond)
		}
		return 0, errors.New("no code issued")
	}
	return 0, io.EOF
}

func setupCLI(t *testing.T) *fakeidp.Server {
	t.Helper()

	idp, err := fakeidp.New(fakeidp.DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("fakeidp.New: %v", err)
	}
	srv := httptest.NewServer(idp.Handler())
	t.Cleanup(srv.Close)

	t.Setenv("NUVEM_API_URL", srv.URL+"/api")
	t.Setenv("NUVEM_STORE_DRIVER", "file")
	t.Setenv("NUVEM_STORE_PATH", t.TempDir())
	t.Setenv("NUVEM_STORE_KEY", "cli-test-key-0123456789")
	t.Setenv("NUVEM_ARGON2_MEMORY_KIB", "64")
	t.Setenv("NUVEM_ARGON2_ITERATIONS", "1")
	t.Setenv("NUVEM_ARGON2_PARALLELISM", "1")
	t.Setenv("NUVEM_CONNECTIVITY", "probe")
	t.Setenv("NUVEM_LOG_LEVEL", "error")
	return idp
}

func run(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	cmd.SetIn(stdin)
	err := cmd.Execute()
	return out.String(), err
}

func statusOf(t *testing.T) session.Status {
	t.Helper()
	out, err := run(t, nil, "status", "--json")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var raw struct {
		State string `json:"state"`
		Email string `json:"email"`
		Name  string `json:"display_name"`
	}
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		t.Fatalf("status output %q: %v", out, err)
	}
	st := session.Status{Email: raw.Email, DisplayName: raw.Name}
	switch raw.State {
	case "unauthenticated":
		st.State = session.Unauthenticated
	case "authenticated_online":
		st.State = session.AuthenticatedOnline
	case "authenticated_offline":
		st.State = session.AuthenticatedOffline
	default:
		t.Fatalf("unexpected state %q", raw.State)
	}
	return st
}

func TestCLI_RegisterLogoutLogin(t *testing.T) {
	idp := setupCLI(t)

	if st := statusOf(t); st.State != session.Unauthenticated {
		t.Fatalf("initial state=%v", st.State)
	}

	out, err := run(t, &codeReader{idp: idp, email: "ana@x.io", password: testPassword},
		"register", "--email", "Ana@X.io", "--name", "Ana")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !strings.Contains(out, "Conectado como Ana <ana@x.io>") {
		t.Fatalf("register output=%q", out)
	}

	st := statusOf(t)
	if st.State != session.AuthenticatedOnline || st.Email != "ana@x.io" || st.DisplayName != "Ana" {
		t.Fatalf("status after register=%+v", st)
	}

	if out, err := run(t, nil, "refresh"); err != nil || !strings.Contains(out, "authenticated_online") {
		t.Fatalf("refresh: %q %v", out, err)
	}

	if _, err := run(t, nil, "logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if st := statusOf(t); st.State != session.Unauthenticated {
		t.Fatalf("state after logout=%v", st.State)
	}
	if idp.Sessions() != 0 {
		t.Fatalf("service sessions after logout=%d", idp.Sessions())
	}

	if _, err := run(t, &codeReader{idp: idp, email: "ana@x.io", password: testPassword}, "login", "-e", "ana@x.io"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if st := statusOf(t); st.State != session.AuthenticatedOnline {
		t.Fatalf("state after login=%v", st.State)
	}
}

func TestCLI_WrongCode(t *testing.T) {
	idp := setupCLI(t)

	_, err := run(t, strings.NewReader(testPassword+"\n"+"not-a-code\n"), "register", "--email", "bia@x.io")
	if !errors.Is(err, session.ErrWrongCode) {
		t.Fatalf("err=%v want ErrWrongCode", err)
	}
	if !strings.HasPrefix(err.Error(), "Código de verificação inválido") {
		t.Fatalf("message=%q", err.Error())
	}
	if _, ok := idp.CodeFor("bia@x.io"); !ok {
		t.Fatalf("register did not reach the service")
	}
	if st := statusOf(t); st.State != session.Unauthenticated {
		t.Fatalf("state=%v", st.State)
	}
}

func TestCLI_RefreshWithoutSession(t *testing.T) {
	setupCLI(t)

	if _, err := run(t, nil, "refresh"); !errors.Is(err, errRefreshFailed) {
		t.Fatalf("err=%v want errRefreshFailed", err)
	}
}

func TestCLI_MissingStoreKey(t *testing.T) {
	setupCLI(t)
	t.Setenv("NUVEM_STORE_KEY", "")

	if _, err := run(t, nil, "status"); err == nil {
		t.Fatalf("status ran without a store key")
	}
}

func TestCLI_Version(t *testing.T) {
	out, err := run(t, nil, "version", "--short")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(out) != version {
		t.Fatalf("version output=%q", out)
	}
}
