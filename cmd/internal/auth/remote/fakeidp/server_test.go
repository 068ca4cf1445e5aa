package fakeidp

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/EvertonHSP/Nuvem/cmd/internal/auth/remote"
	"github.com/EvertonHSP/Nuvem/cmd/internal/connectivity"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestIDP(t *testing.T, clk *clock) (*Server, *remote.Client, *httptest.Server) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := DefaultConfig()
	if clk != nil {
		cfg.Now = clk.now
	}
	idp, err := New(cfg, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := httptest.NewServer(idp.Handler())
	t.Cleanup(srv.Close)

	rcfg := remote.DefaultConfig()
	rcfg.BaseURL = srv.URL + "/api"
	client, err := remote.New(rcfg, remote.WithLogger(log))
	if err != nil {
		t.Fatalf("remote.New: %v", err)
	}
	return idp, client, srv
}

func registerUser(t *testing.T, idp *Server, c *remote.Client, email string) remote.AuthResponse {
	t.Helper()
	ctx := context.Background()
	if _, err := c.Register(ctx, email, "correct horse battery", "Ana"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	code, ok := idp.CodeFor(email)
	if !ok {
		t.Fatalf("no code issued")
	}
	resp, err := c.VerifyRegister(ctx, email, code)
	if err != nil {
		t.Fatalf("VerifyRegister: %v", err)
	}
	return resp
}

func TestServer_RegisterLoginProfileRefreshLogout(t *testing.T) {
	t.Parallel()

	idp, c, _ := newTestIDP(t, nil)
	ctx := context.Background()

	reg := registerUser(t, idp, c, "a@x.io")
	if reg.UserID == "" || reg.AccessToken == "" || reg.Name != "Ana" {
		t.Fatalf("VerifyRegister = %+v", reg)
	}

	if _, err := c.Login(ctx, "a@x.io", "correct horse battery"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	code, _ := idp.CodeFor("a@x.io")
	auth, err := c.VerifyLogin(ctx, "a@x.io", code)
	if err != nil {
		t.Fatalf("VerifyLogin: %v", err)
	}
	if auth.UserID != reg.UserID {
		t.Fatalf("user id changed: %q vs %q", auth.UserID, reg.UserID)
	}

	p, err := c.GetProfile(ctx, auth.AccessToken)
	if err != nil || p.ID != reg.UserID || p.Email != "a@x.io" {
		t.Fatalf("GetProfile = %+v, %v", p, err)
	}

	tok, err := c.RefreshToken(ctx, auth.AccessToken)
	if err != nil || tok.AccessToken == auth.AccessToken {
		t.Fatalf("RefreshToken = %+v, %v", tok, err)
	}
	if _, err := c.GetProfile(ctx, auth.AccessToken); !remote.IsUnauthorized(err) {
		t.Fatalf("rotated-out token still valid: %v", err)
	}

	if err := c.Logout(ctx, tok.AccessToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := c.GetProfile(ctx, tok.AccessToken); !remote.IsUnauthorized(err) {
		t.Fatalf("GetProfile after logout err = %v, want unauthorized", err)
	}
}

func TestServer_LoginErrors(t *testing.T) {
	t.Parallel()

	_, c, _ := newTestIDP(t, nil)
	ctx := context.Background()

	if _, err := c.Login(ctx, "nobody@x.io", "pw"); !remote.IsUnauthorized(err) {
		t.Fatalf("unknown user err = %v, want unauthorized", err)
	}

	if _, err := c.Register(ctx, "b@x.io", "pw-long-enough", "Bia"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := c.Login(ctx, "b@x.io", "pw-long-enough")
	ae, ok := remote.AsAPIError(err)
	if !ok || ae.Status != http.StatusForbidden {
		t.Fatalf("unverified login err = %v, want 403", err)
	}
}

func TestServer_VerifyErrors(t *testing.T) {
	t.Parallel()

	clk := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	idp, c, _ := newTestIDP(t, clk)
	ctx := context.Background()

	if _, err := c.Register(ctx, "a@x.io", "pw-long-enough", "Ana"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	code, _ := idp.CodeFor("a@x.io")
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	_, err := c.VerifyRegister(ctx, "a@x.io", wrong)
	if ae, ok := remote.AsAPIError(err); !ok || ae.Code != remote.CodeInvalidCode {
		t.Fatalf("wrong code err = %v, want invalid_code", err)
	}

	clk.advance(16 * time.Minute)
	_, err = c.VerifyRegister(ctx, "a@x.io", code)
	if ae, ok := remote.AsAPIError(err); !ok || ae.Code != remote.CodeChallengeNotFound {
		t.Fatalf("expired code err = %v, want challenge_not_found", err)
	}
}

func TestServer_ExpiredTokenIsUnauthorized(t *testing.T) {
	t.Parallel()

	clk := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	idp, c, _ := newTestIDP(t, clk)

	reg := registerUser(t, idp, c, "a@x.io")
	clk.advance(25 * time.Hour)

	if _, err := c.GetProfile(context.Background(), reg.AccessToken); !remote.IsUnauthorized(err) {
		t.Fatalf("err = %v, want unauthorized", err)
	}
}

func TestServer_FailNextAndCalls(t *testing.T) {
	t.Parallel()

	idp, c, _ := newTestIDP(t, nil)
	reg := registerUser(t, idp, c, "a@x.io")

	idp.FailNext("GET /auth/me", http.StatusServiceUnavailable, `{"error":"maintenance"}`)
	_, err := c.GetProfile(context.Background(), reg.AccessToken)
	if ae, ok := remote.AsAPIError(err); !ok || ae.Status != http.StatusServiceUnavailable || ae.Message != "maintenance" {
		t.Fatalf("err = %v, want injected 503", err)
	}
	if _, err := c.GetProfile(context.Background(), reg.AccessToken); err != nil {
		t.Fatalf("second GetProfile: %v", err)
	}
	if n := idp.Calls("GET /auth/me"); n != 2 {
		t.Fatalf("calls = %d, want 2", n)
	}
}

func TestServer_UpdateProfileAndRevoke(t *testing.T) {
	t.Parallel()

	idp, c, _ := newTestIDP(t, nil)
	reg := registerUser(t, idp, c, "a@x.io")

	if !idp.UpdateProfile("a@x.io", "Ana Maria", "avatars/1.png") {
		t.Fatalf("UpdateProfile failed")
	}
	p, err := c.GetProfile(context.Background(), reg.AccessToken)
	if err != nil || p.Name != "Ana Maria" || p.AvatarRef != "avatars/1.png" {
		t.Fatalf("GetProfile = %+v, %v", p, err)
	}

	idp.RevokeAll("a@x.io")
	if idp.Sessions() != 0 {
		t.Fatalf("sessions = %d, want 0", idp.Sessions())
	}
	if _, err := c.GetProfile(context.Background(), reg.AccessToken); !remote.IsUnauthorized(err) {
		t.Fatalf("err = %v, want unauthorized", err)
	}
}

func TestServer_RegisterVerifiedEmailTwice(t *testing.T) {
	t.Parallel()

	idp, c, _ := newTestIDP(t, nil)
	registerUser(t, idp, c, "a@x.io")

	_, err := c.Register(context.Background(), " A@X.io ", "other-password", "Ana")
	ae, ok := remote.AsAPIError(err)
	if !ok || ae.Status != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400", err)
	}
}

func TestServer_WebSocketProbe(t *testing.T) {
	t.Parallel()

	_, _, srv := newTestIDP(t, nil)

	p := &connectivity.WebSocketProbe{URL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"}
	defer func() { _ = p.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if !p.Check(ctx) {
		t.Fatalf("probe reported offline against a live server")
	}
	if !p.Check(ctx) {
		t.Fatalf("second check on the kept connection failed")
	}
}

func TestServer_HeadAPIRoot(t *testing.T) {
	t.Parallel()

	_, _, srv := newTestIDP(t, nil)
	p := connectivity.HTTPProbe{URL: srv.URL + "/api"}
	if !p.Check(context.Background()) {
		t.Fatalf("HTTP probe reported offline")
	}
}

func TestIssueToken_UnknownUser(t *testing.T) {
	t.Parallel()

	idp, _, _ := newTestIDP(t, nil)
	if _, err := idp.IssueToken("nobody@x.io", time.Minute); err == nil {
		t.Fatalf("expected error")
	}
}
