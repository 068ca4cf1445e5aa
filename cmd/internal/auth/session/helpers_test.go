package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/EvertonHSP/Nuvem/cmd/internal/auth/remote"
	"github.com/EvertonHSP/Nuvem/cmd/internal/auth/remote/fakeidp"
	"github.com/EvertonHSP/Nuvem/cmd/internal/auth/store"
	"github.com/EvertonHSP/Nuvem/cmd/internal/connectivity"
	"github.com/EvertonHSP/Nuvem/cmd/security/sealer"
)

const testPassword = "correct horse battery"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStore(t *testing.T) (*store.Store, *store.MemoryBackend) {
	t.Helper()
	s, err := sealer.New([]byte("session-test-key-0123456789"), sealer.Params{MemoryKiB: 64, Iterations: 1, Parallelism: 1})
	if err != nil {
		t.Fatalf("sealer.New: %v", err)
	}
	b := store.NewMemoryBackend()
	return store.New(b, s, discardLogger()), b
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// harness wires a Manager to an in-process identity service.
type harness struct {
	idp     *fakeidp.Server
	srv     *httptest.Server
	client  *remote.Client
	store   *store.Store
	backend *store.MemoryBackend
	mon     *connectivity.Monitor
}

func newHarness(t *testing.T, online bool) *harness {
	return newHarnessWithIDP(t, online, fakeidp.DefaultConfig())
}

func newHarnessWithIDP(t *testing.T, online bool, idpCfg fakeidp.Config) *harness {
	t.Helper()
	log := discardLogger()

	idp, err := fakeidp.New(idpCfg, log)
	if err != nil {
		t.Fatalf("fakeidp.New: %v", err)
	}
	srv := httptest.NewServer(idp.Handler())
	t.Cleanup(srv.Close)

	rcfg := remote.DefaultConfig()
	rcfg.BaseURL = srv.URL + "/api"
	rcfg.Timeout = 5 * time.Second
	client, err := remote.New(rcfg, remote.WithLogger(log))
	if err != nil {
		t.Fatalf("remote.New: %v", err)
	}

	st, backend := testStore(t)
	return &harness{
		idp:     idp,
		srv:     srv,
		client:  client,
		store:   st,
		backend: backend,
		mon:     connectivity.NewStatic(online, log),
	}
}

func (h *harness) manager(t *testing.T, cfg Config, opts ...Option) *Manager {
	t.Helper()
	return newTestManager(t, cfg, h.client, h.store, h.mon, opts...)
}

func newTestManager(t *testing.T, cfg Config, rc Remote, st Store, conn Connectivity, opts ...Option) *Manager {
	t.Helper()
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	m, err := NewManager(cfg, rc, st, conn, opts...)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

// seedUser registers and verifies email on the identity service and returns
// the resulting session payload.
func (h *harness) seedUser(t *testing.T, email, name string) remote.AuthResponse {
	t.Helper()
	ctx := context.Background()
	if _, err := h.client.Register(ctx, email, testPassword, name); err != nil {
		t.Fatalf("Register: %v", err)
	}
	code, ok := h.idp.CodeFor(email)
	if !ok {
		t.Fatalf("no code for %s", email)
	}
	resp, err := h.client.VerifyRegister(ctx, email, code)
	if err != nil {
		t.Fatalf("VerifyRegister: %v", err)
	}
	return resp
}

// seedCache writes a cached session as a previous run would have.
func (h *harness) seedCache(t *testing.T, resp remote.AuthResponse) {
	t.Helper()
	err := h.store.Save(context.Background(), store.Record{
		ID:          resp.UserID,
		Email:       resp.Email,
		DisplayName: resp.Name,
		AvatarRef:   resp.AvatarRef,
		Secret:      resp.AccessToken,
	})
	if err != nil {
		t.Fatalf("seed Save: %v", err)
	}
}

func (h *harness) loadCache(t *testing.T) *store.Record {
	t.Helper()
	r, err := h.store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return r
}

// fakeRemote is a scripted Remote. Gates, when set, block the matching call
// until closed; entered is signalled as the call starts.
type fakeRemote struct {
	mu sync.Mutex

	loginErr error

	verifyResp  remote.AuthResponse
	verifyErr   error
	verifyGate  chan struct{}
	verifyCalls int

	profile      remote.Profile
	profileErr   error
	profileGate  chan struct{}
	profileCalls int

	refreshResp remote.TokenResponse
	refreshErr  error

	logoutErr   error
	logoutCalls int

	entered chan struct{}
}

func (f *fakeRemote) signal() {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
}

func (f *fakeRemote) Register(context.Context, string, string, string) (remote.ChallengeResponse, error) {
	return remote.ChallengeResponse{}, f.loginErr
}

func (f *fakeRemote) Login(context.Context, string, string) (remote.ChallengeResponse, error) {
	return remote.ChallengeResponse{}, f.loginErr
}

func (f *fakeRemote) verify(ctx context.Context) (remote.AuthResponse, error) {
	f.mu.Lock()
	f.verifyCalls++
	gate := f.verifyGate
	f.mu.Unlock()

	if gate != nil {
		f.signal()
		<-gate
	}
	return f.verifyResp, f.verifyErr
}

func (f *fakeRemote) VerifyLogin(ctx context.Context, _, _ string) (remote.AuthResponse, error) {
	return f.verify(ctx)
}

func (f *fakeRemote) VerifyRegister(ctx context.Context, _, _ string) (remote.AuthResponse, error) {
	return f.verify(ctx)
}

func (f *fakeRemote) Logout(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return f.logoutErr
}

func (f *fakeRemote) GetProfile(ctx context.Context, _ string) (remote.Profile, error) {
	f.mu.Lock()
	f.profileCalls++
	gate := f.profileGate
	f.mu.Unlock()

	if gate != nil {
		f.signal()
		select {
		case <-gate:
		case <-ctx.Done():
			return remote.Profile{}, remote.OpError{Op: "remote.test", Kind: remote.ErrRequest, Err: ctx.Err()}
		}
	}
	return f.profile, f.profileErr
}

func (f *fakeRemote) RefreshToken(context.Context, string) (remote.TokenResponse, error) {
	return f.refreshResp, f.refreshErr
}

func (f *fakeRemote) calls() (verify, profile, logout int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verifyCalls, f.profileCalls, f.logoutCalls
}

// failingStore wraps a Store and fails Clear.
type failingStore struct {
	Store
}

var errDiskFull = errors.New("disk full")

func (failingStore) Clear(context.Context) error {
	return store.OpError{Op: "store.Clear", Kind: store.ErrStorage, Err: errDiskFull}
}

func networkErr() error {
	return remote.OpError{Op: "remote.test", Kind: remote.ErrNetwork, Err: errors.New("connection refused")}
}
