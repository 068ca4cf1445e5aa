package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/EvertonHSP/Nuvem/cmd/internal/auth/remote"
	"github.com/EvertonHSP/Nuvem/cmd/internal/auth/store"
	"github.com/EvertonHSP/Nuvem/cmd/security/password"
)

// Remote is the identity service as the Manager uses it.
type Remote interface {
	Register(ctx context.Context, email, password, name string) (remote.ChallengeResponse, error)
	VerifyRegister(ctx context.Context, email, code string) (remote.AuthResponse, error)
	Login(ctx context.Context, email, password string) (remote.ChallengeResponse, error)
	VerifyLogin(ctx context.Context, email, code string) (remote.AuthResponse, error)
	Logout(ctx context.Context, secret string) error
	GetProfile(ctx context.Context, secret string) (remote.Profile, error)
	RefreshToken(ctx context.Context, secret string) (remote.TokenResponse, error)
}

// Store is the encrypted single-record session cache.
type Store interface {
	Save(ctx context.Context, r store.Record) error
	Load(ctx context.Context) (*store.Record, error)
	Clear(ctx context.Context) error
}

// Connectivity reports reachability of the identity service. Set is how the
// Manager reports a successful round trip the monitor has not seen yet.
type Connectivity interface {
	Online() bool
	Set(online bool)
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// Option customizes a Manager.
type Option func(*Manager)

// WithLogger replaces slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithRegisterer registers manager metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(m *Manager) { m.metrics = newManagerMetrics(reg) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithPasswordPolicy replaces password.DefaultPolicy for Register.
func WithPasswordPolicy(p password.Policy) Option {
	return func(m *Manager) { m.policy = p }
}

// Manager is the session state machine and the only writer of the Store.
//
// mu guards the in-memory view. writeMu serializes Store writes; a writer
// captures epoch before its remote call and re-checks it under mu before
// saving and again before applying, so a logout that happened meanwhile
// always wins. A verify whose challenge was replaced after its save clears
// the record again before returning. Lock order is writeMu, then mu.
type Manager struct {
	cfg     Config
	remote  Remote
	store   Store
	conn    Connectivity
	policy  password.Policy
	log     *slog.Logger
	metrics *managerMetrics
	now     func() time.Time

	throttle *throttle
	refresh  singleflight.Group
	writeMu  sync.Mutex

	mu          sync.Mutex
	state       State
	online      bool
	current     *Session
	pending     *Challenge
	epoch       uint64
	initStarted bool

	ready       chan struct{}
	unsubscribe func()
	closeOnce   sync.Once
}

// NewManager builds a Manager in the Initializing state and subscribes it to
// conn. Call Initialize before anything else.
func NewManager(cfg Config, rc Remote, st Store, conn Connectivity, opts ...Option) (*Manager, error) {
	if rc == nil || st == nil || conn == nil {
		return nil, ErrConfig
	}
	if cfg.ChallengeTTL <= 0 || cfg.LogoutTimeout <= 0 || cfg.RotateBefore < 0 {
		return nil, ErrConfig
	}

	m := &Manager{
		cfg:      cfg,
		remote:   rc,
		store:    st,
		conn:     conn,
		policy:   password.DefaultPolicy(),
		log:      slog.Default(),
		now:      time.Now,
		throttle: newThrottle(cfg.ChallengeLimit, cfg.ChallengeWindow),
		state:    Initializing,
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = newManagerMetrics(nil)
	}
	m.metrics.state.Set(float64(Initializing))

	m.online = conn.Online()
	m.unsubscribe = conn.Subscribe(m.onConnectivity)
	return m, nil
}

// Close unsubscribes from connectivity updates. It does not touch the session.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
	})
}

// Ready is closed once Initialize has settled.
func (m *Manager) Ready() <-chan struct{} { return m.ready }

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns a copy of the in-memory session.
func (m *Manager) Current() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Session{}, false
	}
	return *m.current, true
}

// Online reports the last reachability the Manager observed.
func (m *Manager) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Status returns a snapshot without the secret, for display.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{State: m.state, Online: m.online}
	if s := m.current; s != nil {
		st.UserID = s.ID
		st.Email = s.Email
		st.DisplayName = s.DisplayName
		st.AvatarRef = s.AvatarRef
		if !s.ExpiresAt.IsZero() {
			exp := s.ExpiresAt
			st.ExpiresAt = &exp
		}
	}
	if m.pending != nil {
		st.Pending = m.pending.Kind
	}
	return st
}

// Initialize restores the cached session and settles the initial state.
// It runs once; concurrent and later calls wait for the first to settle.
func (m *Manager) Initialize(ctx context.Context) State {
	m.mu.Lock()
	if m.initStarted {
		m.mu.Unlock()
		select {
		case <-m.ready:
		case <-ctx.Done():
		}
		return m.State()
	}
	m.initStarted = true
	m.mu.Unlock()

	st := m.initialize(ctx)
	close(m.ready)
	return st
}

func (m *Manager) initialize(ctx context.Context) State {
	rec, err := m.store.Load(ctx)
	if err != nil {
		m.log.Warn("session.init.cache_unreadable", "err", err)
		m.writeMu.Lock()
		if cErr := m.store.Clear(ctx); cErr != nil {
			m.log.Error("session.init.clear_failed", "err", cErr)
		}
		m.writeMu.Unlock()
		return m.settle(nil)
	}
	if rec == nil {
		m.log.Info("session.init.none")
		return m.settle(nil)
	}

	cached := sessionFromRecord(rec, m.cfg.DefaultDisplayName)
	if !m.Online() {
		m.log.Info("session.init.offline", "session", cached, "reason", "monitor")
		return m.settleOffline(cached)
	}

	profile, err := m.remote.GetProfile(ctx, cached.Secret)
	switch {
	case errors.Is(err, ErrUnauthorized):
		m.log.Info("session.init.unauthorized", "session", cached)
		m.forceLogout(ctx, "unauthorized")
		return m.State()
	case err != nil:
		m.log.Warn("session.init.offline", "session", cached, "reason", "validation_failed", "err", err)
		return m.settleOffline(cached)
	}

	if profile.ID != cached.ID {
		m.log.Warn("session.init.id_mismatch", "local_id", cached.ID, "remote_id", profile.ID)
	}
	merged, changed := merge(cached, profile)
	if changed {
		m.writeMu.Lock()
		err := m.store.Save(ctx, merged.record())
		m.writeMu.Unlock()
		if err != nil {
			m.log.Warn("session.init.save_failed", "err", err)
			merged = cached
		}
	}

	m.log.Info("session.init.online", "session", merged, "merged", changed)
	return m.settle(&merged)
}

// settle applies the result of initialization. A nil session means
// Unauthenticated; otherwise the state follows the online flag.
func (m *Manager) settle(s *Session) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = s
	if s == nil {
		m.setStateLocked(Unauthenticated)
	} else {
		m.setStateLocked(m.authenticatedStateLocked())
	}
	return m.state
}

// settleOffline keeps the cached session without remote validation.
func (m *Manager) settleOffline(s Session) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = &s
	m.setStateLocked(AuthenticatedOffline)
	return m.state
}

func (m *Manager) authenticatedStateLocked() State {
	if m.online {
		return AuthenticatedOnline
	}
	return AuthenticatedOffline
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.log.Debug("session.state", "from", m.state.String(), "to", s.String())
	m.state = s
	m.metrics.state.Set(float64(s))
	m.metrics.transitions.WithLabelValues(s.String()).Inc()
}

func (m *Manager) onConnectivity(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.online = online
	switch {
	case online && m.state == AuthenticatedOffline:
		m.setStateLocked(AuthenticatedOnline)
	case !online && m.state == AuthenticatedOnline:
		m.setStateLocked(AuthenticatedOffline)
	}
}

// observedReachable tells the monitor about a successful round trip.
// Must be called without mu held.
func (m *Manager) observedReachable() {
	if !m.conn.Online() {
		m.conn.Set(true)
	}
}

func (m *Manager) checkReady() error {
	select {
	case <-m.ready:
		return nil
	default:
		return ErrNotReady
	}
}

// Login checks credentials with the service, which sends a code to email.
func (m *Manager) Login(ctx context.Context, email, pw string) (Challenge, error) {
	if err := m.checkReady(); err != nil {
		return Challenge{}, err
	}
	email = normalizeEmail(email)
	if email == "" || pw == "" {
		return Challenge{}, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}
	if err := m.beginChallenge(); err != nil {
		return Challenge{}, err
	}

	if _, err := m.remote.Login(ctx, email, pw); err != nil {
		m.log.Info("session.login.failed", "email", email, "err", err)
		if errors.Is(err, ErrUnauthorized) {
			return Challenge{}, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return Challenge{}, err
	}
	m.observedReachable()
	return m.issueChallenge(ChallengeLogin, email)
}

// Register creates an account; the service sends a code to email.
func (m *Manager) Register(ctx context.Context, email, pw, name string) (Challenge, error) {
	if err := m.checkReady(); err != nil {
		return Challenge{}, err
	}
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return Challenge{}, fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	if err := m.policy.Validate(pw); err != nil {
		return Challenge{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := m.beginChallenge(); err != nil {
		return Challenge{}, err
	}

	if _, err := m.remote.Register(ctx, email, pw, strings.TrimSpace(name)); err != nil {
		m.log.Info("session.register.failed", "email", email, "err", err)
		return Challenge{}, err
	}
	m.observedReachable()
	return m.issueChallenge(ChallengeRegister, email)
}

// beginChallenge rejects code requests while a session exists or the
// throttle is exhausted.
func (m *Manager) beginChallenge() error {
	m.mu.Lock()
	authenticated := m.current != nil
	m.mu.Unlock()
	if authenticated {
		return ErrAlreadyAuthenticated
	}
	if ok, retry := m.throttle.allow(m.now()); !ok {
		return ThrottledError{RetryAfter: retry}
	}
	return nil
}

func (m *Manager) issueChallenge(kind ChallengeKind, email string) (Challenge, error) {
	now := m.now()
	ch := Challenge{
		ID:        uuid.NewString(),
		Kind:      kind,
		Email:     email,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.cfg.ChallengeTTL),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		return Challenge{}, ErrAlreadyAuthenticated
	}
	m.pending = &ch
	m.setStateLocked(Authenticating)
	m.log.Info("session.challenge.issued", "kind", string(kind), "email", email, "challenge_id", ch.ID)
	return ch, nil
}

// VerifyLogin exchanges a login challenge and its code for a session.
func (m *Manager) VerifyLogin(ctx context.Context, ch Challenge, code string) (Session, error) {
	return m.verify(ctx, ch, code, ChallengeLogin)
}

// VerifyRegister exchanges a register challenge and its code for a session.
func (m *Manager) VerifyRegister(ctx context.Context, ch Challenge, code string) (Session, error) {
	return m.verify(ctx, ch, code, ChallengeRegister)
}

func (m *Manager) verify(ctx context.Context, ch Challenge, code string, kind ChallengeKind) (Session, error) {
	if err := m.checkReady(); err != nil {
		return Session{}, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return Session{}, fmt.Errorf("%w: code is required", ErrInvalidInput)
	}

	m.mu.Lock()
	if m.current != nil {
		m.mu.Unlock()
		return Session{}, ErrAlreadyAuthenticated
	}
	p := m.pending
	if p == nil || p.ID != ch.ID || p.Kind != kind {
		m.mu.Unlock()
		return Session{}, ErrInvalidChallenge
	}
	if p.Expired(m.now()) {
		m.dropPendingLocked(p.ID)
		m.mu.Unlock()
		m.metrics.verify.WithLabelValues(string(kind), "expired").Inc()
		return Session{}, ErrInvalidChallenge
	}
	pending := *p
	epoch := m.epoch
	m.mu.Unlock()

	var (
		resp remote.AuthResponse
		err  error
	)
	if kind == ChallengeLogin {
		resp, err = m.remote.VerifyLogin(ctx, pending.Email, code)
	} else {
		resp, err = m.remote.VerifyRegister(ctx, pending.Email, code)
	}
	if err != nil {
		if isTransport(err) {
			m.metrics.verify.WithLabelValues(string(kind), "transport").Inc()
			m.log.Warn("session.verify.transport", "kind", string(kind), "err", err)
			return Session{}, err
		}
		err = classifyVerify(err)
		m.mu.Lock()
		m.dropPendingLocked(pending.ID)
		m.mu.Unlock()
		m.metrics.verify.WithLabelValues(string(kind), "rejected").Inc()
		m.log.Info("session.verify.rejected", "kind", string(kind), "err", err)
		return Session{}, err
	}
	m.observedReachable()

	sess := sessionFromAuth(resp, pending.Email, m.cfg.DefaultDisplayName)

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if !m.stillPending(epoch, pending.ID) {
		m.metrics.verify.WithLabelValues(string(kind), "stale").Inc()
		return Session{}, ErrInvalidChallenge
	}
	if err := m.store.Save(ctx, sess.record()); err != nil {
		m.mu.Lock()
		m.dropPendingLocked(pending.ID)
		m.mu.Unlock()
		m.metrics.verify.WithLabelValues(string(kind), "save_failed").Inc()
		m.log.Error("session.verify.save_failed", "kind", string(kind), "err", err)
		return Session{}, err
	}

	m.mu.Lock()
	if m.epoch != epoch || m.pending == nil || m.pending.ID != pending.ID {
		loggedOut := m.epoch != epoch
		m.mu.Unlock()
		// A logout is waiting on writeMu and clears the record itself. A newer
		// challenge replaced this one, so nothing else will.
		if !loggedOut {
			if err := m.store.Clear(ctx); err != nil {
				m.log.Error("session.verify.clear_failed", "kind", string(kind), "err", err)
			}
		}
		m.metrics.verify.WithLabelValues(string(kind), "stale").Inc()
		return Session{}, ErrInvalidChallenge
	}
	defer m.mu.Unlock()
	m.pending = nil
	m.current = &sess
	m.setStateLocked(m.authenticatedStateLocked())
	m.metrics.verify.WithLabelValues(string(kind), "ok").Inc()
	m.log.Info("session.verify.ok", "kind", string(kind), "session", sess)
	return sess, nil
}

func (m *Manager) stillPending(epoch uint64, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch == epoch && m.pending != nil && m.pending.ID == id
}

func (m *Manager) dropPendingLocked(id string) {
	if m.pending == nil || m.pending.ID != id {
		return
	}
	m.pending = nil
	if m.state == Authenticating {
		m.setStateLocked(Unauthenticated)
	}
}

// Logout ends the session locally and, when online, on the service.
// It always ends Unauthenticated; only a failure to clear the cache is
// returned.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.checkReady(); err != nil {
		return err
	}

	m.mu.Lock()
	prev := m.current
	online := m.online
	m.resetLocked()
	m.mu.Unlock()

	m.writeMu.Lock()
	clearErr := m.store.Clear(ctx)
	m.writeMu.Unlock()

	if prev != nil && online {
		rctx, cancel := context.WithTimeout(ctx, m.cfg.LogoutTimeout)
		if err := m.remote.Logout(rctx, prev.Secret); err != nil {
			m.log.Warn("session.logout.remote_failed", "err", err)
		}
		cancel()
	}

	m.metrics.logout.WithLabelValues("user").Inc()
	if clearErr != nil {
		m.log.Error("session.logout.clear_failed", "err", clearErr)
		return clearErr
	}
	m.log.Info("session.logout.ok", "had_session", prev != nil, "remote", prev != nil && online)
	return nil
}

// forceLogout ends the session locally after the service rejected it.
// There is no remote call: the service already considers it gone.
func (m *Manager) forceLogout(ctx context.Context, reason string) {
	m.mu.Lock()
	m.resetLocked()
	m.mu.Unlock()

	m.writeMu.Lock()
	if err := m.store.Clear(ctx); err != nil {
		m.log.Error("session.logout.clear_failed", "reason", reason, "err", err)
	}
	m.writeMu.Unlock()

	m.metrics.logout.WithLabelValues(reason).Inc()
}

// resetLocked invalidates in-flight writers and forgets the session.
func (m *Manager) resetLocked() {
	m.epoch++
	m.current = nil
	m.pending = nil
	m.setStateLocked(Unauthenticated)
}
