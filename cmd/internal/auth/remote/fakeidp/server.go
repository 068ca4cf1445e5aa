package fakeidp

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Config controls token and code lifetimes.
type Config struct {
	// SigningKey signs HS256 access tokens. A random key is used when empty.
	SigningKey []byte

	TokenTTL time.Duration
	CodeTTL  time.Duration

	// DefaultAvatar is returned as foto_perfil for new users.
	DefaultAvatar string

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig mirrors the real service: 1 day tokens, 15 minute codes.
func DefaultConfig() Config {
	return Config{
		TokenTTL: 24 * time.Hour,
		CodeTTL:  15 * time.Minute,
		Now:      time.Now,
	}
}

type user struct {
	id           string
	email        string
	name         string
	avatar       string
	passwordHash []byte
	verified     bool
	createdAt    time.Time
}

type pendingCode struct {
	code      string
	expiresAt time.Time
}

type failure struct {
	status int
	body   string
}

// Server is the in-memory identity service.
type Server struct {
	cfg Config
	key []byte
	log *slog.Logger

	mu       sync.Mutex
	users    map[string]*user       // by normalized email
	codes    map[string]pendingCode // by normalized email
	sessions map[string]string      // jti -> user id
	calls    map[string]int         // by route
	inject   map[string]failure     // by route, consumed once
}

// New builds a Server. The zero Config fields take DefaultConfig values.
func New(cfg Config, log *slog.Logger) (*Server, error) {
	def := DefaultConfig()
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = def.TokenTTL
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = def.CodeTTL
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	if log == nil {
		log = slog.Default()
	}

	key := cfg.SigningKey
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("signing key: %w", err)
		}
	}

	return &Server{
		cfg:      cfg,
		key:      key,
		log:      log,
		users:    make(map[string]*user),
		codes:    make(map[string]pendingCode),
		sessions: make(map[string]string),
		calls:    make(map[string]int),
		inject:   make(map[string]failure),
	}, nil
}

// CodeFor returns the outstanding code for email, if any.
func (s *Server) CodeFor(email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc, ok := s.codes[normalizeEmail(email)]
	return pc.code, ok
}

// Calls returns how many requests reached route (for example "POST /auth/logout").
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// FailNext makes the next request to route answer status with body.
func (s *Server) FailNext(route string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inject[route] = failure{status: status, body: body}
}

// UpdateProfile changes the name and avatar of a registered user.
func (s *Server) UpdateProfile(email, name, avatar string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[normalizeEmail(email)]
	if !ok {
		return false
	}
	u.name = name
	u.avatar = avatar
	return true
}

// RevokeAll ends every session of the user with email.
func (s *Server) RevokeAll(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[normalizeEmail(email)]
	if !ok {
		return
	}
	for jti, uid := range s.sessions {
		if uid == u.id {
			delete(s.sessions, jti)
		}
	}
}

// Sessions returns the number of live sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// IssueToken signs a token for email without a code round trip and records
// the session. Only registered users get one.
func (s *Server) IssueToken(email string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[normalizeEmail(email)]
	if !ok {
		return "", errors.New("unknown user")
	}
	return s.issueLocked(u, ttl)
}

func (s *Server) register(email, password, name string) (int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeEmail(email)
	if existing, ok := s.users[key]; ok && existing.verified {
		return 400, "E-mail já registrado e verificado"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return 500, "Erro interno"
	}

	u, ok := s.users[key]
	if !ok {
		u = &user{id: uuid.NewString(), email: key, createdAt: s.cfg.Now()}
		s.users[key] = u
	}
	u.name = strings.TrimSpace(name)
	u.avatar = s.cfg.DefaultAvatar
	u.passwordHash = hash

	if err := s.sendCodeLocked(key); err != nil {
		return 500, "Falha ao enviar código de verificação"
	}
	return 0, ""
}

func (s *Server) login(email, password string) (int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeEmail(email)
	u, ok := s.users[key]
	if !ok || bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)) != nil {
		return 401, "Credenciais inválidas"
	}
	if !u.verified {
		return 403, "Conta não verificada. Verifique seu email."
	}
	if err := s.sendCodeLocked(key); err != nil {
		return 500, "Falha ao enviar código de verificação"
	}
	return 0, ""
}

// verify consumes the code for email. forRegister selects the register
// endpoint's distinct not-found and wrong-code messages.
func (s *Server) verify(email, code string, forRegister bool) (*user, string, int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeEmail(email)
	u, ok := s.users[key]
	if !ok {
		return nil, "", 404, "Usuário não encontrado"
	}

	pc, ok := s.codes[key]
	expired := ok && !s.cfg.Now().Before(pc.expiresAt)
	if forRegister && (!ok || expired) {
		return nil, "", 404, "Código 2FA expirado ou não encontrado"
	}
	match := ok && subtle.ConstantTimeCompare([]byte(pc.code), []byte(strings.TrimSpace(code))) == 1
	if !match || expired {
		if forRegister {
			return nil, "", 400, "Código 2FA inválido"
		}
		return nil, "", 400, "Código 2FA inválido ou expirado"
	}

	delete(s.codes, key)
	u.verified = true

	tok, err := s.issueLocked(u, s.cfg.TokenTTL)
	if err != nil {
		return nil, "", 500, "Erro interno"
	}
	cp := *u
	return &cp, tok, 0, ""
}

func (s *Server) sendCodeLocked(email string) error {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return err
	}
	code := fmt.Sprintf("%06d", n.Int64())
	s.codes[email] = pendingCode{code: code, expiresAt: s.cfg.Now().Add(s.cfg.CodeTTL)}
	s.log.Info("fakeidp.code", "email", email, "code", code)
	return nil
}

type claims struct {
	jwt.RegisteredClaims
}

func (s *Server) issueLocked(u *user, ttl time.Duration) (string, error) {
	now := s.cfg.Now()
	jti := uuid.NewString()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{jwt.RegisteredClaims{
		Issuer:    "nuvem-fakeidp",
		Subject:   u.id,
		ID:        jti,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}})
	signed, err := tok.SignedString(s.key)
	if err != nil {
		return "", err
	}
	s.sessions[jti] = u.id
	return signed, nil
}

// authenticate resolves a bearer token to its live session.
func (s *Server) authenticate(bearer string) (*user, string, bool) {
	c := &claims{}
	_, err := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer("nuvem-fakeidp"),
		jwt.WithTimeFunc(s.cfg.Now),
	).ParseWithClaims(bearer, c, func(*jwt.Token) (any, error) { return s.key, nil })
	if err != nil {
		return nil, "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	uid, ok := s.sessions[c.ID]
	if !ok || uid != c.Subject {
		return nil, "", false
	}
	for _, u := range s.users {
		if u.id == uid {
			cp := *u
			return &cp, c.ID, true
		}
	}
	return nil, "", false
}

func (s *Server) endSession(jti string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, jti)
}

func (s *Server) rotate(u *user, jti string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, jti)
	return s.issueLocked(u, s.cfg.TokenTTL)
}

func (s *Server) track(route string) (failure, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[route]++
	f, ok := s.inject[route]
	if ok {
		delete(s.inject, route)
	}
	return f, ok
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
