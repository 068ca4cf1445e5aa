package session

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/EvertonHSP/Nuvem/cmd/internal/auth/remote"
	"github.com/EvertonHSP/Nuvem/cmd/internal/auth/store"
)

// Session is the authenticated user on this device. Secret is the bearer
// token in plaintext; it only leaves memory encrypted.
type Session struct {
	ID          string
	Email       string
	DisplayName string
	AvatarRef   string
	Secret      string

	// ExpiresAt is the exp claim of Secret when it is a JWT. Never persisted.
	ExpiresAt time.Time
}

// LogValue keeps the secret out of structured logs.
func (s Session) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("id", s.ID),
		slog.String("email", s.Email),
	}
	if !s.ExpiresAt.IsZero() {
		attrs = append(attrs, slog.Time("expires_at", s.ExpiresAt))
	}
	return slog.GroupValue(attrs...)
}

func (s Session) String() string {
	return fmt.Sprintf("Session{ID:%s Email:%s DisplayName:%s Secret:[redacted]}", s.ID, s.Email, s.DisplayName)
}

func (s Session) record() store.Record {
	return store.Record{
		ID:          s.ID,
		Email:       s.Email,
		DisplayName: s.DisplayName,
		AvatarRef:   s.AvatarRef,
		Secret:      s.Secret,
	}
}

func sessionFromRecord(r *store.Record, placeholder string) Session {
	name := r.DisplayName
	if strings.TrimSpace(name) == "" {
		name = placeholder
	}
	exp, _ := secretExpiry(r.Secret)
	return Session{
		ID:          r.ID,
		Email:       r.Email,
		DisplayName: name,
		AvatarRef:   r.AvatarRef,
		Secret:      r.Secret,
		ExpiresAt:   exp,
	}
}

func sessionFromAuth(a remote.AuthResponse, email, placeholder string) Session {
	if e := normalizeEmail(a.Email); e != "" {
		email = e
	}
	name := strings.TrimSpace(a.Name)
	if name == "" {
		name = placeholder
	}
	exp, _ := secretExpiry(a.AccessToken)
	return Session{
		ID:          strings.TrimSpace(a.UserID),
		Email:       email,
		DisplayName: name,
		AvatarRef:   a.AvatarRef,
		Secret:      a.AccessToken,
		ExpiresAt:   exp,
	}
}

// merge applies newer profile fields onto s. The local id is authoritative;
// empty remote fields are treated as absent.
func merge(s Session, p remote.Profile) (Session, bool) {
	out := s
	if e := normalizeEmail(p.Email); e != "" {
		out.Email = e
	}
	if n := strings.TrimSpace(p.Name); n != "" {
		out.DisplayName = n
	}
	if p.AvatarRef != "" {
		out.AvatarRef = p.AvatarRef
	}
	return out, out != s
}

// ChallengeKind says which verify call a Challenge belongs to.
type ChallengeKind string

const (
	ChallengeLogin    ChallengeKind = "login"
	ChallengeRegister ChallengeKind = "register"
)

// Challenge is a pending code request. It is held in memory only.
type Challenge struct {
	ID        string
	Kind      ChallengeKind
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the code window has closed at now.
func (c Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
