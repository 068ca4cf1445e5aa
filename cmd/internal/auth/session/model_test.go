package session

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/EvertonHSP/Nuvem/cmd/internal/auth/remote"
	"github.com/EvertonHSP/Nuvem/cmd/internal/auth/store"
)

func TestSession_SecretRedacted(t *testing.T) {
	t.Parallel()

	s := Session{ID: "u1", Email: "a@x.io", DisplayName: "Ana", Secret: "s3cr3t-token"}

	if strings.Contains(s.String(), "s3cr3t") || strings.Contains(fmt.Sprintf("%v", s), "s3cr3t") {
		t.Fatalf("String leaks the secret")
	}

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	log.Info("test", "session", s)
	if strings.Contains(buf.String(), "s3cr3t") {
		t.Fatalf("log output leaks the secret: %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"id":"u1"`) {
		t.Fatalf("log output = %s", buf.String())
	}
}

func TestSecretExpiry(t *testing.T) {
	t.Parallel()

	exp := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u1"}).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tests := []struct {
		name   string
		secret string
		want   time.Time
		ok     bool
	}{
		{"jwt", tok, exp, true},
		{"jwt without exp", noExp, time.Time{}, false},
		{"opaque", "opaque-token", time.Time{}, false},
		{"empty", "", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := secretExpiry(tt.secret)
		if ok != tt.ok || !got.Equal(tt.want) {
			t.Fatalf("%s: secretExpiry = %v, %v; want %v, %v", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMerge(t *testing.T) {
	t.Parallel()

	base := Session{ID: "u1", Email: "a@x.io", DisplayName: "Ana", AvatarRef: "old.png", Secret: "T"}

	tests := []struct {
		name    string
		profile remote.Profile
		want    Session
		changed bool
	}{
		{
			name:    "same",
			profile: remote.Profile{ID: "u1", Email: "a@x.io", Name: "Ana", AvatarRef: "old.png"},
			want:    base,
		},
		{
			name:    "empty remote fields ignored",
			profile: remote.Profile{ID: "u1"},
			want:    base,
		},
		{
			name:    "newer fields win",
			profile: remote.Profile{ID: "u1", Email: " B@X.io", Name: "Ana B", AvatarRef: "new.png"},
			want:    Session{ID: "u1", Email: "b@x.io", DisplayName: "Ana B", AvatarRef: "new.png", Secret: "T"},
			changed: true,
		},
		{
			name:    "local id kept",
			profile: remote.Profile{ID: "u2", Name: "Ana"},
			want:    base,
		},
	}
	for _, tt := range tests {
		got, changed := merge(base, tt.profile)
		if got != tt.want || changed != tt.changed {
			t.Fatalf("%s: merge = %v, %v; want %v, %v", tt.name, got, changed, tt.want, tt.changed)
		}
	}
}

func TestSessionFromRecordAndAuth(t *testing.T) {
	t.Parallel()

	s := sessionFromRecord(&store.Record{ID: "u1", Email: "a@x.io", Secret: "T"}, "Usuário")
	if s.DisplayName != "Usuário" || s.Secret != "T" {
		t.Fatalf("sessionFromRecord = %v", s)
	}
	if s.record() != (store.Record{ID: "u1", Email: "a@x.io", DisplayName: "Usuário", Secret: "T"}) {
		t.Fatalf("record = %+v", s.record())
	}

	a := sessionFromAuth(remote.AuthResponse{UserID: " u1 ", AccessToken: "T", Name: " "}, "a@x.io", "Usuário")
	if a.ID != "u1" || a.Email != "a@x.io" || a.DisplayName != "Usuário" {
		t.Fatalf("sessionFromAuth = %v", a)
	}
	b := sessionFromAuth(remote.AuthResponse{UserID: "u1", AccessToken: "T", Email: "Other@X.io", Name: "Ana"}, "a@x.io", "Usuário")
	if b.Email != "other@x.io" || b.DisplayName != "Ana" {
		t.Fatalf("sessionFromAuth = %v", b)
	}
}

func TestChallengeExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := Challenge{IssuedAt: now, ExpiresAt: now.Add(15 * time.Minute)}
	if c.Expired(now.Add(15*time.Minute - time.Second)) {
		t.Fatalf("expired before the window closed")
	}
	if !c.Expired(now.Add(15 * time.Minute)) {
		t.Fatalf("not expired at the window edge")
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	for s, want := range map[State]string{
		Initializing:         "initializing",
		Unauthenticated:      "unauthenticated",
		Authenticating:       "authenticating",
		AuthenticatedOnline:  "authenticated_online",
		AuthenticatedOffline: "authenticated_offline",
		State(42):            "unknown",
	} {
		if s.String() != want {
			t.Fatalf("State(%d) = %q, want %q", int(s), s.String(), want)
		}
	}
	if !AuthenticatedOffline.Authenticated() || Authenticating.Authenticated() {
		t.Fatalf("Authenticated() wrong")
	}
}
