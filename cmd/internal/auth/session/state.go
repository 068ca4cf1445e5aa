package session

import "time"

// State is the Manager's lifecycle state.
type State int

const (
	Initializing State = iota
	Unauthenticated
	Authenticating
	AuthenticatedOnline
	AuthenticatedOffline
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case AuthenticatedOnline:
		return "authenticated_online"
	case AuthenticatedOffline:
		return "authenticated_offline"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Authenticated reports whether s carries a session.
func (s State) Authenticated() bool {
	return s == AuthenticatedOnline || s == AuthenticatedOffline
}

// Status is a secret-free snapshot of the Manager.
type Status struct {
	State       State      `json:"state"`
	Online      bool       `json:"online"`
	UserID      string     `json:"user_id,omitempty"`
	Email       string     `json:"email,omitempty"`
	DisplayName string     `json:"display_name,omitempty"`
	AvatarRef   string     `json:"avatar_ref,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`

	// Pending is the kind of the outstanding challenge, if any.
	Pending ChallengeKind `json:"pending,omitempty"`
}
