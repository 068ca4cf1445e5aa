package remote

import "strings"

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"nome"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"codigo"`
}

// ChallengeResponse is returned by register and login once a code was sent.
type ChallengeResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

// AuthResponse is the payload of a successful verify call.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	Name        string `json:"nome"`
	Email       string `json:"email"`
	AvatarRef   string `json:"foto_perfil"`
}

func (r AuthResponse) validate() string {
	switch {
	case strings.TrimSpace(r.UserID) == "":
		return "missing user_id"
	case r.AccessToken == "":
		return "missing access_token"
	}
	return ""
}

// Profile is the authenticated user as returned by GET /auth/me.
type Profile struct {
	ID               string `json:"id"`
	Name             string `json:"nome"`
	Email            string `json:"email"`
	AvatarRef        string `json:"foto_perfil"`
	TwoFactorEnabled bool   `json:"dois_fatores_ativo"`
}

func (p Profile) validate() string {
	if strings.TrimSpace(p.ID) == "" {
		return "missing id"
	}
	return ""
}

// TokenResponse is the payload of POST /auth/refresh.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
}

func (t TokenResponse) validate() string {
	if t.AccessToken == "" {
		return "missing access_token"
	}
	return ""
}

// validator is implemented by response types with required fields.
// It returns a description of the first violation, or "".
type validator interface {
	validate() string
}

// errorBody covers the error shapes the service has used:
// {"error":"text"}, {"error":{"code","message"}} and {"code","message"}.
type errorBody struct {
	Error   any    `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
