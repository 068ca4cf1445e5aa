package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/EvertonHSP/Nuvem/cmd/internal/auth/remote"
	"github.com/EvertonHSP/Nuvem/cmd/internal/auth/store"
)

// Remote and store kinds, re-exported so callers need one import.
var (
	ErrUnauthorized      = remote.ErrUnauthorized
	ErrNetwork           = remote.ErrNetwork
	ErrRequest           = remote.ErrRequest
	ErrMalformedResponse = remote.ErrMalformedResponse
	ErrStorage           = store.ErrStorage
	ErrEncryption        = store.ErrEncryption
)

// APIError is a non-2xx, non-401 answer from the identity service.
type APIError = remote.APIError

var (
	// ErrNotReady is returned by every operation except Initialize until
	// Initialize has settled.
	ErrNotReady = errors.New("session manager not ready")

	// ErrInvalidChallenge is returned when a verify call names a challenge that
	// is not the pending one, is of the wrong kind, or has expired.
	ErrInvalidChallenge = errors.New("invalid or expired challenge")

	// ErrWrongCode is returned when the service rejects the one-time code.
	ErrWrongCode = errors.New("wrong verification code")

	// ErrInvalidCredentials is returned when the service rejects email/password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidInput is returned for empty or policy-violating input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyAuthenticated is returned when signing in while a session exists.
	ErrAlreadyAuthenticated = errors.New("already authenticated")

	// ErrThrottled is returned when too many codes were requested recently.
	ErrThrottled = errors.New("too many code requests")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)

// ThrottledError carries retry metadata for code-request throttling.
type ThrottledError struct {
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	if e.RetryAfter <= 0 {
		return ErrThrottled.Error()
	}
	return fmt.Sprintf("%s: retry after %s", ErrThrottled.Error(), e.RetryAfter.Round(time.Second))
}

func (e ThrottledError) Unwrap() error { return ErrThrottled }

// isTransport reports whether err means the service gave no verdict.
func isTransport(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrRequest)
}

// classifyVerify maps a verify failure onto the session kinds while keeping
// the original error in the chain.
func classifyVerify(err error) error {
	ae, ok := remote.AsAPIError(err)
	if !ok {
		return err
	}
	switch ae.Code {
	case remote.CodeInvalidCode:
		return fmt.Errorf("%w: %w", ErrWrongCode, err)
	case remote.CodeChallengeNotFound:
		return fmt.Errorf("%w: %w", ErrInvalidChallenge, err)
	}
	return err
}
