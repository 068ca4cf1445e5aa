package remote

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNetwork           = errors.New("network error")
	ErrRequest           = errors.New("request error")
	ErrMalformedResponse = errors.New("malformed response")
	ErrConfig            = errors.New("invalid remote configuration")
)

// Structured error codes. When the service does not send a code, the client
// derives one of these for the verify endpoints.
const (
	CodeInvalidCode       = "invalid_code"
	CodeChallengeNotFound = "challenge_not_found"
)

// legacyInvalidCodeMessages are the texts the service uses for a wrong code.
var legacyInvalidCodeMessages = []string{
	"Código 2FA inválido",
	"Código 2FA inválido ou expirado",
}

// OpError carries one of the sentinel kinds above plus its cause.
// Msg never contains a secret.
type OpError struct {
	Op   string
	Kind error
	Msg  string
	Err  error
}

func (e OpError) Error() string {
	s := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// APIError is a non-2xx, non-401 response from the service.
type APIError struct {
	Op      string
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s: api error %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: api error %d (%s): %s", e.Op, e.Status, e.Code, e.Message)
}

// AsAPIError extracts an *APIError from err.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsUnauthorized reports whether err represents ErrUnauthorized.
func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }

func isLegacyInvalidCode(msg string) bool {
	msg = strings.TrimSpace(msg)
	for _, m := range legacyInvalidCodeMessages {
		if strings.EqualFold(msg, m) {
			return true
		}
	}
	return false
}
