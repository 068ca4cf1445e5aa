// Package remote is the HTTP client for the Nuvem identity service.
//
// Every failure is normalized into one of a small set of kinds so the session
// layer can decide what to do without looking at HTTP details:
//
//   - ErrUnauthorized: the service answered 401.
//   - *APIError: the service answered with any other non-2xx status.
//   - ErrNetwork: no response was received (dial, timeout, reset).
//   - ErrRequest: the request could not be built or sent.
//   - ErrMalformedResponse: a 2xx body did not match the expected schema.
//
// Secrets are passed in as bearer tokens and never logged.
package remote
