// Package session owns the client's authenticated session.
//
// A Manager reconciles three views of the session: what is in memory, what
// is cached (encrypted) on the device, and what the identity service says.
// It is the only writer of the cache. Sign-in is two-step: Login or Register
// sends a one-time code and returns a Challenge, and VerifyLogin or
// VerifyRegister exchanges the challenge plus code for a Session.
//
// When the service is unreachable a cached session is still usable
// (AuthenticatedOffline). Only a 401 from the service ends a session on its
// own; everything else degrades.
package session
