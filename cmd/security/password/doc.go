// Package password checks a new account password against the local policy
// before it is sent to the identity service.
//
// The identity service remains the authority; this check only avoids a round
// trip (and a verification e-mail) for passwords that would obviously be weak.
package password
