// Package connectivity tracks whether the identity service is reachable.
//
// A Monitor holds the current reachability and notifies subscribers on
// transitions. Its value is correct from construction: New runs one probe
// before returning, NewStatic takes the value explicitly. Transitions come from
// periodic probes or from Set, which tests and embedders use to inject them.
//
// Subscribers run synchronously on the goroutine that observed the transition
// and must not block.
package connectivity
