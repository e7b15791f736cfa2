// Package resilience wraps the auth subsystem's network suspension
// points - backend probes, token exchange, refresh, revocation and
// userinfo fetches - with bounded timeouts and optional retry.
//
// Every outbound call the auth layer makes must resolve within a bound;
// a call that exceeds it is treated as a failure, never left pending.
package resilience
