// Package oauth runs the OAuth2 authorization-code flow (with PKCE)
// against externally-configured providers: session issuance, callback
// handling, token exchange, storage, refresh and revocation.
//
// A Manager owns two expiring stores - authorization sessions keyed by
// CSRF state, and tokens keyed by (provider, user id) - and a periodic
// background sweep that evicts expired entries and refreshes tokens
// nearing expiry. The hosting gateway owns the HTTP callback route and
// calls GenerateAuthURL / HandleCallback from it.
package oauth
