// Package auth decides whether an inbound tool call may proceed, as
// which identity, and with which capabilities. It provides the shared
// provider contract, a credential provider validating pre-shared
// backend API keys, a bearer-token adapter over the OAuth2 flow
// manager, and the permission model mapping roles to the capability
// vector that gates tools and resources.
package auth
