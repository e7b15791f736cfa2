// Package backend provides a minimal REST client for the
// workflow-automation backend fronted by the gateway.
//
// The auth layer uses exactly three calls: one cheap read to validate a
// credential, and two capability probes (user listing, project listing)
// that infer elevated roles. Everything else the backend offers is
// outside this module's scope.
package backend
