// Package observe provides structured logging and metrics for the
// auth and OAuth2 subsystems.
//
// Logging is JSON-lines to a writer; metrics are OpenTelemetry
// instruments exported through a Prometheus registry. Tracing is left
// to the hosting gateway, which owns the request transport.
package observe
