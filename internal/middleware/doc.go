// Package middleware holds the HTTP middleware of the trigger server:
// request ids, security headers, API key auth and OpenTelemetry
// instrumentation.
package middleware
