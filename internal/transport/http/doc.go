// Package http holds the chi handlers of the trigger server. Handlers stay
// thin: they call a service and render its result as JSON, or render a
// problem document (RFC 7807) through the shared error handler.
//
// Routes mounted by the application:
//
//	POST /run          run the pipeline once and return its report
//	GET  /runs/latest  report of the most recent run
//	GET  /healthz      liveness with the latest run outcome
//	GET  /version      build information
//	GET  /metrics      Prometheus exposition
package http
