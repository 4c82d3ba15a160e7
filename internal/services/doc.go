// Package services sits between the HTTP handlers and the pipeline. RunService
// serializes runs inside the process and HealthService reports liveness
// together with the outcome of the latest run.
package services
