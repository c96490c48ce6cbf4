// Package httpserver provides an http.Server wrapper with graceful
// shutdown on SIGINT/SIGTERM and handlers for liveness and readiness
// probes.
package httpserver
