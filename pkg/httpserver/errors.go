package httpserver

import "errors"

var (
	// ErrServerFailed indicates the listener failed to start or serve.
	ErrServerFailed = errors.New("httpserver: server failed")
	// ErrShutdownFailed indicates graceful shutdown did not complete in time.
	ErrShutdownFailed = errors.New("httpserver: graceful shutdown failed")
)
