// Package logger provides a small factory around log/slog with an options
// API for format, level, output destination, and static attributes.
//
// All components in this module accept a *slog.Logger through their
// constructors; this package only standardizes how that logger is built.
package logger
