// Package mongo provides MongoDB connection management for the membership
// service.
//
// Configuration is environment-driven to keep deployment simple, and the
// connect helper retries transient failures so that a briefly unavailable
// database does not kill the process at startup. All document stores in this
// module (membership records, rate-limit counters, error log entries) are
// built on a client obtained here.
package mongo
