// Package redis provides Redis connection management. The membership service
// uses Redis only for short-lived keys: processed webhook event ids kept for
// deduplication of provider retries.
package redis
