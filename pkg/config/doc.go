// Package config loads environment-based configuration into typed structs.
//
// It wraps github.com/joho/godotenv for optional .env file loading and
// github.com/caarlos0/env for struct parsing. Every package in this module
// that needs configuration declares its own Config struct with `env` tags
// and loads it through this package.
package config
