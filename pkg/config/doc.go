// Package config loads typed configuration structs from environment
// variables.
//
// Every configurable component of the kit (provider secrets, billing mode,
// postgres, redis, retry tuning) declares a Config struct with `env` tags;
// this package parses them via caarlos0/env and transparently picks up a
// local .env file in development.
package config
