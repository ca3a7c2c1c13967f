// Package pg connects the kit to PostgreSQL: a retrying pool constructor, a
// health check for readiness probes, and a goose-based migration runner for
// the embedded schema.
package pg
