// Package logger builds the kit's slog.Logger from environment-driven
// configuration: JSON output for production aggregation, text for local
// development, with the level and source annotation controlled by LOG_*
// variables.
package logger
