// Package logging configures zerolog for the openly CLI.
//
// It builds the root logger from a Config (level, console or JSON format,
// stderr or file output), attaches ULID trace IDs to contexts so every log
// line of one command invocation can be correlated, and provides an
// append-only audit log of bulk commands.
package logging
