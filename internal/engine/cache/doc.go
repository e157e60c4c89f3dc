// Package cache stores idempotent REST responses on disk with a TTL.
//
// Balance lookups, product statistics and payout transaction listings are
// read-only and are frequently repeated while a merchant works through a
// batch. Entries are JSON files named by a SHA-256 request key, written
// atomically, and dropped once expired or when the directory grows past its
// configured size.
package cache
