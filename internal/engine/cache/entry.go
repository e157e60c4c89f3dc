package cache

import (
	"encoding/json"
	"time"
)

// Entry is one cached response body.
type Entry struct {
	Key       string          `json:"key"`
	Method    string          `json:"method"`
	Path      string          `json:"path"`
	Body      json.RawMessage `json:"body"`
	StoredAt  time.Time       `json:"stored_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

func newEntry(key, method, path string, body json.RawMessage, ttl time.Duration, now time.Time) *Entry {
	return &Entry{
		Key:       key,
		Method:    method,
		Path:      path,
		Body:      body,
		StoredAt:  now.UTC(),
		ExpiresAt: now.UTC().Add(ttl),
	}
}

// ExpiredAt reports whether the entry is stale at t.
func (e *Entry) ExpiredAt(t time.Time) bool {
	return !t.Before(e.ExpiresAt)
}

// Remaining returns the time left before expiry, or zero.
func (e *Entry) Remaining(now time.Time) time.Duration {
	if d := e.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
