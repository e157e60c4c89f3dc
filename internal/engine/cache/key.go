package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// RequestKey derives the cache key of a GET request. The query is encoded in
// sorted order so parameter order never changes the key. The bearer token is
// folded into the hash so two merchants sharing a cache directory never see
// each other's balances.
func RequestKey(method, path string, query url.Values, token string) string {
	h := sha256.New()
	h.Write([]byte(strings.ToUpper(strings.TrimSpace(method))))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimRight(path, "/")))
	h.Write([]byte{0})
	h.Write([]byte(query.Encode()))
	h.Write([]byte{0})
	h.Write([]byte(TokenFingerprint(token)))
	return hex.EncodeToString(h.Sum(nil))
}

// TokenFingerprint returns a short, non-reversible identifier for token.
func TokenFingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
