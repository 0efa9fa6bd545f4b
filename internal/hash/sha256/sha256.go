// Package sha256 derives stable news document ids from article URLs.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements news.Hasher using SHA-256 over the article URL.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// NewsID hashes the URL and returns a hex digest. The same URL always
// yields the same id, so re-indexing a crawled article is an overwrite.
func (h *Hasher) NewsID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
