package feed

import (
	"crypto/sha1"
	"encoding/hex"
)

// LinkHash returns the full stable hash of an article link.
func LinkHash(link string) string {
	sum := sha1.Sum([]byte(link))
	return hex.EncodeToString(sum[:])
}

// Identifier derives the stable entry identifier for a link, namespaced by
// feed slug. The same link always yields the same identifier; it is used both
// as the state key and as the remote audio object key.
func Identifier(slug, link string) string {
	return "tts-" + slug + "-" + LinkHash(link)[:16]
}
