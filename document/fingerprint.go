package document

import (
	"encoding/hex"
	"fmt"

	"github.com/minio/highwayhash"
)

var hashKey = []byte("0123456789ABCDEF0123456789ABCDEF")

// Canonical returns the hashing input for a chunk: structural context
// followed by content. The source path is deliberately excluded so that
// renaming a document does not invalidate its fingerprints.
func Canonical(position Position, content string) string {
	return fmt.Sprintf("page:%d|section:%s|seq:%d|%s", position.Page, position.Section, position.Seq, content)
}

// Fingerprint computes the hex-encoded HighwayHash-256 of the chunk's
// canonical form. Identical position and content always yield the same
// fingerprint; any change to either yields a different one.
func Fingerprint(position Position, content string) string {
	sum := highwayhash.Sum([]byte(Canonical(position, content)), hashKey)
	return hex.EncodeToString(sum[:])
}
