package cache

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/spaolacci/murmur3"
)

// Key derives the cache key for a feature evaluated against a canonical context.
//
// canonical must already be order-independent (sorted keys), so two contexts with the
// same content always map to the same key. The 128-bit digest keeps accidental
// collisions out of reach for any realistic cache size.
func Key(featureKey string, canonical []byte) string {
	h1, h2 := murmur3.Sum128(canonical)

	var digest [16]byte
	binary.BigEndian.PutUint64(digest[:8], h1)
	binary.BigEndian.PutUint64(digest[8:], h2)

	return featureKey + ":" + hex.EncodeToString(digest[:])
}
