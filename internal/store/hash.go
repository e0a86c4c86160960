package store

import (
	"fmt"

	"github.com/zeebo/xxh3"
)

// ContentHash returns the hex-encoded xxh3 hash of content. It is stored in
// files.hash so callers can tell whether a file changed since it was last
// indexed.
func ContentHash(content []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(content))
}
