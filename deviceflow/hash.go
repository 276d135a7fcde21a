package deviceflow

import (
	"crypto/sha256"
	"encoding/base64"
)

// HashCode turns a caller-supplied device or user code into its store lookup
// key. The store only ever sees hashed keys; every boundary applies this
// uniformly so plaintext codes never touch persistence.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
