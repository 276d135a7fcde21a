package token

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"hash"
	"strings"

	"github.com/pkg/errors"
)

// HashedClaimValue computes the OIDC truncated-hash claim value used for
// at_hash and c_hash: hash the artifact with the signing algorithm's hash
// function, keep the left-most half, base64url-encode without padding.
func HashedClaimValue(signingAlg, value string) (string, error) {
	var h hash.Hash
	switch {
	case strings.HasSuffix(signingAlg, "256"):
		h = sha256.New()
	case strings.HasSuffix(signingAlg, "384"):
		h = sha512.New384()
	case strings.HasSuffix(signingAlg, "512"):
		h = sha512.New()
	default:
		return "", errors.Errorf("no hash function for signing algorithm %q", signingAlg)
	}

	h.Write([]byte(value))
	sum := h.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2]), nil
}
