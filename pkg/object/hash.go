package object

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/odvcencio/kbgit/pkg/failure"
)

// HashHexLen is the length of a rendered Hash.
const HashHexLen = sha256.Size * 2

// HashObject computes the SHA-256 of the envelope "type len\0content".
// This is the only identity function in the system: two objects share a Hash
// exactly when their type and canonical payload are identical.
func HashObject(objType ObjectType, data []byte) Hash {
	header := fmt.Sprintf("%s %d\x00", objType, len(data))
	h := sha256.New()
	h.Write([]byte(header))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// ParseHash validates s as a 64-character lowercase hex SHA-256 digest.
func ParseHash(s string) (Hash, error) {
	s = strings.TrimSpace(s)
	if len(s) != HashHexLen {
		return "", failure.Errorf(failure.Validation, "invalid id %q: length %d, expected %d", s, len(s), HashHexLen)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", failure.Errorf(failure.Validation, "invalid id %q: non-hex character at offset %d", s, i)
		}
	}
	return Hash(s), nil
}

// Short returns the first seven characters of h, for display.
func (h Hash) Short() string {
	if len(h) < 7 {
		return string(h)
	}
	return string(h[:7])
}
