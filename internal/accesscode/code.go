// Package accesscode generates and hashes the numeric passcodes sent to users.
package accesscode

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/google/uuid"
)

// CodeLength is the number of digits in a passcode.
const CodeLength = 6

// GenerateCode returns a 6-digit numeric passcode (e.g. "042917").
// Bytes >= 250 are rejected so every digit is uniformly distributed.
func GenerateCode() (string, error) {
	out := make([]byte, 0, CodeLength)
	buf := make([]byte, CodeLength*2)
	for len(out) < CodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= 250 {
				continue
			}
			out = append(out, '0'+b%10)
			if len(out) == CodeLength {
				break
			}
		}
	}
	return string(out), nil
}

// NewID returns an opaque access-code identifier.
func NewID() string {
	return uuid.New().String()
}

// HashCode returns a SHA-256 hash of the passcode, hex-encoded.
func HashCode(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}

// CodeEqual performs constant-time comparison of the provided code's hash with the stored hash.
func CodeEqual(providedCode, storedHash string) bool {
	providedHash := HashCode(providedCode)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}
