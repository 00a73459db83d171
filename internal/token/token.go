package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Size is the number of random bytes behind every QR token.
const Size = 16

// Issuer produces a fresh QR token.
type Issuer func() (string, error)

// Issue returns a hex-encoded token read from the system CSPRNG.
func Issue() (string, error) {
	buf := make([]byte, Size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
