package share

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// NewToken returns an opaque bearer token with 256 bits of randomness. Share
// tokens are the only public locator for a grant, so they must be infeasible
// to guess or collide.
func NewToken() (string, error) {
	const size = 32
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewOTPCode returns a six digit one-time code drawn from crypto/rand.
func NewOTPCode() (string, error) {
	// Rejection sampling keeps the distribution uniform across 000000-999999.
	for {
		var buf [4]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return "", fmt.Errorf("generate otp: %w", err)
		}
		n := uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
		if n >= 4_000_000_000 {
			continue
		}
		return fmt.Sprintf("%06d", n%1_000_000), nil
	}
}
