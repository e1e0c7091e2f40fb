package auction

import (
	"math/rand/v2"
	"strings"
)

const (
	pickupCodeLength   = 8
	pickupCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// maxPickupCodeAttempts bounds regeneration when a code collides with an
	// existing order.
	maxPickupCodeAttempts = 16
)

// RandomPickupCode samples an 8-character uppercase base-36 token.
// Not cryptographically secure.
func RandomPickupCode() string {
	var b strings.Builder
	b.Grow(pickupCodeLength)
	for range pickupCodeLength {
		b.WriteByte(pickupCodeAlphabet[rand.IntN(len(pickupCodeAlphabet))])
	}
	return b.String()
}

// NormalizePickupCode upper-cases and trims a code typed at the pickup desk.
func NormalizePickupCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
