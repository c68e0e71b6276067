package checkout

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

const orderNumberPrefix = "ORD"

// newOrderNumber builds a human-readable order number. Uniqueness is enforced
// by the database; callers retry on collision.
func newOrderNumber(now time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generating order number: %w", err)
	}
	return fmt.Sprintf("%s-%s-%06d", orderNumberPrefix, now.Format("20060102"), n.Int64()), nil
}

// newAccessToken mints the secret a guest uses to look up their order.
func newAccessToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating access token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
