package orders

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
)

// AccessKeys signs and checks the share key that lets anyone holding an order
// number read that order without logging in.
type AccessKeys struct {
	secret []byte
}

// NewAccessKeys validates the secret length accepted by keyed BLAKE2b.
func NewAccessKeys(secret string) (*AccessKeys, error) {
	key := []byte(secret)
	if len(key) < 16 || len(key) > blake2b.Size {
		return nil, fmt.Errorf("access key secret must be between 16 and %d bytes", blake2b.Size)
	}
	return &AccessKeys{secret: key}, nil
}

// Sign hashes the fields a customer cannot change after checkout.
func (a *AccessKeys) Sign(order models.Order) string {
	h, err := blake2b.New256(a.secret)
	if err != nil {
		// the key length is checked in NewAccessKeys
		panic(err)
	}
	fields := []string{
		order.ID.String(),
		order.OrderNumber,
		strings.ToLower(strings.TrimSpace(order.CustomerEmail)),
		strings.TrimSpace(order.CustomerPhone),
		order.TotalAmount.StringFixed(2),
	}
	h.Write([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(h.Sum(nil))
}

func (a *AccessKeys) Verify(order models.Order, key string) bool {
	expected := a.Sign(order)
	provided := strings.ToLower(strings.TrimSpace(key))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}
