package orders

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

const timestampLayout = "20060102150405"

// NewOrderNumber builds a human-readable order reference. The random suffix
// keeps two orders placed in the same second from colliding; the unique index
// on order_number is the final backstop.
func NewOrderNumber(now time.Time) string {
	suffix := make([]byte, 2)
	_, _ = rand.Read(suffix)
	return "ORD" + now.UTC().Format(timestampLayout) + hex.EncodeToString(suffix)
}

// NewTransactionID builds a payment transaction reference.
func NewTransactionID(now time.Time) string {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		n = big.NewInt(0)
	}
	return fmt.Sprintf("TXN%s%d", now.UTC().Format(timestampLayout), n.Int64()+1000)
}

// NewTrackingNumber builds a shipment tracking reference. Like order numbers,
// the random suffix disambiguates shipments created in the same second.
func NewTrackingNumber(now time.Time) string {
	suffix := make([]byte, 2)
	_, _ = rand.Read(suffix)
	return "TRK" + now.UTC().Format(timestampLayout) + hex.EncodeToString(suffix)
}
