package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// GenerateOrderNumber produces the human-facing order number, e.g.
// NP-20260829-493027. It doubles as the provider idempotency key, so it must
// be unique per order; the random suffix plus the date keeps collisions to
// the database's unique constraint as a last line.
func GenerateOrderNumber() string {
	date := time.Now().Format("20060102")
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999))
	return fmt.Sprintf("NP-%s-%06d", date, randomNum.Int64())
}

// GenerateLedgerID produces an id for a payment ledger row.
func GenerateLedgerID() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999999))
	return fmt.Sprintf("pay_%d_%09d", timestamp, randomNum.Int64())
}
