package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRateState is the per-tenant exchange-rate feature state. The
// encrypted key is RSA-OAEP ciphertext, base64-encoded; the plaintext API key
// exists only transiently in memory during a refresh.
type ExchangeRateState struct {
	Enabled         bool
	EncryptedKey    string
	LastTestedAt    *time.Time
	LastRunAt0      *time.Time // slot 0 (>= 00:00 tenant-local)
	LastRunAt12     *time.Time // slot 12 (>= 12:00 tenant-local)
	LastRatesUpdate *time.Time
}

// Tested reports whether the credential passed its one-time connectivity test.
func (s *ExchangeRateState) Tested() bool {
	return s.LastTestedAt != nil
}

// ExchangeRate is one cached USD-based conversion rate.
type ExchangeRate struct {
	Code      string
	Rate      decimal.Decimal
	UpdatedAt time.Time
}
