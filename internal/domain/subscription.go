package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is a subscription billing cycle.
type Frequency string

// Billing frequencies.
const (
	FrequencyMonthly    Frequency = "monthly"
	FrequencyQuarterly  Frequency = "quarterly"
	FrequencySemiAnnual Frequency = "semi-annual"
	FrequencyYearly     Frequency = "yearly"
)

// Months returns the nominal cycle length in months.
func (f Frequency) Months() int {
	switch f {
	case FrequencyMonthly:
		return 1
	case FrequencyQuarterly:
		return 3
	case FrequencySemiAnnual:
		return 6
	case FrequencyYearly:
		return 12
	default:
		return 1
	}
}

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyMonthly, FrequencyQuarterly, FrequencySemiAnnual, FrequencyYearly:
		return true
	}
	return false
}

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

// Subscription statuses.
const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// Subscription is a recurring payment tracked for a user. The engine treats
// it as read-only except for Status, CancelledAt and NextBillingDate, which
// the callback resolver mutates in response to user actions.
type Subscription struct {
	ID                   string
	Name                 string
	Price                decimal.Decimal
	Currency             string
	Frequency            Frequency
	StartDate            time.Time
	NextBillingDate      *time.Time
	Status               SubscriptionStatus
	CancelledAt          *time.Time
	NotificationsEnabled bool
	PaymentMethod        string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Active reports whether the subscription should be considered by the
// reminder dispatcher.
func (s *Subscription) Active() bool {
	return s.Status == SubscriptionStatusActive && s.NotificationsEnabled
}
