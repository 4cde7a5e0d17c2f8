package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChannelType identifies a notification delivery channel.
type ChannelType string

// Supported channels.
const (
	ChannelTypeTelegram ChannelType = "telegram"
	ChannelTypeEmail    ChannelType = "email"
)

// RecordStatus is the outcome of a single send attempt.
type RecordStatus string

// Record statuses.
const (
	RecordStatusSuccess RecordStatus = "success"
	RecordStatusFailed  RecordStatus = "failed"
)

// RenewalFeedback is the user-supplied confirmation of what happened to a
// reminded billing occurrence.
type RenewalFeedback string

// Feedback values.
const (
	FeedbackPending    RenewalFeedback = "pending"
	FeedbackRenewed    RenewalFeedback = "renewed"
	FeedbackDeprecated RenewalFeedback = "deprecated"
)

// RecordType categorizes a notification record.
type RecordType string

// Record types.
const (
	RecordTypeRenewalReminder RecordType = "renewal_reminder"
)

// NotificationRecord is one send attempt (or an overdue placeholder) in the
// notification history. For a given (subscription, channel, date label) at
// most one success record exists; that tuple is the idempotency key.
type NotificationRecord struct {
	ID               string
	SubscriptionID   string
	SubscriptionName string
	Type             RecordType
	Channel          ChannelType
	Status           RecordStatus
	SentAt           time.Time
	DateLabel        time.Time // the billing occurrence this record concerns
	Amount           decimal.Decimal
	Currency         string
	PaymentMethod    string
	Message          string
	RenewalFeedback  RenewalFeedback
	ErrorReason      string
}
