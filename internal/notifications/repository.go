package notifications

import (
	"context"
	"time"

	"github.com/subtrack-app/subtrack/internal/domain"
)

// Repository defines the persisted-record store the engine runs against.
type Repository interface {
	// Subscriptions are created and edited elsewhere; the engine reads them
	// and writes back only resolver-driven state changes.
	ListSubscriptions(ctx context.Context) ([]domain.Subscription, error)
	GetSubscription(ctx context.Context, id string) (*domain.Subscription, error)
	UpdateSubscription(ctx context.Context, sub *domain.Subscription) error

	GetSettings(ctx context.Context) (*domain.NotificationSettings, error)

	// Notification history. HasSuccessRecord is the idempotency check for
	// (subscription, channel, occurrence); HasRecordForOccurrence backs the
	// overdue placeholder logic.
	AppendRecord(ctx context.Context, rec *domain.NotificationRecord) error
	HasSuccessRecord(ctx context.Context, subscriptionID string, channel domain.ChannelType, dateLabel time.Time) (bool, error)
	HasRecordForOccurrence(ctx context.Context, subscriptionID string, dateLabel time.Time) (bool, error)
	ListRecords(ctx context.Context, limit int) ([]domain.NotificationRecord, error)
	UpdateRenewalFeedback(ctx context.Context, subscriptionID string, dateLabel time.Time, feedback domain.RenewalFeedback) (int64, error)
}
