// Package postgres provides the PostgreSQL implementation of the
// notifications repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/subtrack-app/subtrack/internal/domain"
	"github.com/subtrack-app/subtrack/internal/notifications"
)

// DB is the subset of pgxpool.Pool the repository uses. pgxmock implements
// the same surface for unit tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository implements notifications.Repository using PostgreSQL.
type Repository struct {
	db DB
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

const subscriptionColumns = `
	id, name, price::text, currency, frequency, start_date, next_billing_date,
	status, cancelled_at, notifications_enabled, payment_method, created_at, updated_at
`

// ListSubscriptions retrieves all subscriptions.
func (r *Repository) ListSubscriptions(ctx context.Context) ([]domain.Subscription, error) {
	query := `SELECT` + subscriptionColumns + `FROM subscriptions ORDER BY created_at`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	subs := make([]domain.Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}

	return subs, rows.Err()
}

// GetSubscription retrieves a subscription by id.
func (r *Repository) GetSubscription(ctx context.Context, id string) (*domain.Subscription, error) {
	query := `SELECT` + subscriptionColumns + `FROM subscriptions WHERE id = $1`

	sub, err := scanSubscription(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notifications.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*domain.Subscription, error) {
	var (
		sub   domain.Subscription
		price string
	)
	err := row.Scan(
		&sub.ID,
		&sub.Name,
		&price,
		&sub.Currency,
		&sub.Frequency,
		&sub.StartDate,
		&sub.NextBillingDate,
		&sub.Status,
		&sub.CancelledAt,
		&sub.NotificationsEnabled,
		&sub.PaymentMethod,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sub.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse price %q: %w", price, err)
	}
	return &sub, nil
}

// UpdateSubscription writes back resolver-driven state changes.
func (r *Repository) UpdateSubscription(ctx context.Context, sub *domain.Subscription) error {
	query := `
		UPDATE subscriptions
		SET status = $2, cancelled_at = $3, next_billing_date = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		sub.ID,
		sub.Status,
		sub.CancelledAt,
		sub.NextBillingDate,
	).Scan(&sub.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notifications.ErrSubscriptionNotFound
		}
		return fmt.Errorf("update subscription: %w", err)
	}
	return nil
}

// GetSettings loads the tenant notification settings. A missing row or NULL
// columns degrade to defaults rather than failing.
func (r *Repository) GetSettings(ctx context.Context) (*domain.NotificationSettings, error) {
	query := `
		SELECT telegram_enabled, COALESCE(telegram_bot_token, ''), COALESCE(telegram_chat_id, ''),
			email_enabled, COALESCE(email_address, ''),
			renewal_reminder_enabled, reminder_days, rule_channels,
			COALESCE(template, ''), COALESCE(timezone, 'UTC')
		FROM notification_settings
		WHERE id = TRUE
	`

	settings := defaultSettings()
	var channels []string

	err := r.db.QueryRow(ctx, query).Scan(
		&settings.Telegram.Enabled,
		&settings.Telegram.BotToken,
		&settings.Telegram.ChatID,
		&settings.Email.Enabled,
		&settings.Email.Address,
		&settings.RenewalReminder.Enabled,
		&settings.RenewalReminder.ReminderDays,
		&channels,
		&settings.Template,
		&settings.Timezone,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return defaultSettings(), nil
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}

	settings.RenewalReminder.Channels = make([]domain.ChannelType, 0, len(channels))
	for _, ch := range channels {
		settings.RenewalReminder.Channels = append(settings.RenewalReminder.Channels, domain.ChannelType(ch))
	}
	if settings.RenewalReminder.ReminderDays <= 0 {
		settings.RenewalReminder.ReminderDays = 3
	}
	return settings, nil
}

func defaultSettings() *domain.NotificationSettings {
	return &domain.NotificationSettings{
		RenewalReminder: domain.ReminderRule{ReminderDays: 3},
		Timezone:        "UTC",
	}
}

// AppendRecord inserts one notification record. The partial unique index on
// successful (subscription, channel, date label) tuples makes a replayed
// success insert a no-op instead of a duplicate.
func (r *Repository) AppendRecord(ctx context.Context, rec *domain.NotificationRecord) error {
	query := `
		INSERT INTO notification_records (
			id, subscription_id, subscription_name, type, channel, status, sent_at,
			date_label, amount, currency, payment_method, message, renewal_feedback, error_reason
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (subscription_id, channel, date_label) WHERE status = 'success' DO NOTHING
	`
	_, err := r.db.Exec(ctx, query,
		rec.ID,
		rec.SubscriptionID,
		rec.SubscriptionName,
		rec.Type,
		rec.Channel,
		rec.Status,
		rec.SentAt,
		rec.DateLabel,
		rec.Amount.String(),
		rec.Currency,
		rec.PaymentMethod,
		rec.Message,
		rec.RenewalFeedback,
		nullable(rec.ErrorReason),
	)
	if err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// HasSuccessRecord is the dispatcher's idempotency check.
func (r *Repository) HasSuccessRecord(ctx context.Context, subscriptionID string, channel domain.ChannelType, dateLabel time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notification_records
			WHERE subscription_id = $1 AND channel = $2 AND date_label = $3 AND status = 'success'
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, subscriptionID, channel, dateLabel).Scan(&exists); err != nil {
		return false, fmt.Errorf("check success record: %w", err)
	}
	return exists, nil
}

// HasRecordForOccurrence reports whether any record exists for the occurrence.
func (r *Repository) HasRecordForOccurrence(ctx context.Context, subscriptionID string, dateLabel time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notification_records
			WHERE subscription_id = $1 AND date_label = $2
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, subscriptionID, dateLabel).Scan(&exists); err != nil {
		return false, fmt.Errorf("check occurrence record: %w", err)
	}
	return exists, nil
}

// ListRecords retrieves the most recent notification records.
func (r *Repository) ListRecords(ctx context.Context, limit int) ([]domain.NotificationRecord, error) {
	query := `
		SELECT id, subscription_id, subscription_name, type, channel, status, sent_at,
			date_label, amount::text, currency, payment_method, message,
			renewal_feedback, COALESCE(error_reason, '')
		FROM notification_records
		ORDER BY sent_at DESC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.NotificationRecord, 0)
	for rows.Next() {
		var (
			rec    domain.NotificationRecord
			amount string
		)
		err := rows.Scan(
			&rec.ID,
			&rec.SubscriptionID,
			&rec.SubscriptionName,
			&rec.Type,
			&rec.Channel,
			&rec.Status,
			&rec.SentAt,
			&rec.DateLabel,
			&amount,
			&rec.Currency,
			&rec.PaymentMethod,
			&rec.Message,
			&rec.RenewalFeedback,
			&rec.ErrorReason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// UpdateRenewalFeedback sets the feedback on every record for the given
// subscription and occurrence. Returns the number of records touched.
func (r *Repository) UpdateRenewalFeedback(ctx context.Context, subscriptionID string, dateLabel time.Time, feedback domain.RenewalFeedback) (int64, error) {
	query := `
		UPDATE notification_records
		SET renewal_feedback = $3
		WHERE subscription_id = $1 AND date_label = $2
	`
	tag, err := r.db.Exec(ctx, query, subscriptionID, dateLabel, feedback)
	if err != nil {
		return 0, fmt.Errorf("update renewal feedback: %w", err)
	}
	return tag.RowsAffected(), nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
