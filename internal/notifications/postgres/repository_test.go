package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subtrack-app/subtrack/internal/domain"
	"github.com/subtrack-app/subtrack/internal/notifications"
)

// anyArgs returns n pgxmock.AnyArg() matchers. pgxmock/v4 treats an
// expectation without WithArgs as expecting zero arguments, so matching
// any arguments must be spelled out explicitly.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func newMockRepo(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRepository(mock), mock
}

func TestGetSubscriptionNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM subscriptions WHERE id").
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetSubscription(context.Background(), "ghost")
	assert.ErrorIs(t, err, notifications.ErrSubscriptionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSubscriptionParsesPrice(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now()
	due := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{
		"id", "name", "price", "currency", "frequency", "start_date", "next_billing_date",
		"status", "cancelled_at", "notifications_enabled", "payment_method", "created_at", "updated_at",
	}).AddRow(
		"sub-1", "Netflix", "15.99", "USD", domain.FrequencyMonthly, now, &due,
		domain.SubscriptionStatusActive, (*time.Time)(nil), true, "Visa", now, now,
	)

	mock.ExpectQuery("FROM subscriptions WHERE id").
		WithArgs("sub-1").
		WillReturnRows(rows)

	sub, err := repo.GetSubscription(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "Netflix", sub.Name)
	assert.Equal(t, "15.99", sub.Price.StringFixed(2))
	require.NotNil(t, sub.NextBillingDate)
	assert.True(t, sub.NextBillingDate.Equal(due))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasSuccessRecord(t *testing.T) {
	repo, mock := newMockRepo(t)

	due := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("sub-1", domain.ChannelTypeTelegram, due).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	sent, err := repo.HasSuccessRecord(context.Background(), "sub-1", domain.ChannelTypeTelegram, due)
	require.NoError(t, err)
	assert.True(t, sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendRecord(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO notification_records").
		WithArgs(anyArgs(14)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec := &domain.NotificationRecord{
		ID:              "rec-1",
		SubscriptionID:  "sub-1",
		Channel:         domain.ChannelTypeTelegram,
		Status:          domain.RecordStatusSuccess,
		SentAt:          time.Now(),
		DateLabel:       time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		RenewalFeedback: domain.FeedbackPending,
	}
	require.NoError(t, repo.AppendRecord(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendRecordConflictIsNoop(t *testing.T) {
	repo, mock := newMockRepo(t)

	// ON CONFLICT DO NOTHING reports zero rows; that is still a success.
	mock.ExpectExec("INSERT INTO notification_records").
		WithArgs(anyArgs(14)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	rec := &domain.NotificationRecord{
		ID:             "rec-dup",
		SubscriptionID: "sub-1",
		Channel:        domain.ChannelTypeTelegram,
		Status:         domain.RecordStatusSuccess,
	}
	require.NoError(t, repo.AppendRecord(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRenewalFeedback(t *testing.T) {
	repo, mock := newMockRepo(t)

	due := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE notification_records").
		WithArgs("sub-1", due, domain.FeedbackRenewed).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	n, err := repo.UpdateRenewalFeedback(context.Background(), "sub-1", due, domain.FeedbackRenewed)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSettingsDefaultsWhenMissing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM notification_settings").
		WillReturnError(pgx.ErrNoRows)

	settings, err := repo.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, settings.RenewalReminder.ReminderDays)
	assert.Equal(t, "UTC", settings.Timezone)
	assert.False(t, settings.Telegram.Enabled)
	assert.NoError(t, mock.ExpectationsWereMet())
}
