//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subtrack-app/subtrack/internal/domain"
	"github.com/subtrack-app/subtrack/internal/notifications"
	"github.com/subtrack-app/subtrack/internal/notifications/email"
	notificationspostgres "github.com/subtrack-app/subtrack/internal/notifications/postgres"
)

func emailOnlySettings() domain.NotificationSettings {
	return domain.NotificationSettings{
		Email: domain.EmailSettings{Enabled: true, Address: "user@example.com"},
		RenewalReminder: domain.ReminderRule{
			Enabled:      true,
			ReminderDays: 3,
		},
		Timezone: "UTC",
	}
}

func newMailpitEmailSender(t *testing.T) *email.Sender {
	t.Helper()
	sender, err := email.NewSender(email.Config{
		Enabled:     true,
		SMTPHost:    mailpitContainer.SMTPHost,
		SMTPPort:    mailpitContainer.SMTPPort,
		FromAddress: "subtrack <noreply@example.com>",
	})
	require.NoError(t, err)
	return sender
}

func TestDispatchEmailEndToEnd(t *testing.T) {
	cleanTables(t)
	require.NoError(t, mailpitClient.DeleteAllMessages())

	upsertSettings(t, emailOnlySettings())

	due := time.Now().UTC().AddDate(0, 0, 2).Truncate(24 * time.Hour)
	insertSubscription(t, dueSubscription("sub-e2e", "Netflix", due))

	repo := notificationspostgres.NewRepository(testDB)
	dispatcher := notifications.NewDispatcher(repo, newMailpitEmailSender(t))

	require.NoError(t, dispatcher.Scan(context.Background()))

	messages, err := mailpitClient.WaitForMessages(1, 10*time.Second)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "[Monthly Renewal] Netflix", messages[0].Subject)
	require.Len(t, messages[0].To, 1)
	assert.Equal(t, "user@example.com", messages[0].To[0].Address)

	records, err := repo.ListRecords(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.RecordStatusSuccess, records[0].Status)
	assert.Equal(t, domain.ChannelTypeEmail, records[0].Channel)
	assert.Equal(t, domain.FeedbackPending, records[0].RenewalFeedback)
}

func TestDispatchIsIdempotentAcrossScans(t *testing.T) {
	cleanTables(t)
	require.NoError(t, mailpitClient.DeleteAllMessages())

	upsertSettings(t, emailOnlySettings())

	due := time.Now().UTC().AddDate(0, 0, 1).Truncate(24 * time.Hour)
	insertSubscription(t, dueSubscription("sub-idem", "Spotify", due))

	repo := notificationspostgres.NewRepository(testDB)
	dispatcher := notifications.NewDispatcher(repo, newMailpitEmailSender(t))

	require.NoError(t, dispatcher.Scan(context.Background()))
	require.NoError(t, dispatcher.Scan(context.Background()))
	require.NoError(t, dispatcher.Scan(context.Background()))

	messages, err := mailpitClient.WaitForMessages(1, 10*time.Second)
	require.NoError(t, err)
	assert.Len(t, messages, 1)

	records, err := repo.ListRecords(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestCallbackRenewalAgainstDatabase(t *testing.T) {
	cleanTables(t)

	upsertSettings(t, emailOnlySettings())

	due := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	insertSubscription(t, dueSubscription("sub-cb", "Disney+", due))

	repo := notificationspostgres.NewRepository(testDB)

	rec := &domain.NotificationRecord{
		ID:               "4f2c9a3e-0000-4000-8000-000000000001",
		SubscriptionID:   "sub-cb",
		SubscriptionName: "Disney+",
		Type:             domain.RecordTypeRenewalReminder,
		Channel:          domain.ChannelTypeEmail,
		Status:           domain.RecordStatusSuccess,
		SentAt:           time.Now().UTC(),
		DateLabel:        due,
		Amount:           dueSubscription("", "", due).Price,
		Currency:         "USD",
		RenewalFeedback:  domain.FeedbackPending,
	}
	require.NoError(t, repo.AppendRecord(context.Background(), rec))

	resolver := notifications.NewResolver(repo)
	result, err := resolver.HandleCallback(context.Background(), "renewed|sub-cb", "")
	require.NoError(t, err)
	assert.Equal(t, notifications.ActionRenewed, result.Action)

	sub, err := repo.GetSubscription(context.Background(), "sub-cb")
	require.NoError(t, err)
	require.NotNil(t, sub.NextBillingDate)
	assert.Equal(t, time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), sub.NextBillingDate.UTC())

	records, err := repo.ListRecords(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.FeedbackRenewed, records[0].RenewalFeedback)
}
