//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/subtrack-app/subtrack/internal/domain"
)

func cleanTables(t *testing.T) {
	t.Helper()
	_, err := testDB.Exec(context.Background(), `
		TRUNCATE subscriptions, notification_records;
		DELETE FROM notification_settings;
		DELETE FROM exchange_rate_state;
		DELETE FROM exchange_rates;
	`)
	require.NoError(t, err)
}

func insertSubscription(t *testing.T, sub domain.Subscription) {
	t.Helper()
	_, err := testDB.Exec(context.Background(), `
		INSERT INTO subscriptions (
			id, name, price, currency, frequency, start_date, next_billing_date,
			status, notifications_enabled, payment_method
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		sub.ID, sub.Name, sub.Price.String(), sub.Currency, sub.Frequency,
		sub.StartDate, sub.NextBillingDate, sub.Status, sub.NotificationsEnabled,
		sub.PaymentMethod,
	)
	require.NoError(t, err)
}

func upsertSettings(t *testing.T, settings domain.NotificationSettings) {
	t.Helper()

	channels := make([]string, 0, len(settings.RenewalReminder.Channels))
	for _, ch := range settings.RenewalReminder.Channels {
		channels = append(channels, string(ch))
	}

	_, err := testDB.Exec(context.Background(), `
		INSERT INTO notification_settings (
			id, telegram_enabled, telegram_bot_token, telegram_chat_id,
			email_enabled, email_address,
			renewal_reminder_enabled, reminder_days, rule_channels, template, timezone
		)
		VALUES (TRUE, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			telegram_enabled = EXCLUDED.telegram_enabled,
			telegram_bot_token = EXCLUDED.telegram_bot_token,
			telegram_chat_id = EXCLUDED.telegram_chat_id,
			email_enabled = EXCLUDED.email_enabled,
			email_address = EXCLUDED.email_address,
			renewal_reminder_enabled = EXCLUDED.renewal_reminder_enabled,
			reminder_days = EXCLUDED.reminder_days,
			rule_channels = EXCLUDED.rule_channels,
			template = EXCLUDED.template,
			timezone = EXCLUDED.timezone
	`,
		settings.Telegram.Enabled, settings.Telegram.BotToken, settings.Telegram.ChatID,
		settings.Email.Enabled, settings.Email.Address,
		settings.RenewalReminder.Enabled, settings.RenewalReminder.ReminderDays,
		channels, settings.Template, settings.Timezone,
	)
	require.NoError(t, err)
}

func dueSubscription(id, name string, nextBilling time.Time) domain.Subscription {
	return domain.Subscription{
		ID:                   id,
		Name:                 name,
		Price:                decimal.NewFromFloat(15.99),
		Currency:             "USD",
		Frequency:            domain.FrequencyMonthly,
		StartDate:            nextBilling.AddDate(0, -1, 0),
		NextBillingDate:      &nextBilling,
		Status:               domain.SubscriptionStatusActive,
		NotificationsEnabled: true,
		PaymentMethod:        "Visa **42",
	}
}
