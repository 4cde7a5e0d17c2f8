package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/subtrack-app/subtrack/internal/domain"
	"github.com/subtrack-app/subtrack/internal/recurrence"
)

// dispatchOrder fixes the channel evaluation order within a scan.
var dispatchOrder = []domain.ChannelType{domain.ChannelTypeTelegram, domain.ChannelTypeEmail}

// Dispatcher is the reminder scan engine. One instance owns one in-flight
// flag; a tick that finds a previous scan still running is skipped, not
// queued.
type Dispatcher struct {
	repo    Repository
	senders map[domain.ChannelType]Sender
	now     func() time.Time

	running atomic.Bool
}

// NewDispatcher creates a dispatcher over the given senders.
func NewDispatcher(repo Repository, senders ...Sender) *Dispatcher {
	senderMap := make(map[domain.ChannelType]Sender)
	for _, s := range senders {
		senderMap[s.Type()] = s
	}
	return &Dispatcher{
		repo:    repo,
		senders: senderMap,
		now:     time.Now,
	}
}

// Scan runs one dispatch tick: evaluate every subscription, send due
// reminders over the enabled channels and record each attempt. Failures of
// one subscription or one channel never abort the rest of the scan.
func (d *Dispatcher) Scan(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		slog.Debug("dispatch scan already in flight, skipping tick")
		recordScanSkipped()
		return nil
	}
	defer d.running.Store(false)

	start := d.now()
	defer func() { recordScanDuration(time.Since(start)) }()

	settings, err := d.repo.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("load notification settings: %w", err)
	}
	if !settings.RenewalReminder.Enabled {
		return nil
	}

	subs, err := d.repo.ListSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}

	tmpl := ParseTemplate(settings.Template)

	for i := range subs {
		d.evaluate(ctx, &subs[i], settings, tmpl)
	}

	return nil
}

// evaluate decides what a single subscription needs this tick.
func (d *Dispatcher) evaluate(ctx context.Context, sub *domain.Subscription, settings *domain.NotificationSettings, tmpl Template) {
	if !sub.Active() || sub.NextBillingDate == nil {
		return
	}

	occurrence := recurrence.Midnight(*sub.NextBillingDate)
	days := recurrence.DaysUntil(d.now(), occurrence)

	if days < 0 {
		// Overdue and never reminded in time: keep the renewal-feedback
		// affordance alive without sending anything.
		d.ensurePendingPlaceholder(ctx, sub, settings, tmpl, occurrence)
		return
	}

	if days > settings.RenewalReminder.ReminderDays {
		return
	}

	for _, ch := range dispatchOrder {
		d.dispatchChannel(ctx, sub, settings, tmpl, occurrence, ch)
	}
}

// dispatchChannel attempts one (subscription, channel, occurrence) send.
// Configuration gaps are silent skips; the idempotency check is a silent
// no-op; everything else produces exactly one record.
func (d *Dispatcher) dispatchChannel(ctx context.Context, sub *domain.Subscription, settings *domain.NotificationSettings, tmpl Template, occurrence time.Time, ch domain.ChannelType) {
	if !settings.ChannelEnabled(ch) {
		return
	}
	if !settings.RenewalReminder.AllowsChannel(ch) {
		return
	}

	sender, ok := d.senders[ch]
	if !ok {
		slog.Warn("no sender for channel", "channel", ch)
		return
	}

	sent, err := d.repo.HasSuccessRecord(ctx, sub.ID, ch, occurrence)
	if err != nil {
		slog.Error("idempotency check failed",
			"subscription_id", sub.ID,
			"channel", ch,
			"error", err,
		)
		return
	}
	if sent {
		return
	}

	body := Render(tmpl, SnapshotOf(sub))
	notification := Notification{
		To:      destinationFor(settings, ch),
		Subject: Subject(sub),
		Body:    body,
		Buttons: []Button{
			{Text: "Renewed ✅", Data: fmt.Sprintf("renewed|%s", sub.ID)},
			{Text: "Not renewing ❌", Data: fmt.Sprintf("deprecated|%s", sub.ID)},
		},
	}

	rec := newRecord(sub, ch, occurrence, body, d.now())
	if sendErr := sender.Send(ctx, notification); sendErr != nil {
		rec.Status = domain.RecordStatusFailed
		rec.ErrorReason = sendErr.Error()
		slog.Error("reminder send failed",
			"subscription_id", sub.ID,
			"channel", ch,
			"error", sendErr,
		)
		recordReminderSent(string(ch), "failed")
	} else {
		slog.Info("reminder sent",
			"subscription_id", sub.ID,
			"channel", ch,
			"occurrence", recurrence.FormatDate(occurrence),
		)
		recordReminderSent(string(ch), "success")
	}

	if err := d.repo.AppendRecord(ctx, rec); err != nil {
		slog.Error("append notification record failed",
			"subscription_id", sub.ID,
			"channel", ch,
			"error", err,
		)
	}
}

// ensurePendingPlaceholder records one pending-feedback entry for an overdue
// occurrence the scan never reminded about, so the history still offers the
// renewed/deprecated choice. Nothing is sent.
func (d *Dispatcher) ensurePendingPlaceholder(ctx context.Context, sub *domain.Subscription, settings *domain.NotificationSettings, tmpl Template, occurrence time.Time) {
	exists, err := d.repo.HasRecordForOccurrence(ctx, sub.ID, occurrence)
	if err != nil {
		slog.Error("placeholder check failed", "subscription_id", sub.ID, "error", err)
		return
	}
	if exists {
		return
	}

	var channel domain.ChannelType
	for _, ch := range dispatchOrder {
		if settings.ChannelEnabled(ch) && settings.RenewalReminder.AllowsChannel(ch) {
			channel = ch
			break
		}
	}
	if channel == "" {
		return
	}

	rec := newRecord(sub, channel, occurrence, Render(tmpl, SnapshotOf(sub)), d.now())
	if err := d.repo.AppendRecord(ctx, rec); err != nil {
		slog.Error("append placeholder record failed", "subscription_id", sub.ID, "error", err)
		return
	}

	slog.Info("recorded overdue placeholder",
		"subscription_id", sub.ID,
		"occurrence", recurrence.FormatDate(occurrence),
	)
}

func newRecord(sub *domain.Subscription, ch domain.ChannelType, occurrence time.Time, message string, at time.Time) *domain.NotificationRecord {
	return &domain.NotificationRecord{
		ID:               uuid.NewString(),
		SubscriptionID:   sub.ID,
		SubscriptionName: sub.Name,
		Type:             domain.RecordTypeRenewalReminder,
		Channel:          ch,
		Status:           domain.RecordStatusSuccess,
		SentAt:           at,
		DateLabel:        occurrence,
		Amount:           sub.Price,
		Currency:         sub.Currency,
		PaymentMethod:    sub.PaymentMethod,
		Message:          message,
		RenewalFeedback:  domain.FeedbackPending,
	}
}

func destinationFor(settings *domain.NotificationSettings, ch domain.ChannelType) string {
	switch ch {
	case domain.ChannelTypeTelegram:
		return settings.Telegram.ChatID
	case domain.ChannelTypeEmail:
		return settings.Email.Address
	}
	return ""
}
