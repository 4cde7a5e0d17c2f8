package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/subtrack-app/subtrack/internal/domain"
	"github.com/subtrack-app/subtrack/internal/recurrence"
)

// Action is a user decision delivered through a channel callback.
type Action string

// Callback actions.
const (
	ActionRenewed    Action = "renewed"
	ActionDeprecated Action = "deprecated"
)

func (a Action) feedback() domain.RenewalFeedback {
	if a == ActionRenewed {
		return domain.FeedbackRenewed
	}
	return domain.FeedbackDeprecated
}

// ParseCallbackData splits a compact "action|id" payload. The id part may be
// empty for legacy messages that only echo text.
func ParseCallbackData(data string) (Action, string, error) {
	if data == "" {
		return "", "", ErrEmptyCallback
	}
	action, id, _ := strings.Cut(data, "|")
	switch Action(action) {
	case ActionRenewed, ActionDeprecated:
		return Action(action), id, nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedAction, action)
	}
}

// Resolve maps an inbound callback to a subscription. Resolution order: id
// match, exact name match, then reverse template extraction against the
// original message text. nil means not found, which is a normal outcome.
func Resolve(subs []domain.Subscription, rawID, messageText string, tmpl Template) *domain.Subscription {
	if rawID != "" {
		for i := range subs {
			if subs[i].ID == rawID {
				return &subs[i]
			}
		}
		for i := range subs {
			if subs[i].Name == rawID {
				return &subs[i]
			}
		}
	}

	if messageText == "" {
		return nil
	}

	name, ok := ExtractName(tmpl, messageText)
	if !ok {
		return nil
	}
	for i := range subs {
		if subs[i].Name == name {
			return &subs[i]
		}
	}
	return nil
}

// ApplyAction mutates the subscription per the user's decision and returns
// the pre-action billing date, which is the date label of the records whose
// feedback must be updated. CancelledAt is stamped only on an actual
// active→cancelled transition and cleared on the reverse one.
func ApplyAction(sub *domain.Subscription, action Action, now time.Time) (*time.Time, error) {
	preDate := sub.NextBillingDate

	switch action {
	case ActionRenewed:
		if sub.Status != domain.SubscriptionStatusActive {
			sub.Status = domain.SubscriptionStatusActive
			sub.CancelledAt = nil
		}
		if preDate != nil {
			next := recurrence.Advance(*preDate, sub.Frequency)
			sub.NextBillingDate = &next
		}
	case ActionDeprecated:
		if sub.Status == domain.SubscriptionStatusActive {
			sub.Status = domain.SubscriptionStatusCancelled
			at := now
			sub.CancelledAt = &at
		}
		// Cleared even though the cancelled status alone stops dispatch;
		// avoids stale-date leakage in analytics reads.
		sub.NextBillingDate = nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAction, action)
	}

	return preDate, nil
}

// CallbackResult reports a handled callback back to the channel.
type CallbackResult struct {
	Subscription *domain.Subscription
	Action       Action
	Toast        string
}

// Resolver consumes inbound channel callbacks and applies the user's
// decision to the originating subscription and its notification history.
type Resolver struct {
	repo Repository
	now  func() time.Time
}

// NewResolver creates a callback resolver.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo, now: time.Now}
}

// HandleCallback resolves a callback payload (plus the original message text
// for legacy payloads without a usable id) and applies the action. The write
// is load → mutate → store at subscription granularity and is idempotent when
// replayed with the same inputs.
func (r *Resolver) HandleCallback(ctx context.Context, data, messageText string) (*CallbackResult, error) {
	action, rawID, err := ParseCallbackData(data)
	if err != nil {
		recordCallbackResolved("rejected")
		return nil, err
	}

	settings, err := r.repo.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load notification settings: %w", err)
	}
	tmpl := ParseTemplate(settings.Template)

	subs, err := r.repo.ListSubscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	sub := Resolve(subs, rawID, messageText, tmpl)
	if sub == nil {
		recordCallbackResolved("not_found")
		return nil, ErrSubscriptionNotFound
	}

	preDate, err := ApplyAction(sub, action, r.now())
	if err != nil {
		recordCallbackResolved("rejected")
		return nil, err
	}

	if err := r.repo.UpdateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}

	if preDate != nil {
		updated, err := r.repo.UpdateRenewalFeedback(ctx, sub.ID, recurrence.Midnight(*preDate), action.feedback())
		if err != nil {
			// Subscription state already advanced; feedback is best-effort.
			slog.Error("update renewal feedback failed",
				"subscription_id", sub.ID,
				"error", err,
			)
		} else {
			slog.Debug("renewal feedback updated",
				"subscription_id", sub.ID,
				"records", updated,
			)
		}
	}

	recordCallbackResolved("resolved")

	toast := fmt.Sprintf("%s marked as renewed ✅", sub.Name)
	if action == ActionDeprecated {
		toast = fmt.Sprintf("%s cancelled ❌", sub.Name)
	}

	return &CallbackResult{Subscription: sub, Action: action, Toast: toast}, nil
}
