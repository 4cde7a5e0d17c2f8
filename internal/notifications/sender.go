// Package notifications implements the recurring reminder engine: template
// rendering, the dispatch scan, the inbound callback resolver and the
// notification history records behind them.
package notifications

import (
	"context"

	"github.com/subtrack-app/subtrack/internal/domain"
)

// Button is an interactive affordance attached to an outbound message.
// Data carries the callback payload ("renewed|<id>" / "deprecated|<id>").
type Button struct {
	Text string
	Data string
}

// Notification is a rendered outbound message for one channel.
type Notification struct {
	To      string
	Subject string
	Body    string
	Buttons []Button // ignored by channels without interactive markup
}

// Sender delivers notifications over one channel.
type Sender interface {
	Type() domain.ChannelType
	Send(ctx context.Context, notification Notification) error
}
