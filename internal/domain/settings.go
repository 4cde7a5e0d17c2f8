package domain

// TelegramSettings holds telegram channel enablement and credentials.
type TelegramSettings struct {
	Enabled  bool
	BotToken string
	ChatID   string
}

// EmailSettings holds email channel enablement and credentials.
type EmailSettings struct {
	Enabled bool
	Address string
}

// ReminderRule configures the renewal reminder: whether it fires, how many
// days ahead, and which channels it may use.
type ReminderRule struct {
	Enabled      bool
	ReminderDays int
	Channels     []ChannelType
}

// AllowsChannel reports whether the rule's channel allow-list includes ch.
// An empty allow-list permits all channels.
func (r ReminderRule) AllowsChannel(ch ChannelType) bool {
	if len(r.Channels) == 0 {
		return true
	}
	for _, c := range r.Channels {
		if c == ch {
			return true
		}
	}
	return false
}

// NotificationSettings is the per-tenant notification configuration. Owned by
// the settings layer; read-only to the engine.
type NotificationSettings struct {
	Telegram        TelegramSettings
	Email           EmailSettings
	RenewalReminder ReminderRule
	Template        string // line-based template, JSON-encoded
	Timezone        string // IANA name, e.g. "Asia/Shanghai"
}

// ChannelEnabled reports whether a channel is globally enabled with the
// credentials it needs to send.
func (s *NotificationSettings) ChannelEnabled(ch ChannelType) bool {
	switch ch {
	case ChannelTypeTelegram:
		return s.Telegram.Enabled && s.Telegram.BotToken != "" && s.Telegram.ChatID != ""
	case ChannelTypeEmail:
		return s.Email.Enabled && s.Email.Address != ""
	}
	return false
}
