// Package telegram provides reminder delivery and callback acknowledgement
// via the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/subtrack-app/subtrack/internal/domain"
	"github.com/subtrack-app/subtrack/internal/notifications"
)

const (
	defaultAPIBaseURL = "https://api.telegram.org"
	defaultTimeout    = 10 * time.Second
	defaultRateLimit  = 25 // Bot API allows ~30 messages/second
)

// Config holds telegram sender configuration.
type Config struct {
	Enabled    bool
	BotToken   string
	RateLimit  float64       // messages per second, 0 = default
	APIBaseURL string        // override for tests
	Timeout    time.Duration // request timeout
}

// Sender implements the telegram notification sender. It also answers
// callback queries and strips inline keyboards from handled messages.
type Sender struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewSender creates a new telegram sender.
// Returns error if enabled but required config is missing.
func NewSender(config Config) (*Sender, error) {
	if config.Enabled && config.BotToken == "" {
		return nil, errors.New("telegram sender: bot token is required when enabled")
	}

	if config.APIBaseURL == "" {
		config.APIBaseURL = defaultAPIBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	limit := config.RateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}

	slog.Info("telegram sender configured",
		"enabled", config.Enabled,
		"rate_limit", limit,
	)

	return &Sender{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(limit), 1),
	}, nil
}

// Type returns the channel type.
func (s *Sender) Type() domain.ChannelType {
	return domain.ChannelTypeTelegram
}

type inlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type inlineKeyboardMarkup struct {
	InlineKeyboard [][]inlineKeyboardButton `json:"inline_keyboard"`
}

type sendMessageRequest struct {
	ChatID      string                `json:"chat_id"`
	Text        string                `json:"text"`
	ReplyMarkup *inlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// Send delivers a reminder to the configured chat. Buttons become one row of
// inline keyboard whose callback data round-trips through the webhook.
func (s *Sender) Send(ctx context.Context, notification notifications.Notification) error {
	if !s.config.Enabled {
		slog.Debug("telegram sender disabled, skipping", "to", notification.To)
		return nil
	}

	req := sendMessageRequest{
		ChatID: notification.To,
		Text:   notification.Body,
	}
	if len(notification.Buttons) > 0 {
		row := make([]inlineKeyboardButton, 0, len(notification.Buttons))
		for _, b := range notification.Buttons {
			row = append(row, inlineKeyboardButton{Text: b.Text, CallbackData: b.Data})
		}
		req.ReplyMarkup = &inlineKeyboardMarkup{InlineKeyboard: [][]inlineKeyboardButton{row}}
	}

	return s.call(ctx, "sendMessage", req)
}

// AnswerCallback shows a toast to the user who tapped a button.
func (s *Sender) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if !s.config.Enabled {
		return nil
	}
	return s.call(ctx, "answerCallbackQuery", map[string]string{
		"callback_query_id": callbackID,
		"text":              text,
	})
}

// ClearInlineKeyboard removes the interactive affordance from a message whose
// callback has been handled.
func (s *Sender) ClearInlineKeyboard(ctx context.Context, chatID string, messageID int64) error {
	if !s.config.Enabled {
		return nil
	}
	return s.call(ctx, "editMessageReplyMarkup", map[string]interface{}{
		"chat_id":      chatID,
		"message_id":   messageID,
		"reply_markup": inlineKeyboardMarkup{InlineKeyboard: [][]inlineKeyboardButton{}},
	})
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

func (s *Sender) call(ctx context.Context, method string, payload interface{}) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", s.config.APIBaseURL, s.config.BotToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return fmt.Errorf("telegram %s: unexpected response (status %d)", method, resp.StatusCode)
	}
	if !parsed.OK {
		return fmt.Errorf("telegram %s: api error %d: %s", method, parsed.ErrorCode, parsed.Description)
	}

	slog.Debug("telegram api call ok", "method", method)
	return nil
}
