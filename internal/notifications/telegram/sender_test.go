package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subtrack-app/subtrack/internal/domain"
	"github.com/subtrack-app/subtrack/internal/notifications"
)

func newTestSender(t *testing.T, handler http.HandlerFunc) (*Sender, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	s, err := NewSender(Config{
		Enabled:    true,
		BotToken:   "test-token",
		APIBaseURL: server.URL,
	})
	require.NoError(t, err)
	return s, server
}

func TestNewSenderRequiresToken(t *testing.T) {
	_, err := NewSender(Config{Enabled: true})
	assert.Error(t, err)

	s, err := NewSender(Config{Enabled: false})
	require.NoError(t, err)
	assert.Equal(t, domain.ChannelTypeTelegram, s.Type())
}

func TestSendWithButtons(t *testing.T) {
	var captured sendMessageRequest
	var path string

	s, _ := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"ok": true}`))
	})

	err := s.Send(context.Background(), notifications.Notification{
		To:   "chat-42",
		Body: "Netflix renews tomorrow",
		Buttons: []notifications.Button{
			{Text: "Renewed", Data: "renewed|sub-1"},
			{Text: "Not renewing", Data: "deprecated|sub-1"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "/bottest-token/sendMessage", path)
	assert.Equal(t, "chat-42", captured.ChatID)
	assert.Equal(t, "Netflix renews tomorrow", captured.Text)
	require.NotNil(t, captured.ReplyMarkup)
	require.Len(t, captured.ReplyMarkup.InlineKeyboard, 1)
	require.Len(t, captured.ReplyMarkup.InlineKeyboard[0], 2)
	assert.Equal(t, "renewed|sub-1", captured.ReplyMarkup.InlineKeyboard[0][0].CallbackData)
}

func TestSendWithoutButtons(t *testing.T) {
	var captured sendMessageRequest

	s, _ := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"ok": true}`))
	})

	err := s.Send(context.Background(), notifications.Notification{To: "chat-42", Body: "plain"})
	require.NoError(t, err)
	assert.Nil(t, captured.ReplyMarkup)
}

func TestSendAPIError(t *testing.T) {
	s, _ := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok": false, "error_code": 400, "description": "chat not found"}`))
	})

	err := s.Send(context.Background(), notifications.Notification{To: "nope", Body: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestSendDisabledIsNoop(t *testing.T) {
	s, err := NewSender(Config{Enabled: false})
	require.NoError(t, err)

	// No server configured: a real call would fail.
	assert.NoError(t, s.Send(context.Background(), notifications.Notification{To: "42", Body: "hi"}))
}

func TestAnswerCallback(t *testing.T) {
	var path string
	var captured map[string]string

	s, _ := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"ok": true}`))
	})

	require.NoError(t, s.AnswerCallback(context.Background(), "cb-1", "done"))
	assert.Equal(t, "/bottest-token/answerCallbackQuery", path)
	assert.Equal(t, "cb-1", captured["callback_query_id"])
	assert.Equal(t, "done", captured["text"])
}

func TestClearInlineKeyboard(t *testing.T) {
	var path string
	var captured map[string]interface{}

	s, _ := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"ok": true}`))
	})

	require.NoError(t, s.ClearInlineKeyboard(context.Background(), "42", 77))
	assert.Equal(t, "/bottest-token/editMessageReplyMarkup", path)
	assert.Equal(t, "42", captured["chat_id"])
	assert.Equal(t, float64(77), captured["message_id"])
}
