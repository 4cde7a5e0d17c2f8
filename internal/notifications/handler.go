package notifications

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/subtrack-app/subtrack/internal/pkg/httputil"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrSubscriptionNotFound, Status: http.StatusNotFound, Message: "Subscription not found"},
	{Error: ErrUnsupportedAction, Status: http.StatusBadRequest, Message: "Unsupported callback action"},
	{Error: ErrEmptyCallback, Status: http.StatusBadRequest, Message: "Callback carries no data"},
}

// CallbackAcker acknowledges an inbound callback on its channel: a toast for
// the user and, on success, removal of the interactive markup from the
// original message.
type CallbackAcker interface {
	AnswerCallback(ctx context.Context, callbackID, text string) error
	ClearInlineKeyboard(ctx context.Context, chatID string, messageID int64) error
}

// Handler handles HTTP requests for the notifications module.
type Handler struct {
	resolver *Resolver
	repo     Repository
	acker    CallbackAcker
}

// NewHandler creates a notifications handler. acker may be nil when the
// telegram channel is disabled.
func NewHandler(resolver *Resolver, repo Repository, acker CallbackAcker) *Handler {
	return &Handler{resolver: resolver, repo: repo, acker: acker}
}

// RegisterRoutes registers notification routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/telegram/webhook", h.TelegramWebhook)
	r.Get("/notifications/history", h.History)
}

// telegramUpdate is the subset of a Telegram Bot API update the webhook
// consumes.
type telegramUpdate struct {
	CallbackQuery *struct {
		ID      string `json:"id"`
		Data    string `json:"data"`
		Message *struct {
			MessageID int64  `json:"message_id"`
			Text      string `json:"text"`
			Chat      struct {
				ID int64 `json:"id"`
			} `json:"chat"`
		} `json:"message"`
		From struct {
			ID int64 `json:"id"`
		} `json:"from"`
	} `json:"callback_query"`
}

// TelegramWebhook handles POST /telegram/webhook. Updates without a callback
// query are acknowledged and ignored; resolution failures still answer the
// callback so the user sees feedback instead of silence.
func (h *Handler) TelegramWebhook(w http.ResponseWriter, r *http.Request) {
	var update telegramUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	cb := update.CallbackQuery
	if cb == nil {
		httputil.JSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	var messageText string
	if cb.Message != nil {
		messageText = cb.Message.Text
	}

	result, err := h.resolver.HandleCallback(r.Context(), cb.Data, messageText)
	if err != nil {
		h.answer(r.Context(), cb.ID, httputil.MessageFor(err, errorMappings, "Something went wrong"))
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	h.answer(r.Context(), cb.ID, result.Toast)
	if h.acker != nil && cb.Message != nil {
		chatID := strconv.FormatInt(cb.Message.Chat.ID, 10)
		if err := h.acker.ClearInlineKeyboard(r.Context(), chatID, cb.Message.MessageID); err != nil {
			slog.Warn("clear inline keyboard failed", "error", err)
		}
	}

	httputil.Success(w, http.StatusOK, map[string]string{
		"subscription": result.Subscription.Name,
		"action":       string(result.Action),
	})
}

func (h *Handler) answer(ctx context.Context, callbackID, text string) {
	if h.acker == nil {
		return
	}
	if err := h.acker.AnswerCallback(ctx, callbackID, text); err != nil {
		slog.Warn("answer callback failed", "error", err)
	}
}

// History handles GET /notifications/history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			httputil.Error(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = parsed
	}

	records, err := h.repo.ListRecords(r.Context(), limit)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, records)
}
