package rates

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/subtrack-app/subtrack/internal/pkg/httputil"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrDecryptionFailed, Status: http.StatusBadRequest, Message: "could not decrypt credential"},
	{Error: ErrNotConfigured, Status: http.StatusConflict, Message: "exchange rate credential not configured"},
	{Error: ErrCredentialRejected, Status: http.StatusUnprocessableEntity},
}

// Handler handles HTTP requests for the rates module.
type Handler struct {
	keys     *KeyStore
	service  *Service
	validate *validator.Validate
}

// NewHandler creates a rates handler.
func NewHandler(keys *KeyStore, service *Service) *Handler {
	return &Handler{
		keys:     keys,
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers rates routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/rates/public-key", h.PublicKey)
	r.Post("/rates/key", h.SubmitKey)
	r.Get("/rates", h.Latest)
}

// PublicKey handles GET /rates/public-key. Clients use the JWK to encrypt
// the provider API key before submitting it.
func (h *Handler) PublicKey(w http.ResponseWriter, r *http.Request) {
	httputil.Success(w, http.StatusOK, h.keys.PublicJWK())
}

type submitKeyRequest struct {
	EncryptedKey string `json:"encrypted_key" validate:"required,base64"`
}

// SubmitKey handles POST /rates/key. The body carries ciphertext only.
func (h *Handler) SubmitKey(w http.ResponseWriter, r *http.Request) {
	var req submitKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	if err := h.service.SubmitKey(r.Context(), req.EncryptedKey); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]bool{"enabled": true})
}

// Latest handles GET /rates.
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	rates, err := h.service.LatestRates(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, rates)
}
