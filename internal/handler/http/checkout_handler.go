package http

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront-service/internal/auth"
	"github.com/vasiliy-maslov/storefront-service/internal/checkout"
	"github.com/vasiliy-maslov/storefront-service/internal/order"
)

const maxWebhookBytes = 64 << 10

type PaymentIntentRequest struct {
	AnonymousID string          `json:"anonymous_id" validate:"max=200"`
	Shipping    *order.Shipping `json:"shipping"`
}

type CheckoutHandler struct {
	checkout checkout.Service
	validate *validator.Validate
}

func NewCheckoutHandler(checkoutSvc checkout.Service) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkoutSvc, validate: newValidator()}
}

func (h *CheckoutHandler) RegisterRoutes(router chi.Router, writeLimit func(http.Handler) http.Handler) {
	intent := router.With()
	if writeLimit != nil {
		intent = router.With(writeLimit)
	}
	intent.Post("/payment-intent", h.handleCreatePaymentIntent)
	router.Post("/webhook", h.handleWebhook)
}

func (h *CheckoutHandler) handleCreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req PaymentIntentRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	anon := req.AnonymousID
	if anon == "" {
		anon = anonymousID(r)
	}

	result, err := h.checkout.CreateOrUpdatePaymentIntent(r.Context(), checkout.Input{
		AnonymousID: anon,
		UserID:      auth.UserID(r.Context()),
		Shipping:    req.Shipping,
	})
	if err != nil {
		respondWithServiceError(w, "checkout.payment-intent", err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// handleWebhook needs the raw body: the signature covers the exact bytes.
func (h *CheckoutHandler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read webhook body")
		respondWithError(w, http.StatusBadRequest, "Invalid webhook payload")
		return
	}

	if err := h.checkout.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		respondWithServiceError(w, "checkout.webhook", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"received": true})
}
