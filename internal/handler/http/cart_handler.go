package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/vasiliy-maslov/storefront-service/internal/auth"
	"github.com/vasiliy-maslov/storefront-service/internal/cart"
)

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

type MergeCartRequest struct {
	AnonymousID string `json:"anonymous_id" validate:"max=200"`
}

type CartHandler struct {
	cart     cart.Service
	auth     *Authenticator
	validate *validator.Validate
}

func NewCartHandler(cartSvc cart.Service, authenticator *Authenticator) *CartHandler {
	return &CartHandler{cart: cartSvc, auth: authenticator, validate: newValidator()}
}

func (h *CartHandler) RegisterRoutes(router chi.Router) {
	router.Get("/", h.handleGetCart)
	router.Patch("/items/{id}", h.handleUpdateItem)
	router.Delete("/items/{id}", h.handleRemoveItem)
	router.With(h.auth.RequireUser).Post("/merge", h.handleMerge)
}

func (h *CartHandler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.cart.Get(r.Context(), cart.Owner{AnonymousID: anonymousID(r), UserID: auth.UserID(r.Context())})
	if err != nil {
		respondWithServiceError(w, "cart.get", err)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

func (h *CartHandler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	var req UpdateCartItemRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	item, err := h.cart.UpdateItem(r.Context(), id, req.Quantity)
	if err != nil {
		respondWithServiceError(w, "cart.items.update", err)
		return
	}
	respondWithJSON(w, http.StatusOK, item)
}

func (h *CartHandler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.cart.RemoveItem(r.Context(), id); err != nil {
		respondWithServiceError(w, "cart.items.delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req MergeCartRequest
	if !decodeOptionalAndValidate(w, r, h.validate, &req) {
		return
	}
	anon := req.AnonymousID
	if anon == "" {
		anon = anonymousID(r)
	}

	id, _ := auth.FromContext(r.Context())
	view, err := h.cart.Merge(r.Context(), anon, id.UserID)
	if err != nil {
		respondWithServiceError(w, "cart.merge", err)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}
