package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/storefront-service/internal/account"
	"github.com/vasiliy-maslov/storefront-service/internal/auth"
)

type AddWishlistRequest struct {
	ProductID uuid.UUID `json:"product_id"`
}

// AccountHandler serves /api/account. Every route expects RequireUser upstream.
type AccountHandler struct {
	account  account.Service
	validate *validator.Validate
}

func NewAccountHandler(accountSvc account.Service) *AccountHandler {
	return &AccountHandler{account: accountSvc, validate: newValidator()}
}

func (h *AccountHandler) RegisterRoutes(router chi.Router) {
	router.Get("/profile", h.handleGetProfile)
	router.Put("/profile", h.handleUpdateProfile)
	router.Get("/orders", h.handleListOrders)
	router.Get("/wishlist", h.handleListWishlist)
	router.Post("/wishlist", h.handleAddWishlist)
	router.Delete("/wishlist/{productID}", h.handleRemoveWishlist)
}

func currentUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return uuid.Nil, false
	}
	return id.UserID, true
}

func (h *AccountHandler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	profile, err := h.account.GetProfile(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, "account.profile.get", err)
		return
	}
	respondWithJSON(w, http.StatusOK, profile)
}

func (h *AccountHandler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req account.ProfileInput
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	profile, err := h.account.UpdateProfile(r.Context(), userID, req)
	if err != nil {
		respondWithServiceError(w, "account.profile.update", err)
		return
	}
	respondWithJSON(w, http.StatusOK, profile)
}

func (h *AccountHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	orders, err := h.account.OrderHistory(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, "account.orders", err)
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}

func (h *AccountHandler) handleListWishlist(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	products, err := h.account.ListWishlist(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, "account.wishlist.list", err)
		return
	}
	respondWithJSON(w, http.StatusOK, products)
}

func (h *AccountHandler) handleAddWishlist(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req AddWishlistRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	if req.ProductID == uuid.Nil {
		respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
			Error:   "Validation failed",
			Details: map[string]string{"product_id": "is required"},
		})
		return
	}
	if err := h.account.AddToWishlist(r.Context(), userID, req.ProductID); err != nil {
		respondWithServiceError(w, "account.wishlist.add", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AccountHandler) handleRemoveWishlist(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	productID, ok := parseUUIDParam(w, r, "productID")
	if !ok {
		return
	}
	if err := h.account.RemoveFromWishlist(r.Context(), userID, productID); err != nil {
		respondWithServiceError(w, "account.wishlist.remove", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
