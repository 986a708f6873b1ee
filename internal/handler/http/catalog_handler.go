package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/storefront-service/internal/auth"
	"github.com/vasiliy-maslov/storefront-service/internal/cart"
	"github.com/vasiliy-maslov/storefront-service/internal/catalog"
	"github.com/vasiliy-maslov/storefront-service/internal/upload"
)

const (
	defaultProductPageSize = 24
	maxProductPageSize     = 100
)

type ProductListResponse struct {
	Products []catalog.ProductSummary `json:"products"`
	Total    int                      `json:"total"`
	Limit    int                      `json:"limit"`
	Offset   int                      `json:"offset"`
}

type SubmitReviewRequest struct {
	Rating       int    `json:"rating" validate:"required,min=1,max=5"`
	Comment      string `json:"comment" validate:"max=2000"`
	ReviewerName string `json:"reviewer_name" validate:"max=100"`
	AnonymousID  string `json:"anonymous_id" validate:"max=200"`
}

type DesignUploadRequest struct {
	Filename    string `json:"filename" validate:"required,max=255"`
	FileSize    int64  `json:"file_size" validate:"gte=0"`
	MimeType    string `json:"mime_type" validate:"required"`
	AnonymousID string `json:"anonymous_id" validate:"max=200"`
}

type AddCartItemRequest struct {
	VariantID   uuid.UUID       `json:"variant_id"`
	Quantity    int             `json:"quantity" validate:"required,min=1"`
	Config      json.RawMessage `json:"config"`
	AnonymousID string          `json:"anonymous_id" validate:"max=200"`
}

// CatalogHandler serves the public storefront under /api/products.
type CatalogHandler struct {
	catalog  catalog.Service
	cart     cart.Service
	uploads  upload.Service
	validate *validator.Validate
}

func NewCatalogHandler(catalogSvc catalog.Service, cartSvc cart.Service, uploads upload.Service) *CatalogHandler {
	return &CatalogHandler{
		catalog:  catalogSvc,
		cart:     cartSvc,
		uploads:  uploads,
		validate: newValidator(),
	}
}

// RegisterRoutes mounts read routes directly and passes write routes through
// writeLimit, which may be nil.
func (h *CatalogHandler) RegisterRoutes(router chi.Router, writeLimit func(http.Handler) http.Handler) {
	router.Get("/", h.handleListProducts)
	router.Get("/categories", h.handleListCategories)
	router.Get("/uploads/{id}", h.handleDesignReadURL)
	router.Get("/{slug}", h.handleGetProduct)
	router.Get("/{slug}/reviews", h.handleListReviews)

	router.Group(func(r chi.Router) {
		if writeLimit != nil {
			r.Use(writeLimit)
		}
		r.Post("/{slug}/reviews", h.handleSubmitReview)
		r.Post("/uploads", h.handleCreateDesignUpload)
		r.Post("/cart-items", h.handleAddCartItem)
	})
}

func (h *CatalogHandler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultProductPageSize)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if limit == 0 {
		limit = defaultProductPageSize
	}
	if limit > maxProductPageSize {
		limit = maxProductPageSize
	}

	products, total, err := h.catalog.ListProducts(r.Context(), catalog.ListParams{
		CategorySlug: r.URL.Query().Get("category"),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		respondWithServiceError(w, "products.list", err)
		return
	}
	respondWithJSON(w, http.StatusOK, ProductListResponse{Products: products, Total: total, Limit: limit, Offset: offset})
}

func (h *CatalogHandler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		respondWithServiceError(w, "products.categories", err)
		return
	}
	respondWithJSON(w, http.StatusOK, categories)
}

func (h *CatalogHandler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	detail, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondWithServiceError(w, "products.get", err)
		return
	}
	respondWithJSON(w, http.StatusOK, detail)
}

func (h *CatalogHandler) handleListReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.catalog.ListReviews(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondWithServiceError(w, "products.reviews.list", err)
		return
	}
	respondWithJSON(w, http.StatusOK, reviews)
}

func (h *CatalogHandler) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	var req SubmitReviewRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	anon := req.AnonymousID
	if anon == "" {
		anon = anonymousID(r)
	}
	review, err := h.catalog.SubmitReview(r.Context(), chi.URLParam(r, "slug"), catalog.ReviewInput{
		UserID:       auth.UserID(r.Context()),
		AnonymousID:  anon,
		Rating:       req.Rating,
		Comment:      req.Comment,
		ReviewerName: req.ReviewerName,
	})
	if err != nil {
		respondWithServiceError(w, "products.reviews.create", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, review)
}

func (h *CatalogHandler) handleCreateDesignUpload(w http.ResponseWriter, r *http.Request) {
	var req DesignUploadRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	anon := req.AnonymousID
	if anon == "" {
		anon = anonymousID(r)
	}
	ticket, err := h.uploads.CreateDesignUpload(r.Context(), upload.Request{
		UserID:      auth.UserID(r.Context()),
		AnonymousID: anon,
		Filename:    req.Filename,
		FileSize:    req.FileSize,
		MimeType:    req.MimeType,
	})
	if err != nil {
		respondWithServiceError(w, "products.uploads.create", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, ticket)
}

func (h *CatalogHandler) handleDesignReadURL(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	signed, err := h.uploads.DesignReadURL(r.Context(), id, auth.UserID(r.Context()), anonymousID(r))
	if err != nil {
		respondWithServiceError(w, "products.uploads.read", err)
		return
	}
	respondWithJSON(w, http.StatusOK, signed)
}

func (h *CatalogHandler) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	var req AddCartItemRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	if req.VariantID == uuid.Nil {
		respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
			Error:   "Validation failed",
			Details: map[string]string{"variant_id": "is required"},
		})
		return
	}

	anon := req.AnonymousID
	if anon == "" {
		anon = anonymousID(r)
	}
	item, err := h.cart.AddItem(r.Context(), cart.Owner{AnonymousID: anon, UserID: auth.UserID(r.Context())}, cart.AddItemInput{
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
		Config:    req.Config,
	})
	if err != nil {
		respondWithServiceError(w, "products.cart-items.create", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, item)
}
