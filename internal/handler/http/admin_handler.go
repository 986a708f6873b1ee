package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/vasiliy-maslov/storefront-service/internal/admin"
	"github.com/vasiliy-maslov/storefront-service/internal/order"
	"github.com/vasiliy-maslov/storefront-service/internal/storage"
	"github.com/vasiliy-maslov/storefront-service/internal/upload"
)

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type UpdateStockRequest struct {
	Stock json.RawMessage `json:"stock"`
}

type ImageUploadRequest struct {
	Filename string `json:"filename" validate:"required,max=255"`
	MimeType string `json:"mime_type" validate:"required"`
}

type ImageUploadResponse struct {
	SignedURL *storage.SignedURL `json:"signed_url"`
	PublicURL string             `json:"public_url"`
}

// AdminHandler serves /api/admin. Every route expects RequireAdmin upstream.
type AdminHandler struct {
	dashboard admin.DashboardService
	orders    order.Service
	catalog   admin.CatalogService
	uploads   upload.Service
	validate  *validator.Validate
}

func NewAdminHandler(dashboard admin.DashboardService, orders order.Service, catalogSvc admin.CatalogService, uploads upload.Service) *AdminHandler {
	return &AdminHandler{
		dashboard: dashboard,
		orders:    orders,
		catalog:   catalogSvc,
		uploads:   uploads,
		validate:  newValidator(),
	}
}

func (h *AdminHandler) RegisterRoutes(router chi.Router) {
	router.Get("/dashboard", h.handleDashboard)

	router.Get("/orders", h.handleListOrders)
	router.Get("/orders/{id}", h.handleGetOrder)
	router.Patch("/orders/{id}", h.handleUpdateOrderStatus)
	router.Delete("/orders/{id}", h.handleDeleteOrder)

	router.Get("/products", h.handleListProducts)
	router.Post("/products", h.handleCreateProduct)
	router.Get("/products/{id}", h.handleGetProduct)
	router.Put("/products/{id}", h.handleUpdateProduct)
	router.Delete("/products/{id}", h.handleDeleteProduct)
	router.Post("/products/{id}/variants", h.handleCreateVariant)
	router.Post("/products/{id}/variants/bulk", h.handleBulkCreateVariants)
	router.Post("/products/{id}/images", h.handleCreateImage)

	router.Patch("/variants/{id}", h.handleUpdateVariant)
	router.Patch("/variants/{id}/stock", h.handleUpdateVariantStock)
	router.Delete("/variants/{id}", h.handleDeleteVariant)

	router.Delete("/images/{id}", h.handleDeleteImage)

	router.Get("/categories", h.handleListCategories)
	router.Post("/categories", h.handleCreateCategory)
	router.Put("/categories/{id}", h.handleUpdateCategory)
	router.Delete("/categories/{id}", h.handleDeleteCategory)

	router.Post("/uploads", h.handleImageUpload)
}

func (h *AdminHandler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.dashboard.Dashboard(r.Context())
	if err != nil {
		respondWithServiceError(w, "admin.dashboard", err)
		return
	}
	respondWithJSON(w, http.StatusOK, d)
}

func (h *AdminHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryInt(r, "limit", order.DefaultPageSize)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.orders.ListOrders(r.Context(), page, limit, r.URL.Query().Get("status"))
	if err != nil {
		respondWithServiceError(w, "admin.orders.list", err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *AdminHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	o, err := h.orders.GetOrderByID(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, "admin.orders.get", err)
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

func (h *AdminHandler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	var req UpdateOrderStatusRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	o, err := h.orders.UpdateOrderStatus(r.Context(), id, order.Status(req.Status))
	if err != nil {
		respondWithServiceError(w, "admin.orders.update", err)
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

func (h *AdminHandler) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.orders.DeleteOrder(r.Context(), id); err != nil {
		respondWithServiceError(w, "admin.orders.delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) handleListProducts(w http.ResponseWriter, r *http.Request) {
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

	products, total, err := h.catalog.ListProducts(r.Context(), limit, offset)
	if err != nil {
		respondWithServiceError(w, "admin.products.list", err)
		return
	}
	respondWithJSON(w, http.StatusOK, ProductListResponse{Products: products, Total: total, Limit: limit, Offset: offset})
}

func (h *AdminHandler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	detail, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, "admin.products.get", err)
		return
	}
	respondWithJSON(w, http.StatusOK, detail)
}

func (h *AdminHandler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req admin.ProductInput
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	p, err := h.catalog.CreateProduct(r.Context(), req)
	if err != nil {
		respondWithServiceError(w, "admin.products.create", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, p)
}

func (h *AdminHandler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	var req admin.ProductInput
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	p, err := h.catalog.UpdateProduct(r.Context(), id, req)
	if err != nil {
		respondWithServiceError(w, "admin.products.update", err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (h *AdminHandler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteProduct(r.Context(), id); err != nil {
		respondWithServiceError(w, "admin.products.delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) handleCreateVariant(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	var req admin.VariantInput
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	v, err := h.catalog.CreateVariant(r.Context(), productID, req)
	if err != nil {
		respondWithServiceError(w, "admin.variants.create", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, v)
}

func (h *AdminHandler) handleBulkCreateVariants(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	var req admin.BulkVariantsInput
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	created, err := h.catalog.BulkCreateVariants(r.Context(), productID, req)
	if err != nil {
		respondWithServiceError(w, "admin.variants.bulk", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]interface{}{"created": created, "count": len(created)})
}

func (h *AdminHandler) handleUpdateVariant(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	var req admin.VariantInput
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	v, err := h.catalog.UpdateVariant(r.Context(), id, req)
	if err != nil {
		respondWithServiceError(w, "admin.variants.update", err)
		return
	}
	respondWithJSON(w, http.StatusOK, v)
}

func (h *AdminHandler) handleUpdateVariantStock(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	var req UpdateStockRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	v, err := h.catalog.UpdateVariantStock(r.Context(), id, req.Stock)
	if err != nil {
		respondWithServiceError(w, "admin.variants.stock", err)
		return
	}
	respondWithJSON(w, http.StatusOK, v)
}

func (h *AdminHandler) handleDeleteVariant(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteVariant(r.Context(), id); err != nil {
		respondWithServiceError(w, "admin.variants.delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) handleCreateImage(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	var req admin.ImageInput
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	img, err := h.catalog.CreateImage(r.Context(), productID, req)
	if err != nil {
		respondWithServiceError(w, "admin.images.create", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, img)
}

func (h *AdminHandler) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteImage(r.Context(), id); err != nil {
		respondWithServiceError(w, "admin.images.delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		respondWithServiceError(w, "admin.categories.list", err)
		return
	}
	respondWithJSON(w, http.StatusOK, categories)
}

func (h *AdminHandler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req admin.CategoryInput
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	c, err := h.catalog.CreateCategory(r.Context(), req)
	if err != nil {
		respondWithServiceError(w, "admin.categories.create", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, c)
}

func (h *AdminHandler) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	var req admin.CategoryInput
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	c, err := h.catalog.UpdateCategory(r.Context(), id, req)
	if err != nil {
		respondWithServiceError(w, "admin.categories.update", err)
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}

func (h *AdminHandler) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteCategory(r.Context(), id); err != nil {
		respondWithServiceError(w, "admin.categories.delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) handleImageUpload(w http.ResponseWriter, r *http.Request) {
	var req ImageUploadRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	signed, publicURL, err := h.uploads.ProductImageUpload(r.Context(), req.Filename, req.MimeType)
	if err != nil {
		respondWithServiceError(w, "admin.uploads", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, ImageUploadResponse{SignedURL: signed, PublicURL: publicURL})
}
