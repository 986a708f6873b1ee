package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront-service/internal/admin"
	"github.com/vasiliy-maslov/storefront-service/internal/auth"
	"github.com/vasiliy-maslov/storefront-service/internal/cart"
	"github.com/vasiliy-maslov/storefront-service/internal/catalog"
	"github.com/vasiliy-maslov/storefront-service/internal/checkout"
	"github.com/vasiliy-maslov/storefront-service/internal/order"
	"github.com/vasiliy-maslov/storefront-service/internal/payment"
	"github.com/vasiliy-maslov/storefront-service/internal/storage"
	"github.com/vasiliy-maslov/storefront-service/internal/upload"
)

const maxBodyBytes = 1 << 20

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

type errorMapping struct {
	err  error
	code int
}

var errorMappings = []errorMapping{
	{auth.ErrMissingToken, http.StatusUnauthorized},
	{auth.ErrInvalidToken, http.StatusUnauthorized},
	{auth.ErrNotAdmin, http.StatusUnauthorized},

	{catalog.ErrProductNotFound, http.StatusNotFound},
	{catalog.ErrCategoryNotFound, http.StatusNotFound},
	{catalog.ErrVariantNotFound, http.StatusNotFound},
	{catalog.ErrImageNotFound, http.StatusNotFound},
	{cart.ErrCartNotFound, http.StatusNotFound},
	{cart.ErrItemNotFound, http.StatusNotFound},
	{order.ErrOrderNotFound, http.StatusNotFound},
	{upload.ErrUploadNotFound, http.StatusNotFound},
	{upload.ErrUploadNotAccessible, http.StatusNotFound},

	{catalog.ErrSlugExists, http.StatusConflict},
	{catalog.ErrCategorySlugExists, http.StatusConflict},
	{catalog.ErrVariantExists, http.StatusConflict},
	{catalog.ErrRatingConflict, http.StatusConflict},
	{cart.ErrOutOfStock, http.StatusConflict},
	{cart.ErrInsufficientStock, http.StatusConflict},
	{checkout.ErrItemUnavailable, http.StatusConflict},
	{order.ErrPaymentIntentInUse, http.StatusConflict},
	{order.ErrPendingOrderExists, http.StatusConflict},
	{order.ErrStatusAlreadySet, http.StatusConflict},

	{catalog.ErrInvalidStock, http.StatusBadRequest},
	{catalog.ErrInvalidRating, http.StatusBadRequest},
	{catalog.ErrReviewerRequired, http.StatusBadRequest},
	{cart.ErrOwnerRequired, http.StatusBadRequest},
	{cart.ErrInvalidQuantity, http.StatusBadRequest},
	{checkout.ErrCartRequired, http.StatusBadRequest},
	{checkout.ErrCartEmpty, http.StatusBadRequest},
	{checkout.ErrBelowMinimum, http.StatusBadRequest},
	{order.ErrInvalidStatus, http.StatusBadRequest},
	{upload.ErrOwnerRequired, http.StatusBadRequest},
	{upload.ErrUnsupportedType, http.StatusBadRequest},
	{upload.ErrFileTooLarge, http.StatusBadRequest},
	{storage.ErrInvalidPath, http.StatusBadRequest},
	{payment.ErrInvalidSignature, http.StatusBadRequest},
	{payment.ErrInvalidPayload, http.StatusBadRequest},
	{admin.ErrInvalidSlug, http.StatusBadRequest},
}

func mapErrorToStatusCode(err error) int {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	return http.StatusInternalServerError
}

// clientMessage returns the text safe to show for a 4xx error: the matched
// sentinel's message rather than the wrapped chain.
func clientMessage(err error) string {
	var stockErr *cart.StockError
	if errors.As(err, &stockErr) {
		return stockErr.Error()
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.err.Error()
		}
	}
	return err.Error()
}

// respondWithServiceError maps err to a status. 5xx responses carry a generic
// message and are logged with the route tag.
func respondWithServiceError(w http.ResponseWriter, route string, err error) {
	code := mapErrorToStatusCode(err)
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Str("route", route).Msg("Request failed")
		message := "Internal server error"
		if errors.Is(err, checkout.ErrWebhookNotConfigured) {
			message = checkout.ErrWebhookNotConfigured.Error()
		}
		respondWithError(w, code, message)
		return
	}
	log.Warn().Err(err).Str("route", route).Int("status", code).Msg("Request rejected")
	respondWithError(w, code, clientMessage(err))
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			details[field] = "is required"
		case "email":
			details[field] = "must be a valid email"
		case "url":
			details[field] = "must be a valid URL"
		case "min", "gte":
			details[field] = fmt.Sprintf("must be at least %s", fe.Param())
		case "max", "lte":
			details[field] = fmt.Sprintf("must be at most %s", fe.Param())
		case "len":
			details[field] = fmt.Sprintf("must be exactly %s characters", fe.Param())
		case "oneof":
			details[field] = fmt.Sprintf("must be one of: %s", fe.Param())
		default:
			details[field] = fmt.Sprintf("failed on %s", fe.Tag())
		}
	}
	return details
}

// newValidator reports JSON field names in validation details.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeAndValidate decodes a JSON body into dst and validates it, writing the
// error response itself and returning false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, validate *validator.Validate, dst interface{}) bool {
	return decodeBody(w, r, validate, dst, false)
}

// decodeOptionalAndValidate is decodeAndValidate for bodies the client may omit;
// an empty body leaves dst untouched.
func decodeOptionalAndValidate(w http.ResponseWriter, r *http.Request, validate *validator.Validate, dst interface{}) bool {
	return decodeBody(w, r, validate, dst, true)
}

func decodeBody(w http.ResponseWriter, r *http.Request, validate *validator.Validate, dst interface{}, allowEmpty bool) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			if allowEmpty {
				return true
			}
			respondWithError(w, http.StatusBadRequest, "Request body is empty")
			return false
		}
		log.Warn().Err(err).Msg("Failed to decode request body")
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request payload: %v", err))
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
				Error:   "Validation failed",
				Details: formatValidationErrors(validationErrors),
			})
			return false
		}
		log.Error().Err(err).Type("validation_error_type", err).Msg("Unexpected error type during validation")
		respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		return false
	}
	return true
}

func parseUUIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.FromString(raw)
	if err != nil {
		log.Warn().Err(err).Str(name, raw).Msg("Failed to parse id parameter from URL")
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s parameter", name))
		return uuid.Nil, false
	}
	return id, true
}

// queryInt parses a non-negative integer query parameter, falling back to def.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

const anonymousIDHeader = "X-Anonymous-ID"

// anonymousID reads the client's anonymous identifier from the query string or header.
func anonymousID(r *http.Request) string {
	if id := strings.TrimSpace(r.URL.Query().Get("anonymous_id")); id != "" {
		return id
	}
	return strings.TrimSpace(r.Header.Get(anonymousIDHeader))
}
