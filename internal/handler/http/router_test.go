package http_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/storefront-service/internal/account"
	"github.com/vasiliy-maslov/storefront-service/internal/admin"
	"github.com/vasiliy-maslov/storefront-service/internal/auth"
	"github.com/vasiliy-maslov/storefront-service/internal/cart"
	"github.com/vasiliy-maslov/storefront-service/internal/catalog"
	"github.com/vasiliy-maslov/storefront-service/internal/checkout"
	storefrontHTTP "github.com/vasiliy-maslov/storefront-service/internal/handler/http"
	"github.com/vasiliy-maslov/storefront-service/internal/payment"
)

const (
	testJWTSecret   = "test-jwt-secret"
	testAdminSecret = "test-admin-secret"
)

type testServer struct {
	catalog    *MockCatalogService
	cart       *MockCartService
	checkout   *MockCheckoutService
	uploads    *MockUploadService
	account    *MockAccountService
	orders     *MockOrderService
	dashboard  *MockDashboardService
	adminStore *MockAdminCatalog
	router     http.Handler
}

func newTestServer(t *testing.T, limiter *storefrontHTTP.RateLimiter) *testServer {
	t.Helper()
	s := &testServer{
		catalog:    new(MockCatalogService),
		cart:       new(MockCartService),
		checkout:   new(MockCheckoutService),
		uploads:    new(MockUploadService),
		account:    new(MockAccountService),
		orders:     new(MockOrderService),
		dashboard:  new(MockDashboardService),
		adminStore: new(MockAdminCatalog),
	}
	authenticator := storefrontHTTP.NewAuthenticator(auth.NewJWTVerifier(testJWTSecret, ""), auth.NewAdminChecker(testAdminSecret))
	s.router = storefrontHTTP.NewRouter(storefrontHTTP.Handlers{
		Catalog:  storefrontHTTP.NewCatalogHandler(s.catalog, s.cart, s.uploads),
		Cart:     storefrontHTTP.NewCartHandler(s.cart, authenticator),
		Checkout: storefrontHTTP.NewCheckoutHandler(s.checkout),
		Account:  storefrontHTTP.NewAccountHandler(s.account),
		Admin:    storefrontHTTP.NewAdminHandler(s.dashboard, s.orders, s.adminStore, s.uploads),
	}, authenticator, limiter, nil)
	return s
}

func (s *testServer) assertExpectations(t *testing.T) {
	t.Helper()
	s.catalog.AssertExpectations(t)
	s.cart.AssertExpectations(t)
	s.checkout.AssertExpectations(t)
	s.uploads.AssertExpectations(t)
	s.account.AssertExpectations(t)
	s.orders.AssertExpectations(t)
	s.dashboard.AssertExpectations(t)
	s.adminStore.AssertExpectations(t)
}

func (s *testServer) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func signToken(t *testing.T, userID uuid.UUID, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Email: "shopper@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body["error"]
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t, nil)

	rr := s.do(http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestCatalogHandler_ListProducts(t *testing.T) {
	t.Run("clamps limit and forwards category", func(t *testing.T) {
		s := newTestServer(t, nil)
		products := []catalog.ProductSummary{
			{Product: catalog.Product{ID: uuid.Must(uuid.NewV4()), Slug: "classic-hoodie", Name: "Classic Hoodie", IsActive: true}, MinPriceCents: 4500},
		}
		s.catalog.On("ListProducts", mock.Anything, catalog.ListParams{CategorySlug: "hoodies", Limit: 100, Offset: 10}).
			Return(products, 31, nil).Once()

		rr := s.do(http.MethodGet, "/api/products/?category=hoodies&limit=500&offset=10", "", nil)

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var got storefrontHTTP.ProductListResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, 31, got.Total)
		assert.Equal(t, 100, got.Limit)
		assert.Equal(t, 10, got.Offset)
		require.Len(t, got.Products, 1)
		assert.Equal(t, "classic-hoodie", got.Products[0].Slug)
		s.assertExpectations(t)
	})

	t.Run("rejects negative offset", func(t *testing.T) {
		s := newTestServer(t, nil)

		rr := s.do(http.MethodGet, "/api/products/?offset=-1", "", nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "offset must be a non-negative integer", decodeError(t, rr))
		s.assertExpectations(t)
	})

	t.Run("hides internal errors", func(t *testing.T) {
		s := newTestServer(t, nil)
		s.catalog.On("ListProducts", mock.Anything, mock.Anything).
			Return(nil, 0, errors.New("repository: list products: connection refused")).Once()

		rr := s.do(http.MethodGet, "/api/products/", "", nil)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, "Internal server error", decodeError(t, rr))
	})
}

func TestCatalogHandler_GetProduct_NotFound(t *testing.T) {
	s := newTestServer(t, nil)
	s.catalog.On("GetProduct", mock.Anything, "missing-shirt").
		Return(nil, fmt.Errorf("service: get product: %w", catalog.ErrProductNotFound)).Once()

	rr := s.do(http.MethodGet, "/api/products/missing-shirt", "", nil)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, catalog.ErrProductNotFound.Error(), decodeError(t, rr))
	s.assertExpectations(t)
}

func TestCatalogHandler_AddCartItem(t *testing.T) {
	variantID := uuid.Must(uuid.NewV4())
	owner := cart.Owner{AnonymousID: "anon-123"}
	input := cart.AddItemInput{VariantID: variantID, Quantity: 2}

	tests := []struct {
		name           string
		body           string
		setup          func(s *testServer)
		expectedStatus int
		expectedError  string
	}{
		{
			name: "success",
			body: fmt.Sprintf(`{"variant_id":%q,"quantity":2}`, variantID),
			setup: func(s *testServer) {
				s.cart.On("AddItem", mock.Anything, owner, input).
					Return(&cart.Item{ID: uuid.Must(uuid.NewV4()), VariantID: variantID, Quantity: 2}, nil).Once()
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "out of stock",
			body: fmt.Sprintf(`{"variant_id":%q,"quantity":2}`, variantID),
			setup: func(s *testServer) {
				s.cart.On("AddItem", mock.Anything, owner, input).
					Return(nil, fmt.Errorf("service: add item: %w", cart.ErrOutOfStock)).Once()
			},
			expectedStatus: http.StatusConflict,
			expectedError:  "out of stock",
		},
		{
			name: "not enough stock left",
			body: fmt.Sprintf(`{"variant_id":%q,"quantity":2}`, variantID),
			setup: func(s *testServer) {
				s.cart.On("AddItem", mock.Anything, owner, input).
					Return(nil, fmt.Errorf("service: add item: %w", &cart.StockError{Available: 1})).Once()
			},
			expectedStatus: http.StatusConflict,
			expectedError:  "only 1 left in stock",
		},
		{
			name:           "missing variant",
			body:           `{"quantity":2}`,
			setup:          func(s *testServer) {},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Validation failed",
		},
		{
			name:           "unknown field",
			body:           fmt.Sprintf(`{"variant_id":%q,"quantity":2,"price_cents":1}`, variantID),
			setup:          func(s *testServer) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "zero quantity",
			body:           fmt.Sprintf(`{"variant_id":%q,"quantity":0}`, variantID),
			setup:          func(s *testServer) {},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			tt.setup(s)

			rr := s.do(http.MethodPost, "/api/products/cart-items", tt.body, map[string]string{"X-Anonymous-ID": "anon-123"})

			require.Equal(t, tt.expectedStatus, rr.Code, rr.Body.String())
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, decodeError(t, rr))
			}
			s.assertExpectations(t)
		})
	}
}

func TestCatalogHandler_SubmitReview_AttachesUser(t *testing.T) {
	s := newTestServer(t, nil)
	userID := uuid.Must(uuid.NewV4())
	s.catalog.On("SubmitReview", mock.Anything, "classic-hoodie", mock.MatchedBy(func(in catalog.ReviewInput) bool {
		return in.UserID != nil && *in.UserID == userID && in.Rating == 5 && in.Comment == "Great fit"
	})).Return(&catalog.Review{Rating: 5}, nil).Once()

	rr := s.do(http.MethodPost, "/api/products/classic-hoodie/reviews", `{"rating":5,"comment":"Great fit"}`,
		bearer(signToken(t, userID, testJWTSecret)))

	assert.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	s.assertExpectations(t)
}

func TestCatalogHandler_SubmitReview_RatingOutOfRange(t *testing.T) {
	s := newTestServer(t, nil)

	rr := s.do(http.MethodPost, "/api/products/classic-hoodie/reviews", `{"rating":6}`, nil)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	var got storefrontHTTP.ValidationErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "must be at most 5", got.Details["rating"])
}

func TestAuthenticator_OptionalUser_RejectsBadToken(t *testing.T) {
	s := newTestServer(t, nil)

	rr := s.do(http.MethodGet, "/api/products/", "", bearer(signToken(t, uuid.Must(uuid.NewV4()), "other-secret")))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	s.assertExpectations(t)
}

func TestCartHandler_Merge(t *testing.T) {
	t.Run("requires a signed-in user", func(t *testing.T) {
		s := newTestServer(t, nil)

		rr := s.do(http.MethodPost, "/api/cart/merge", `{"anonymous_id":"anon-1"}`, nil)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		s.assertExpectations(t)
	})

	t.Run("merges the anonymous cart", func(t *testing.T) {
		s := newTestServer(t, nil)
		userID := uuid.Must(uuid.NewV4())
		s.cart.On("Merge", mock.Anything, "anon-1", userID).
			Return(&cart.View{ItemCount: 3, Items: []cart.Line{}}, nil).Once()

		rr := s.do(http.MethodPost, "/api/cart/merge", `{"anonymous_id":"anon-1"}`, bearer(signToken(t, userID, testJWTSecret)))

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var got cart.View
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, 3, got.ItemCount)
		s.assertExpectations(t)
	})
}

func TestCartHandler_Merge_EmptyBodyFallsBackToHeader(t *testing.T) {
	tests := []struct {
		name string
		body io.Reader
	}{
		{name: "no body", body: nil},
		{name: "empty chunked body", body: struct{ io.Reader }{strings.NewReader("")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			userID := uuid.Must(uuid.NewV4())
			s.cart.On("Merge", mock.Anything, "anon-header", userID).
				Return(&cart.View{Items: []cart.Line{}}, nil).Once()

			req := httptest.NewRequest(http.MethodPost, "/api/cart/merge", tt.body)
			req.Header.Set("Authorization", "Bearer "+signToken(t, userID, testJWTSecret))
			req.Header.Set("X-Anonymous-ID", "anon-header")
			rr := httptest.NewRecorder()
			s.router.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			s.assertExpectations(t)
		})
	}
}

func TestCartHandler_UpdateItem_InvalidID(t *testing.T) {
	s := newTestServer(t, nil)

	rr := s.do(http.MethodPatch, "/api/cart/items/not-a-uuid", `{"quantity":1}`, nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid id parameter", decodeError(t, rr))
}

func TestCheckoutHandler_Webhook(t *testing.T) {
	payload := `{"id":"evt_1","type":"payment_intent.succeeded"}`

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "accepted",
			expectedStatus: http.StatusOK,
			expectedBody:   `{"received":true}`,
		},
		{
			name:           "bad signature",
			err:            fmt.Errorf("checkout: %w", payment.ErrInvalidSignature),
			expectedStatus: http.StatusBadRequest,
			expectedBody:   fmt.Sprintf(`{"error":%q}`, payment.ErrInvalidSignature.Error()),
		},
		{
			name:           "secret not configured",
			err:            checkout.ErrWebhookNotConfigured,
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"error":"webhook secret not configured"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			s.checkout.On("HandleWebhook", mock.Anything, []byte(payload), "t=1,v1=abc").Return(tt.err).Once()

			rr := s.do(http.MethodPost, "/api/checkout/webhook", payload, map[string]string{"Stripe-Signature": "t=1,v1=abc"})

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.JSONEq(t, tt.expectedBody, rr.Body.String())
			s.assertExpectations(t)
		})
	}
}

func TestCheckoutHandler_PaymentIntent(t *testing.T) {
	s := newTestServer(t, nil)
	want := &checkout.Result{ClientSecret: "pi_1_secret", PaymentIntentID: "pi_1", TotalCents: 5400}
	s.checkout.On("CreateOrUpdatePaymentIntent", mock.Anything, checkout.Input{AnonymousID: "anon-9"}).Return(want, nil).Once()

	rr := s.do(http.MethodPost, "/api/checkout/payment-intent", `{"anonymous_id":"anon-9"}`, nil)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var got checkout.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	if diff := cmp.Diff(*want, got); diff != "" {
		t.Errorf("payment intent response mismatch (-want +got):\n%s", diff)
	}
	s.assertExpectations(t)
}

func TestCheckoutHandler_PaymentIntent_EmptyCart(t *testing.T) {
	s := newTestServer(t, nil)
	s.checkout.On("CreateOrUpdatePaymentIntent", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("service: %w", checkout.ErrCartEmpty)).Once()

	rr := s.do(http.MethodPost, "/api/checkout/payment-intent", `{"anonymous_id":"anon-9"}`, nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "cart is empty", decodeError(t, rr))
}

func TestAccountHandler(t *testing.T) {
	userID := uuid.Must(uuid.NewV4())
	token := signToken(t, userID, testJWTSecret)

	t.Run("requires a token", func(t *testing.T) {
		s := newTestServer(t, nil)

		rr := s.do(http.MethodGet, "/api/account/profile", "", nil)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("rejects a three letter country", func(t *testing.T) {
		s := newTestServer(t, nil)

		rr := s.do(http.MethodPut, "/api/account/profile", `{"default_shipping_country":"USA"}`, bearer(token))

		require.Equal(t, http.StatusBadRequest, rr.Code)
		var got storefrontHTTP.ValidationErrorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, "must be exactly 2 characters", got.Details["default_shipping_country"])
		s.assertExpectations(t)
	})

	t.Run("updates the profile", func(t *testing.T) {
		s := newTestServer(t, nil)
		in := account.ProfileInput{FullName: "Ada Lovelace", DefaultShippingCountry: "GB"}
		s.account.On("UpdateProfile", mock.Anything, userID, in).
			Return(&account.Profile{FullName: "Ada Lovelace"}, nil).Once()

		rr := s.do(http.MethodPut, "/api/account/profile", `{"full_name":"Ada Lovelace","default_shipping_country":"GB"}`, bearer(token))

		assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		s.assertExpectations(t)
	})

	t.Run("wishlist add of unknown product", func(t *testing.T) {
		s := newTestServer(t, nil)
		productID := uuid.Must(uuid.NewV4())
		s.account.On("AddToWishlist", mock.Anything, userID, productID).Return(catalog.ErrProductNotFound).Once()

		rr := s.do(http.MethodPost, "/api/account/wishlist", fmt.Sprintf(`{"product_id":%q}`, productID), bearer(token))

		assert.Equal(t, http.StatusNotFound, rr.Code)
		s.assertExpectations(t)
	})

	t.Run("wishlist remove", func(t *testing.T) {
		s := newTestServer(t, nil)
		productID := uuid.Must(uuid.NewV4())
		s.account.On("RemoveFromWishlist", mock.Anything, userID, productID).Return(nil).Once()

		rr := s.do(http.MethodDelete, "/api/account/wishlist/"+productID.String(), "", bearer(token))

		assert.Equal(t, http.StatusNoContent, rr.Code)
		s.assertExpectations(t)
	})
}

func TestAdminHandler_RequiresSecret(t *testing.T) {
	tests := []struct {
		name           string
		headers        map[string]string
		expectedStatus int
	}{
		{name: "no secret", expectedStatus: http.StatusUnauthorized},
		{name: "wrong secret", headers: map[string]string{"X-Admin-Secret": "nope"}, expectedStatus: http.StatusUnauthorized},
		{name: "header secret", headers: map[string]string{"X-Admin-Secret": testAdminSecret}, expectedStatus: http.StatusOK},
		{name: "bearer secret", headers: bearer(testAdminSecret), expectedStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			if tt.expectedStatus == http.StatusOK {
				s.dashboard.On("Dashboard", mock.Anything).Return(&admin.Dashboard{TotalRevenueCents: 4200}, nil).Once()
			}

			rr := s.do(http.MethodGet, "/api/admin/dashboard", "", tt.headers)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			s.assertExpectations(t)
		})
	}
}

func TestAdminHandler_UpdateVariantStock(t *testing.T) {
	adminHeaders := map[string]string{"X-Admin-Secret": testAdminSecret}
	variantID := uuid.Must(uuid.NewV4())

	t.Run("null means unlimited", func(t *testing.T) {
		s := newTestServer(t, nil)
		s.adminStore.On("UpdateVariantStock", mock.Anything, variantID, json.RawMessage("null")).
			Return(&catalog.Variant{ID: variantID}, nil).Once()

		rr := s.do(http.MethodPatch, "/api/admin/variants/"+variantID.String()+"/stock", `{"stock":null}`, adminHeaders)

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Contains(t, rr.Body.String(), `"stock":null`)
		s.assertExpectations(t)
	})

	t.Run("invalid stock", func(t *testing.T) {
		s := newTestServer(t, nil)
		s.adminStore.On("UpdateVariantStock", mock.Anything, variantID, json.RawMessage(`"lots"`)).
			Return(nil, catalog.ErrInvalidStock).Once()

		rr := s.do(http.MethodPatch, "/api/admin/variants/"+variantID.String()+"/stock", `{"stock":"lots"}`, adminHeaders)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, catalog.ErrInvalidStock.Error(), decodeError(t, rr))
		s.assertExpectations(t)
	})
}

func TestAdminHandler_DeleteImage(t *testing.T) {
	s := newTestServer(t, nil)
	imageID := uuid.Must(uuid.NewV4())
	s.adminStore.On("DeleteImage", mock.Anything, imageID).Return(catalog.ErrImageNotFound).Once()

	rr := s.do(http.MethodDelete, "/api/admin/images/"+imageID.String(), "", map[string]string{"X-Admin-Secret": testAdminSecret})

	assert.Equal(t, http.StatusNotFound, rr.Code)
	s.assertExpectations(t)
}

func TestRateLimiter_RejectsBurst(t *testing.T) {
	s := newTestServer(t, storefrontHTTP.NewRateLimiter(0.001, 2))
	s.cart.On("AddItem", mock.Anything, mock.Anything, mock.Anything).Return(&cart.Item{}, nil).Twice()
	body := fmt.Sprintf(`{"variant_id":%q,"quantity":1,"anonymous_id":"anon-1"}`, uuid.Must(uuid.NewV4()))

	for i := 0; i < 2; i++ {
		rr := s.do(http.MethodPost, "/api/products/cart-items", body, nil)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}
	rr := s.do(http.MethodPost, "/api/products/cart-items", body, nil)

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))

	// reads are not limited
	s.catalog.On("ListCategories", mock.Anything).Return([]catalog.Category{}, nil).Once()
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/products/categories", "", nil).Code)
	s.assertExpectations(t)
}
