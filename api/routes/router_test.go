package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/enamelgeorgia/storefront/internal/cart"
	"github.com/enamelgeorgia/storefront/internal/orders"
	"github.com/enamelgeorgia/storefront/internal/payments"
	pkgauth "github.com/enamelgeorgia/storefront/pkg/auth"
	"github.com/enamelgeorgia/storefront/pkg/config"
	"github.com/enamelgeorgia/storefront/pkg/db/models"
	"github.com/enamelgeorgia/storefront/pkg/enums"
	"github.com/enamelgeorgia/storefront/pkg/logger"
	"github.com/enamelgeorgia/storefront/pkg/pagination"
	"github.com/enamelgeorgia/storefront/pkg/redis"
	"github.com/enamelgeorgia/storefront/pkg/stripe"
	"github.com/enamelgeorgia/storefront/pkg/types"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubCartService struct{}

func (stubCartService) GetCart(context.Context, types.CallerContext) (*cart.View, error) {
	return &cart.View{}, nil
}

func (stubCartService) AddItem(context.Context, types.CallerContext, cart.AddItemInput) (*cart.View, error) {
	return &cart.View{}, nil
}

func (stubCartService) UpdateItem(context.Context, types.CallerContext, cart.UpdateItemInput) (*cart.View, error) {
	return &cart.View{}, nil
}

func (stubCartService) RemoveItem(context.Context, types.CallerContext, uuid.UUID) (*cart.View, error) {
	return &cart.View{}, nil
}

func (stubCartService) Clear(context.Context, types.CallerContext) error {
	return nil
}

func (stubCartService) TransferGuestCartToUser(context.Context, string, uuid.UUID) (*cart.TransferResult, error) {
	return &cart.TransferResult{}, nil
}

func (stubCartService) ValidateForCheckout(context.Context, types.CallerContext) (*cart.CheckoutValidation, error) {
	return &cart.CheckoutValidation{}, nil
}

func (stubCartService) ActiveCart(context.Context, types.CallerContext) (*models.Cart, error) {
	return &models.Cart{}, nil
}

func (stubCartService) ClearCartByID(context.Context, uuid.UUID) error {
	return nil
}

type stubOrdersService struct{}

func (stubOrdersService) Create(context.Context, types.CallerContext, orders.CreateInput) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) Get(context.Context, types.CallerContext, uuid.UUID) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) GetByNumber(context.Context, types.CallerContext, string) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) List(context.Context, types.CallerContext, orders.ListFilters) ([]models.Order, pagination.Result, error) {
	return nil, pagination.Result{}, nil
}

func (stubOrdersService) UpdateStatus(context.Context, types.CallerContext, uuid.UUID, orders.UpdateStatusInput) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) Cancel(context.Context, types.CallerContext, uuid.UUID) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) GetStats(context.Context, types.CallerContext) (*orders.Stats, error) {
	return &orders.Stats{}, nil
}

func (stubOrdersService) Transition(context.Context, uuid.UUID, enums.OrderStatus) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) BindPaymentIntent(context.Context, uuid.UUID, string) error {
	return nil
}

func (stubOrdersService) FindByPaymentIntent(context.Context, string) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) RecordNote(context.Context, uuid.UUID, string) error {
	return nil
}

func (stubOrdersService) RecordNoteOnce(context.Context, uuid.UUID, string, string) error {
	return nil
}

type stubPaymentsService struct{}

func (stubPaymentsService) CreateIntent(context.Context, types.CallerContext, payments.CreateIntentInput) (*payments.IntentView, error) {
	return &payments.IntentView{}, nil
}

func (stubPaymentsService) Confirm(context.Context, types.CallerContext, payments.ConfirmInput) (*payments.IntentView, error) {
	return &payments.IntentView{}, nil
}

func (stubPaymentsService) Status(context.Context, types.CallerContext, string) (*payments.IntentView, error) {
	return &payments.IntentView{}, nil
}

func (stubPaymentsService) Refund(context.Context, types.CallerContext, payments.RefundInput) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubPaymentsService) ListUserPayments(context.Context, types.CallerContext, pagination.Params) ([]payments.PaymentSummary, pagination.Result, error) {
	return nil, pagination.Result{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "enamel-test", ExpirationMinutes: 60},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		(*redis.Client)(nil),
		stubCartService{},
		stubOrdersService{},
		stubPaymentsService{},
		(*stripe.Client)(nil),
		nil,
		nil,
	)
}

func buildToken(t *testing.T, cfg *config.Config, role types.Role) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(testConfig())
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestCartGroupRequiresIdentity(t *testing.T) {
	router := newTestRouter(testConfig())

	anonymous := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, anonymous)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity got %d", resp.Code)
	}

	guest := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	guest.Header.Set("X-Session-Id", "guest-session")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, guest)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for guest session got %d", resp.Code)
	}
}

func TestOrdersGroupRequiresAuth(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	anonymous := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, anonymous)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}

	customer := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	customer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, types.RoleCustomer))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, customer)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with token got %d", resp.Code)
	}
}

func TestOrderStatsRequiresAdmin(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	customer := httptest.NewRequest(http.MethodGet, "/api/v1/orders/stats", nil)
	customer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, types.RoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, customer)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodGet, "/api/v1/orders/stats", nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, types.RoleAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", resp.Code)
	}
}

func TestOrderStatusUpdateRequiresAdmin(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/orders/"+uuid.NewString()+"/status", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, types.RoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer got %d", resp.Code)
	}
}

func TestPaymentsGroupRequiresAuth(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	anonymous := httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, anonymous)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}

	customer := httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil)
	customer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, types.RoleCustomer))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, customer)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with token got %d", resp.Code)
	}
}
