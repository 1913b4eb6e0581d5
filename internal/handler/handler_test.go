package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tradekart/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCartService is a mock implementation of CartService.
type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) GetOrCreate(ctx context.Context, userID uuid.UUID, currency string) (*model.Cart, error) {
	args := m.Called(ctx, userID, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Cart), args.Error(1)
}

func (m *MockCartService) AddItem(ctx context.Context, userID uuid.UUID, req *model.AddItemRequest) (*model.Cart, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Cart), args.Error(1)
}

func (m *MockCartService) UpdateItemQuantity(ctx context.Context, userID uuid.UUID, productID string, quantity int) (*model.Cart, error) {
	args := m.Called(ctx, userID, productID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Cart), args.Error(1)
}

func (m *MockCartService) RemoveItem(ctx context.Context, userID uuid.UUID, productID string) (*model.Cart, error) {
	args := m.Called(ctx, userID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Cart), args.Error(1)
}

func (m *MockCartService) ApplyDiscount(ctx context.Context, userID uuid.UUID, amount float64) (*model.Cart, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Cart), args.Error(1)
}

func (m *MockCartService) Clear(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Cart), args.Error(1)
}

func (m *MockCartService) SweepExpired(ctx context.Context, limit int) (int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Error(1)
}

// MockOrderService is a mock implementation of OrderService.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) Checkout(ctx context.Context, userID uuid.UUID, req *model.CheckoutRequest) (*model.Order, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Order, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderService) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, notes string) (*model.Order, error) {
	args := m.Called(ctx, id, status, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.Order, error) {
	args := m.Called(ctx, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) Stats(ctx context.Context, since time.Time) (map[model.OrderStatus]int, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[model.OrderStatus]int), args.Error(1)
}

// MockPaymentService is a mock implementation of PaymentService.
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) Create(ctx context.Context, req *model.CreatePaymentRequest) (*model.Payment, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentService) GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentService) MarkProcessing(ctx context.Context, id uuid.UUID, transactionID string) (*model.Payment, error) {
	args := m.Called(ctx, id, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentService) MarkPaid(ctx context.Context, id uuid.UUID, transactionID string, providerResponse json.RawMessage) (*model.Payment, error) {
	args := m.Called(ctx, id, transactionID, providerResponse)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentService) MarkFailed(ctx context.Context, id uuid.UUID, reason string, providerResponse json.RawMessage) (*model.Payment, error) {
	args := m.Called(ctx, id, reason, providerResponse)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentService) Refund(ctx context.Context, id uuid.UUID, req *model.RefundRequest) (*model.Payment, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentService) HandleWebhook(ctx context.Context, evt *model.WebhookEvent) (*model.Payment, error) {
	args := m.Called(ctx, evt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func TestCartHandler_Get(t *testing.T) {
	logger := zerolog.Nop()
	userID := uuid.New()
	cart := model.NewCart(userID, "USD")

	tests := []struct {
		name           string
		userHeader     string
		mockReturn     *model.Cart
		mockError      error
		expectedStatus int
		expectService  bool
	}{
		{
			name:           "Success",
			userHeader:     userID.String(),
			mockReturn:     &cart,
			expectedStatus: http.StatusOK,
			expectService:  true,
		},
		{
			name:           "Missing user header",
			userHeader:     "",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Invalid user header",
			userHeader:     "not-a-uuid",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockCartService)
			if tt.expectService {
				mockService.On("GetOrCreate", mock.Anything, userID, "USD").
					Return(tt.mockReturn, tt.mockError)
			}

			h := NewCartHandler(mockService, logger)
			req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
			if tt.userHeader != "" {
				req.Header.Set("X-User-ID", tt.userHeader)
			}
			rec := httptest.NewRecorder()

			h.Get(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestCartHandler_AddItem_DomainErrorMapping(t *testing.T) {
	logger := zerolog.Nop()
	userID := uuid.New()

	tests := []struct {
		name           string
		mockError      error
		expectedStatus int
	}{
		{"capacity exceeded", model.ErrTooManyCartItems, http.StatusBadRequest},
		{"quantity limit", model.ErrQuantityLimitExceeded, http.StatusBadRequest},
		{"cart not active", model.ErrCartNotActive, http.StatusConflict},
		{"cart not found", model.ErrCartNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockCartService)
			mockService.On("AddItem", mock.Anything, userID, mock.Anything).
				Return(nil, tt.mockError)

			h := NewCartHandler(mockService, logger)
			body, _ := json.Marshal(model.AddItemRequest{ProductID: "p1", Quantity: 1, UnitPrice: 10})
			req := httptest.NewRequest(http.MethodPost, "/api/cart/items", bytes.NewReader(body))
			req.Header.Set("X-User-ID", userID.String())
			rec := httptest.NewRecorder()

			h.AddItem(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, model.ErrorCode(tt.mockError), resp.Code)
		})
	}
}

func TestOrderHandler_Cancel(t *testing.T) {
	logger := zerolog.Nop()
	orderID := uuid.New()
	cancelled := model.Order{ID: orderID, Status: model.OrderStatusCancelled}

	mockService := new(MockOrderService)
	mockService.On("Cancel", mock.Anything, orderID, "changed mind").Return(&cancelled, nil)

	h := NewOrderHandler(mockService, logger)
	r := chi.NewRouter()
	r.Post("/api/orders/{id}/cancel", h.Cancel)

	body, _ := json.Marshal(model.CancelOrderRequest{Reason: "changed mind"})
	req := httptest.NewRequest(http.MethodPost, "/api/orders/"+orderID.String()+"/cancel", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	mockService.AssertExpectations(t)
}

func TestOrderHandler_UpdateStatus_InvalidTransitionConflicts(t *testing.T) {
	logger := zerolog.Nop()
	orderID := uuid.New()

	mockService := new(MockOrderService)
	mockService.On("UpdateStatus", mock.Anything, orderID, model.OrderStatusDelivered, "").
		Return(nil, model.NewInvalidTransition("PENDING", "DELIVERED"))

	h := NewOrderHandler(mockService, logger)
	r := chi.NewRouter()
	r.Put("/api/orders/{id}/status", h.UpdateStatus)

	body, _ := json.Marshal(model.UpdateOrderStatusRequest{Status: model.OrderStatusDelivered})
	req := httptest.NewRequest(http.MethodPut, "/api/orders/"+orderID.String()+"/status", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPaymentHandler_Create_DuplicateConflicts(t *testing.T) {
	logger := zerolog.Nop()

	mockService := new(MockPaymentService)
	mockService.On("Create", mock.Anything, mock.Anything).Return(nil, model.ErrDuplicatePayment)

	h := NewPaymentHandler(mockService, logger)
	body, _ := json.Marshal(model.CreatePaymentRequest{OrderID: uuid.New(), Method: model.PaymentMethodCreditCard})
	req := httptest.NewRequest(http.MethodPost, "/api/payments", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPaymentHandler_Webhook(t *testing.T) {
	logger := zerolog.Nop()
	payment := model.Payment{ID: uuid.New(), Status: model.PaymentStatusPaid}

	mockService := new(MockPaymentService)
	mockService.On("HandleWebhook", mock.Anything, mock.MatchedBy(func(evt *model.WebhookEvent) bool {
		return evt.EventType == "payment.succeeded"
	})).Return(&payment, nil)

	h := NewPaymentHandler(mockService, logger)
	body := []byte(`{"eventType":"payment.succeeded","data":{"id":"txn_1"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Webhook(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	mockService.AssertExpectations(t)
}
