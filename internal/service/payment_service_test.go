package service

import (
	"context"
	"encoding/json"
	"testing"

	"tradekart/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newPaymentServiceForTest(paymentRepo *MockPaymentRepository, orderRepo *MockOrderRepository, publisher *MockPublisher) PaymentService {
	return NewPaymentService(paymentRepo, orderRepo, publisher, zerolog.Nop())
}

func cardRequest(orderID uuid.UUID) *model.CreatePaymentRequest {
	return &model.CreatePaymentRequest{
		OrderID:  orderID,
		Method:   model.PaymentMethodCreditCard,
		Provider: "stripe",
		Card:     &model.CardDetails{Last4: "4242", Brand: "visa", ExpiryMonth: 12, ExpiryYear: 2030},
	}
}

func TestPaymentService_Create(t *testing.T) {
	ctx := context.Background()
	order := pendingOrder(t, uuid.New())

	mockPaymentRepo := new(MockPaymentRepository)
	mockOrderRepo := new(MockOrderRepository)
	mockPublisher := new(MockPublisher)

	mockOrderRepo.On("GetByID", ctx, order.ID).Return(order, nil)
	mockPaymentRepo.On("HasSuccessfulForOrder", ctx, order.ID).Return(false, nil)
	mockPaymentRepo.On("Create", ctx, nil, mock.MatchedBy(func(p model.Payment) bool {
		return p.OrderID == order.ID && p.Amount == order.TotalAmount && p.Status == model.PaymentStatusPending
	})).Return(nil)
	mockPublisher.On("Publish", ctx, "payment.created", mock.AnythingOfType("string"), mock.Anything).Return(nil)

	svc := newPaymentServiceForTest(mockPaymentRepo, mockOrderRepo, mockPublisher)
	payment, err := svc.Create(ctx, cardRequest(order.ID))

	require.NoError(t, err)
	require.NotNil(t, payment)

	// The amount comes from the order, never from the caller.
	assert.Equal(t, order.TotalAmount, payment.Amount)
	assert.Equal(t, model.PaymentStatusPending, payment.Status)
	mockPaymentRepo.AssertExpectations(t)
}

func TestPaymentService_Create_RejectsSecondSuccessfulPayment(t *testing.T) {
	ctx := context.Background()
	order := pendingOrder(t, uuid.New())

	mockPaymentRepo := new(MockPaymentRepository)
	mockOrderRepo := new(MockOrderRepository)

	mockOrderRepo.On("GetByID", ctx, order.ID).Return(order, nil)
	mockPaymentRepo.On("HasSuccessfulForOrder", ctx, order.ID).Return(true, nil)

	svc := newPaymentServiceForTest(mockPaymentRepo, mockOrderRepo, new(MockPublisher))
	payment, err := svc.Create(ctx, cardRequest(order.ID))

	require.ErrorIs(t, err, model.ErrDuplicatePayment)
	assert.Nil(t, payment)
	mockPaymentRepo.AssertNotCalled(t, "Create")
}

func TestPaymentService_MarkPaid_AdvancesOrder(t *testing.T) {
	ctx := context.Background()
	order := pendingOrder(t, uuid.New())
	payment, err := model.NewPayment(order.ID, order.UserID, order.TotalAmount, order.Currency,
		model.PaymentMethodCreditCard, "stripe",
		&model.CardDetails{Last4: "4242", Brand: "visa", ExpiryMonth: 12, ExpiryYear: 2030}, nil)
	require.NoError(t, err)

	mockPaymentRepo := new(MockPaymentRepository)
	mockOrderRepo := new(MockOrderRepository)
	mockPublisher := new(MockPublisher)
	mockTx := new(MockTx)

	mockPaymentRepo.On("GetByID", ctx, payment.ID).Return(&payment, nil)
	mockOrderRepo.On("GetByID", ctx, order.ID).Return(order, nil)
	mockPaymentRepo.On("BeginTx", ctx).Return(mockTx, nil)
	mockPaymentRepo.On("Update", ctx, mockTx, mock.MatchedBy(func(p model.Payment) bool {
		return p.Status == model.PaymentStatusPaid && p.TransactionID == "txn_1" && p.PaidAt != nil
	})).Return(nil)
	mockOrderRepo.On("Update", ctx, mockTx, mock.MatchedBy(func(o model.Order) bool {
		return o.Status == model.OrderStatusProcessing &&
			o.PaymentStatus == model.OrderPaymentPaid &&
			o.TransactionID == "txn_1"
	})).Return(nil)
	mockTx.On("Commit", ctx).Return(nil)
	mockPublisher.On("Publish", ctx, "payment.paid", mock.AnythingOfType("string"), mock.Anything).Return(nil)
	mockPublisher.On("Publish", ctx, "order.paid", mock.AnythingOfType("string"), mock.Anything).Return(nil)

	svc := newPaymentServiceForTest(mockPaymentRepo, mockOrderRepo, mockPublisher)
	paid, err := svc.MarkPaid(ctx, payment.ID, "txn_1", json.RawMessage(`{"id":"txn_1"}`))

	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, paid.Status)
	mockPaymentRepo.AssertExpectations(t)
	mockOrderRepo.AssertExpectations(t)
	mockTx.AssertExpectations(t)
}

func TestPaymentService_MarkPaid_SecondSettlementFailsLoudly(t *testing.T) {
	ctx := context.Background()
	order := pendingOrder(t, uuid.New())
	payment := paidPayment(t, order)

	mockPaymentRepo := new(MockPaymentRepository)
	mockOrderRepo := new(MockOrderRepository)
	mockPaymentRepo.On("GetByID", ctx, payment.ID).Return(payment, nil)

	svc := newPaymentServiceForTest(mockPaymentRepo, mockOrderRepo, new(MockPublisher))
	paid, err := svc.MarkPaid(ctx, payment.ID, "txn_1", nil)

	require.Error(t, err)
	assert.Equal(t, model.ErrCodeInvalidTransition, model.ErrorCode(err))
	assert.Nil(t, paid)
	mockPaymentRepo.AssertNotCalled(t, "Update")
	mockOrderRepo.AssertNotCalled(t, "Update")
}

func TestPaymentService_MarkFailed(t *testing.T) {
	ctx := context.Background()
	order := pendingOrder(t, uuid.New())
	payment, err := model.NewPayment(order.ID, order.UserID, order.TotalAmount, order.Currency,
		model.PaymentMethodCrypto, "coinbase", nil,
		&model.CryptoDetails{Asset: "BTC", Network: "bitcoin", WalletAddress: "bc1qtest"})
	require.NoError(t, err)

	mockPaymentRepo := new(MockPaymentRepository)
	mockOrderRepo := new(MockOrderRepository)
	mockPublisher := new(MockPublisher)
	mockTx := new(MockTx)

	mockPaymentRepo.On("GetByID", ctx, payment.ID).Return(&payment, nil)
	mockOrderRepo.On("GetByID", ctx, order.ID).Return(order, nil)
	mockPaymentRepo.On("BeginTx", ctx).Return(mockTx, nil)
	mockPaymentRepo.On("Update", ctx, mockTx, mock.MatchedBy(func(p model.Payment) bool {
		return p.Status == model.PaymentStatusFailed && p.FailureReason == "card declined"
	})).Return(nil)
	mockOrderRepo.On("Update", ctx, mockTx, mock.MatchedBy(func(o model.Order) bool {
		return o.PaymentStatus == model.OrderPaymentFailed && o.Status == model.OrderStatusPending
	})).Return(nil)
	mockTx.On("Commit", ctx).Return(nil)
	mockPublisher.On("Publish", ctx, "payment.failed", mock.AnythingOfType("string"), mock.Anything).Return(nil)

	svc := newPaymentServiceForTest(mockPaymentRepo, mockOrderRepo, mockPublisher)
	failed, err := svc.MarkFailed(ctx, payment.ID, "card declined", nil)

	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusFailed, failed.Status)
	mockTx.AssertExpectations(t)
}

func TestPaymentService_Refund_FullRefundMovesDeliveredOrder(t *testing.T) {
	ctx := context.Background()
	order := pendingOrder(t, uuid.New())
	delivered := order.MarkPaid("txn_1")
	delivered.Status = model.OrderStatusDelivered
	payment := paidPayment(t, order)

	mockPaymentRepo := new(MockPaymentRepository)
	mockOrderRepo := new(MockOrderRepository)
	mockPublisher := new(MockPublisher)
	mockTx := new(MockTx)

	mockPaymentRepo.On("GetByID", ctx, payment.ID).Return(payment, nil)
	mockOrderRepo.On("GetByID", ctx, order.ID).Return(&delivered, nil)
	mockPaymentRepo.On("BeginTx", ctx).Return(mockTx, nil)
	mockPaymentRepo.On("Update", ctx, mockTx, mock.MatchedBy(func(p model.Payment) bool {
		return p.Status == model.PaymentStatusRefunded && p.RefundedAmount == p.Amount
	})).Return(nil)
	mockOrderRepo.On("Update", ctx, mockTx, mock.MatchedBy(func(o model.Order) bool {
		return o.Status == model.OrderStatusRefunded && o.PaymentStatus == model.OrderPaymentRefunded
	})).Return(nil)
	mockTx.On("Commit", ctx).Return(nil)
	mockPublisher.On("Publish", ctx, "payment.refunded", mock.AnythingOfType("string"), mock.Anything).Return(nil)
	mockPublisher.On("Publish", ctx, "order.refunded", mock.AnythingOfType("string"), mock.Anything).Return(nil)

	svc := newPaymentServiceForTest(mockPaymentRepo, mockOrderRepo, mockPublisher)
	refunded, err := svc.Refund(ctx, payment.ID, &model.RefundRequest{Reason: "damaged"})

	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusRefunded, refunded.Status)
	assert.Equal(t, payment.Amount, refunded.RefundedAmount)
	mockTx.AssertExpectations(t)
}

func TestPaymentService_Refund_PartialKeepsOrderStatus(t *testing.T) {
	ctx := context.Background()
	order := pendingOrder(t, uuid.New())
	paid := order.MarkPaid("txn_1")
	payment := paidPayment(t, order)

	mockPaymentRepo := new(MockPaymentRepository)
	mockOrderRepo := new(MockOrderRepository)
	mockPublisher := new(MockPublisher)
	mockTx := new(MockTx)

	mockPaymentRepo.On("GetByID", ctx, payment.ID).Return(payment, nil)
	mockOrderRepo.On("GetByID", ctx, order.ID).Return(&paid, nil)
	mockPaymentRepo.On("BeginTx", ctx).Return(mockTx, nil)
	mockPaymentRepo.On("Update", ctx, mockTx, mock.MatchedBy(func(p model.Payment) bool {
		return p.Status == model.PaymentStatusPartiallyRefunded && p.RefundedAmount == 10.00
	})).Return(nil)
	mockOrderRepo.On("Update", ctx, mockTx, mock.MatchedBy(func(o model.Order) bool {
		return o.Status == model.OrderStatusProcessing &&
			o.PaymentStatus == model.OrderPaymentPartiallyRefunded
	})).Return(nil)
	mockTx.On("Commit", ctx).Return(nil)
	mockPublisher.On("Publish", ctx, "payment.refunded", mock.AnythingOfType("string"), mock.Anything).Return(nil)

	svc := newPaymentServiceForTest(mockPaymentRepo, mockOrderRepo, mockPublisher)
	refunded, err := svc.Refund(ctx, payment.ID, &model.RefundRequest{Amount: 10.00})

	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPartiallyRefunded, refunded.Status)
	mockPublisher.AssertNotCalled(t, "Publish", ctx, "order.refunded", mock.Anything, mock.Anything)
}

func TestPaymentService_HandleWebhook_Settlement(t *testing.T) {
	ctx := context.Background()
	order := pendingOrder(t, uuid.New())
	payment, err := model.NewPayment(order.ID, order.UserID, order.TotalAmount, order.Currency,
		model.PaymentMethodCreditCard, "stripe",
		&model.CardDetails{Last4: "4242", Brand: "visa", ExpiryMonth: 12, ExpiryYear: 2030}, nil)
	require.NoError(t, err)

	mockPaymentRepo := new(MockPaymentRepository)
	mockOrderRepo := new(MockOrderRepository)
	mockPublisher := new(MockPublisher)
	mockTx := new(MockTx)

	mockPaymentRepo.On("GetByTransactionID", ctx, "txn_hook").Return(&payment, nil)
	mockPaymentRepo.On("GetByID", ctx, payment.ID).Return(&payment, nil)
	mockOrderRepo.On("GetByID", ctx, order.ID).Return(order, nil)
	mockPaymentRepo.On("BeginTx", ctx).Return(mockTx, nil)
	mockPaymentRepo.On("Update", ctx, mockTx, mock.AnythingOfType("model.Payment")).Return(nil)
	mockOrderRepo.On("Update", ctx, mockTx, mock.AnythingOfType("model.Order")).Return(nil)
	mockTx.On("Commit", ctx).Return(nil)
	mockPublisher.On("Publish", ctx, mock.AnythingOfType("string"), mock.AnythingOfType("string"), mock.Anything).Return(nil)

	svc := newPaymentServiceForTest(mockPaymentRepo, mockOrderRepo, mockPublisher)
	paid, err := svc.HandleWebhook(ctx, &model.WebhookEvent{
		EventType: "payment.succeeded",
		Data:      json.RawMessage(`{"id":"txn_hook"}`),
	})

	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, paid.Status)
	assert.Equal(t, "txn_hook", paid.TransactionID)
}

func TestPaymentService_HandleWebhook_DuplicateDeliveryFails(t *testing.T) {
	ctx := context.Background()
	order := pendingOrder(t, uuid.New())
	payment := paidPayment(t, order)

	mockPaymentRepo := new(MockPaymentRepository)
	mockPaymentRepo.On("GetByTransactionID", ctx, "txn_1").Return(payment, nil)
	mockPaymentRepo.On("GetByID", ctx, payment.ID).Return(payment, nil)

	svc := newPaymentServiceForTest(mockPaymentRepo, new(MockOrderRepository), new(MockPublisher))
	_, err := svc.HandleWebhook(ctx, &model.WebhookEvent{
		EventType: "payment.succeeded",
		Data:      json.RawMessage(`{"id":"txn_1"}`),
	})

	require.Error(t, err)
	assert.Equal(t, model.ErrCodeInvalidTransition, model.ErrorCode(err))
	mockPaymentRepo.AssertNotCalled(t, "Update")
}

func TestPaymentService_HandleWebhook_FailureEvent(t *testing.T) {
	ctx := context.Background()
	order := pendingOrder(t, uuid.New())
	payment, err := model.NewPayment(order.ID, order.UserID, order.TotalAmount, order.Currency,
		model.PaymentMethodCreditCard, "stripe",
		&model.CardDetails{Last4: "4242", Brand: "visa", ExpiryMonth: 12, ExpiryYear: 2030}, nil)
	require.NoError(t, err)

	mockPaymentRepo := new(MockPaymentRepository)
	mockOrderRepo := new(MockOrderRepository)
	mockPublisher := new(MockPublisher)
	mockTx := new(MockTx)

	mockPaymentRepo.On("GetByTransactionID", ctx, "txn_f").Return(&payment, nil)
	mockPaymentRepo.On("GetByID", ctx, payment.ID).Return(&payment, nil)
	mockOrderRepo.On("GetByID", ctx, order.ID).Return(order, nil)
	mockPaymentRepo.On("BeginTx", ctx).Return(mockTx, nil)
	mockPaymentRepo.On("Update", ctx, mockTx, mock.MatchedBy(func(p model.Payment) bool {
		return p.Status == model.PaymentStatusFailed
	})).Return(nil)
	mockOrderRepo.On("Update", ctx, mockTx, mock.AnythingOfType("model.Order")).Return(nil)
	mockTx.On("Commit", ctx).Return(nil)
	mockPublisher.On("Publish", ctx, "payment.failed", mock.AnythingOfType("string"), mock.Anything).Return(nil)

	svc := newPaymentServiceForTest(mockPaymentRepo, mockOrderRepo, mockPublisher)
	failed, err := svc.HandleWebhook(ctx, &model.WebhookEvent{
		EventType: "payment.failed",
		Data:      json.RawMessage(`{"id":"txn_f"}`),
	})

	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusFailed, failed.Status)
}

func TestPaymentService_HandleWebhook_MissingTransactionID(t *testing.T) {
	ctx := context.Background()

	svc := newPaymentServiceForTest(new(MockPaymentRepository), new(MockOrderRepository), new(MockPublisher))
	_, err := svc.HandleWebhook(ctx, &model.WebhookEvent{
		EventType: "payment.succeeded",
		Data:      json.RawMessage(`{"amount":100}`),
	})

	require.Error(t, err)
	assert.Equal(t, model.ErrCodeValidation, model.ErrorCode(err))
}
