package service

import (
	"context"
	"encoding/json"
	"time"

	"tradekart/internal/model"

	"github.com/google/uuid"
)

// CartService defines operations on the caller's active cart.
type CartService interface {
	// GetOrCreate returns the user's active cart, creating one on first
	// access and clearing-and-renewing an expired one.
	GetOrCreate(ctx context.Context, userID uuid.UUID, currency string) (*model.Cart, error)

	// AddItem adds or merges a product line.
	AddItem(ctx context.Context, userID uuid.UUID, req *model.AddItemRequest) (*model.Cart, error)

	// UpdateItemQuantity replaces a line's quantity; zero removes it.
	UpdateItemQuantity(ctx context.Context, userID uuid.UUID, productID string, quantity int) (*model.Cart, error)

	// RemoveItem drops a product line.
	RemoveItem(ctx context.Context, userID uuid.UUID, productID string) (*model.Cart, error)

	// ApplyDiscount sets the cart-level discount.
	ApplyDiscount(ctx context.Context, userID uuid.UUID, amount float64) (*model.Cart, error)

	// Clear empties the cart.
	Clear(ctx context.Context, userID uuid.UUID) (*model.Cart, error)

	// SweepExpired clears expired ACTIVE carts and returns how many were
	// swept.
	SweepExpired(ctx context.Context, limit int) (int, error)
}

// OrderService defines order lifecycle operations.
type OrderService interface {
	// Checkout converts the user's active cart into a PENDING order in a
	// single transaction and gives the user a fresh cart.
	Checkout(ctx context.Context, userID uuid.UUID, req *model.CheckoutRequest) (*model.Order, error)

	// GetByID retrieves an order with its items.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// ListByUser retrieves a user's orders, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Order, error)

	// UpdateStatus performs a routine, table-checked transition.
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, notes string) (*model.Order, error)

	// Cancel cancels the order and refunds its payment in one
	// transaction.
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.Order, error)

	// Stats aggregates order counts per status since the given instant.
	Stats(ctx context.Context, since time.Time) (map[model.OrderStatus]int, error)
}

// PaymentService defines payment lifecycle operations, including the
// gateway webhook seam and the simulation entry points used by
// integration tests.
type PaymentService interface {
	// Create creates a payment attempt for an order. Rejected if the
	// order already has a successful payment.
	Create(ctx context.Context, req *model.CreatePaymentRequest) (*model.Payment, error)

	// GetByID retrieves a payment.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)

	// MarkProcessing records that the provider accepted the payment.
	MarkProcessing(ctx context.Context, id uuid.UUID, transactionID string) (*model.Payment, error)

	// MarkPaid settles the payment and advances the order in one
	// transaction.
	MarkPaid(ctx context.Context, id uuid.UUID, transactionID string, providerResponse json.RawMessage) (*model.Payment, error)

	// MarkFailed fails the payment and records the failure on the order
	// in one transaction.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, providerResponse json.RawMessage) (*model.Payment, error)

	// Refund refunds part or all of the payment and syncs the order's
	// payment bookkeeping in one transaction.
	Refund(ctx context.Context, id uuid.UUID, req *model.RefundRequest) (*model.Payment, error)

	// HandleWebhook processes a gateway event by transaction id.
	HandleWebhook(ctx context.Context, evt *model.WebhookEvent) (*model.Payment, error)
}
