package model

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusRefunded   OrderStatus = "REFUNDED"
)

// OrderPaymentStatus mirrors the settlement state of the order's payment.
// The Payment aggregate is the source of truth; the order field is
// bookkeeping updated by the orchestrating service.
type OrderPaymentStatus string

const (
	OrderPaymentPending           OrderPaymentStatus = "PENDING"
	OrderPaymentPaid              OrderPaymentStatus = "PAID"
	OrderPaymentFailed            OrderPaymentStatus = "FAILED"
	OrderPaymentRefunded          OrderPaymentStatus = "REFUNDED"
	OrderPaymentPartiallyRefunded OrderPaymentStatus = "PARTIALLY_REFUNDED"
)

// OrderItem is a price/name snapshot taken at order creation. It never
// changes when the underlying product does.
type OrderItem struct {
	ProductID  string  `json:"productId" db:"product_id"`
	Name       string  `json:"name" db:"name"`
	Quantity   int     `json:"quantity" db:"quantity"`
	UnitPrice  float64 `json:"unitPrice" db:"unit_price"`
	TotalPrice float64 `json:"totalPrice" db:"total_price"`
}

// OrderTotals carries the externally computed monetary breakdown of an
// order. The order stores these verbatim and never re-derives them.
type OrderTotals struct {
	Subtotal       float64 `json:"subtotal"`
	ShippingFee    float64 `json:"shippingFee"`
	TaxAmount      float64 `json:"taxAmount"`
	DiscountAmount float64 `json:"discountAmount"`
	TotalAmount    float64 `json:"totalAmount"`
}

// Order is the order of record. Like Cart it is an immutable value:
// transitions return a new Order.
type Order struct {
	ID             uuid.UUID          `json:"id"`
	UserID         uuid.UUID          `json:"userId"`
	CartID         uuid.UUID          `json:"cartId"`
	OrderNumber    string             `json:"orderNumber"`
	Items          []OrderItem        `json:"items"`
	Subtotal       float64            `json:"subtotal"`
	ShippingFee    float64            `json:"shippingFee"`
	TaxAmount      float64            `json:"taxAmount"`
	DiscountAmount float64            `json:"discountAmount"`
	TotalAmount    float64            `json:"totalAmount"`
	Currency       string             `json:"currency"`
	Status         OrderStatus        `json:"status"`
	PaymentStatus  OrderPaymentStatus `json:"paymentStatus"`
	TransactionID  string             `json:"transactionId,omitempty"`
	Notes          string             `json:"notes,omitempty"`
	Version        int                `json:"version"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// NewOrderNumber generates a unique human-facing order number.
func NewOrderNumber() string {
	return fmt.Sprintf("ORD-%d-%06d", time.Now().UnixMilli(), rand.IntN(1000000))
}

// NewOrder snapshots a checked-out cart into a PENDING order with the
// supplied totals.
func NewOrder(cart Cart, totals OrderTotals, notes string) (Order, error) {
	if len(cart.Items) == 0 {
		return Order{}, ErrCartEmpty
	}
	if totals.TotalAmount < 0 {
		return Order{}, NewValidationError("order total cannot be negative")
	}
	if totals.Subtotal < 0 || totals.ShippingFee < 0 || totals.TaxAmount < 0 || totals.DiscountAmount < 0 {
		return Order{}, NewValidationError("order totals cannot be negative")
	}

	items := make([]OrderItem, len(cart.Items))
	for i, line := range cart.Items {
		items[i] = OrderItem{
			ProductID:  line.ProductID,
			Name:       line.Name,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
			TotalPrice: line.Subtotal(),
		}
	}

	now := time.Now()
	return Order{
		ID:             uuid.New(),
		UserID:         cart.UserID,
		CartID:         cart.ID,
		OrderNumber:    NewOrderNumber(),
		Items:          items,
		Subtotal:       totals.Subtotal,
		ShippingFee:    totals.ShippingFee,
		TaxAmount:      totals.TaxAmount,
		DiscountAmount: totals.DiscountAmount,
		TotalAmount:    totals.TotalAmount,
		Currency:       cart.Currency,
		Status:         OrderStatusPending,
		PaymentStatus:  OrderPaymentPending,
		Notes:          notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// CanTransitionTo reports whether the routine transition table permits
// moving to the target status. Cancel and InitiateRefund are deliberate
// escape hatches with their own guards and do not consult this table.
func (o Order) CanTransitionTo(target OrderStatus) bool {
	switch o.Status {
	case OrderStatusPending:
		return target == OrderStatusProcessing || target == OrderStatusCancelled
	case OrderStatusProcessing:
		return target == OrderStatusShipped || target == OrderStatusCancelled
	case OrderStatusShipped:
		return target == OrderStatusDelivered
	case OrderStatusDelivered:
		return target == OrderStatusRefunded
	default:
		// CANCELLED and REFUNDED are terminal.
		return false
	}
}

// UpdateStatus performs a routine, table-checked status transition.
func (o Order) UpdateStatus(target OrderStatus, notes string) (Order, error) {
	if !o.CanTransitionTo(target) {
		return o, NewInvalidTransition(string(o.Status), string(target))
	}
	o.Status = target
	o.appendNote(notes)
	o.UpdatedAt = time.Now()
	return o, nil
}

// UpdatePaymentStatus overwrites the payment bookkeeping fields. It is
// unconditional: the Payment aggregate already validated the change.
func (o Order) UpdatePaymentStatus(status OrderPaymentStatus, transactionID string) Order {
	o.PaymentStatus = status
	if transactionID != "" {
		o.TransactionID = transactionID
	}
	o.UpdatedAt = time.Now()
	return o
}

// MarkPaid records a successful settlement and, if the order is still
// PENDING, advances it to PROCESSING. Re-applying it on an order already
// past PENDING only refreshes the payment fields.
func (o Order) MarkPaid(transactionID string) Order {
	o.PaymentStatus = OrderPaymentPaid
	if transactionID != "" {
		o.TransactionID = transactionID
	}
	if o.Status == OrderStatusPending {
		o.Status = OrderStatusProcessing
	}
	o.UpdatedAt = time.Now()
	return o
}

// Cancel is the escape-hatch cancellation. It bypasses the routine table
// but refuses to touch delivered or already-terminal orders. If the
// order was paid, the payment bookkeeping flips to REFUNDED; the caller
// must refund the actual Payment in the same transaction.
func (o Order) Cancel(reason string) (Order, error) {
	switch o.Status {
	case OrderStatusDelivered:
		return o, NewDomainError(ErrCodeInvalidTransition, "cannot cancel delivered order")
	case OrderStatusCancelled:
		return o, NewDomainError(ErrCodeInvalidTransition, "order is already cancelled")
	case OrderStatusRefunded:
		return o, NewDomainError(ErrCodeInvalidTransition, "cannot cancel refunded order")
	}
	if o.PaymentStatus == OrderPaymentPaid {
		o.PaymentStatus = OrderPaymentRefunded
	}
	o.Status = OrderStatusCancelled
	o.appendNote(reason)
	o.UpdatedAt = time.Now()
	return o, nil
}

// InitiateRefund is the escape-hatch refund, guarded by IsRefundable
// rather than the routine table. The caller must refund the Payment
// aggregate in the same transaction.
func (o Order) InitiateRefund(reason string) (Order, error) {
	if !o.IsRefundable() {
		return o, NewDomainError(ErrCodeInvalidTransition, "order is not refundable")
	}
	o.Status = OrderStatusRefunded
	o.PaymentStatus = OrderPaymentRefunded
	o.appendNote(reason)
	o.UpdatedAt = time.Now()
	return o, nil
}

// IsCancellable reports whether the order is in a cancellable state.
func (o Order) IsCancellable() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusProcessing
}

// IsRefundable reports whether a refund may be initiated.
func (o Order) IsRefundable() bool {
	return o.PaymentStatus == OrderPaymentPaid &&
		o.Status != OrderStatusRefunded && o.Status != OrderStatusCancelled
}

// RefundAmount is the amount owed back on refund. Shipping is not
// refundable once the order has shipped.
func (o Order) RefundAmount() float64 {
	if o.Status == OrderStatusShipped || o.Status == OrderStatusDelivered {
		return RoundCents(o.Subtotal - o.DiscountAmount)
	}
	return o.TotalAmount
}

func (o *Order) appendNote(note string) {
	if note == "" {
		return
	}
	if o.Notes == "" {
		o.Notes = note
		return
	}
	o.Notes = strings.Join([]string{o.Notes, note}, "; ")
}
