package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// AddItemRequest is the payload for adding a product line to the cart.
// Price and discount come from the pricing collaborator at the API edge.
type AddItemRequest struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Discount  float64 `json:"discount"`
	Name      string  `json:"name"`
	ImageURL  string  `json:"imageUrl,omitempty"`
}

// UpdateQuantityRequest replaces a cart line's quantity.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// ApplyDiscountRequest sets a cart-level discount amount.
type ApplyDiscountRequest struct {
	Amount float64 `json:"amount"`
}

// CheckoutRequest converts the caller's active cart into an order. The
// totals are computed by the external pricing collaborator and trusted
// verbatim.
type CheckoutRequest struct {
	Totals OrderTotals `json:"totals"`
	Notes  string      `json:"notes,omitempty"`
}

// UpdateOrderStatusRequest is a routine, table-checked status change.
type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status"`
	Notes  string      `json:"notes,omitempty"`
}

// CancelOrderRequest cancels an order and refunds its payment.
type CancelOrderRequest struct {
	Reason string `json:"reason,omitempty"`
}

// RefundRequest refunds part or all of a payment. A zero amount means
// the full remaining refundable amount.
type RefundRequest struct {
	Amount float64 `json:"amount,omitempty"`
	Reason string  `json:"reason,omitempty"`
}

// CreatePaymentRequest creates a payment attempt for an order. The
// amount is taken from the order, never from the caller.
type CreatePaymentRequest struct {
	OrderID  uuid.UUID      `json:"orderId"`
	Method   PaymentMethod  `json:"method"`
	Provider string         `json:"provider"`
	Card     *CardDetails   `json:"cardDetails,omitempty"`
	Crypto   *CryptoDetails `json:"cryptoDetails,omitempty"`
}

// WebhookEvent is the gateway notification contract. Signature
// verification happens upstream; the core only consumes data.id and
// stores data verbatim as the provider response.
type WebhookEvent struct {
	EventType string          `json:"eventType"`
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
	Timestamp int64           `json:"timestamp"`
}

// TransactionID extracts the gateway transaction id from the event data.
func (e WebhookEvent) TransactionID() (string, error) {
	var data struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return "", NewValidationError("webhook data is not valid JSON")
	}
	if data.ID == "" {
		return "", NewValidationError("webhook data is missing transaction id")
	}
	return data.ID, nil
}
