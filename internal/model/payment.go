package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the settlement state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "PENDING"
	PaymentStatusProcessing        PaymentStatus = "PROCESSING"
	PaymentStatusPaid              PaymentStatus = "PAID"
	PaymentStatusFailed            PaymentStatus = "FAILED"
	PaymentStatusCancelled         PaymentStatus = "CANCELLED"
	PaymentStatusRefunded          PaymentStatus = "REFUNDED"
	PaymentStatusPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

// IsSuccessful reports whether the payment settled. A settled payment
// blocks creation of another payment for the same order, even after it
// was later refunded.
func (s PaymentStatus) IsSuccessful() bool {
	switch s {
	case PaymentStatusPaid, PaymentStatusRefunded, PaymentStatusPartiallyRefunded:
		return true
	}
	return false
}

// PaymentMethod selects the settlement instrument.
type PaymentMethod string

const (
	PaymentMethodCreditCard PaymentMethod = "credit_card"
	PaymentMethodCrypto     PaymentMethod = "crypto"
)

// CardDetails is required when method is credit_card.
type CardDetails struct {
	Last4       string `json:"last4"`
	Brand       string `json:"brand"`
	ExpiryMonth int    `json:"expiryMonth"`
	ExpiryYear  int    `json:"expiryYear"`
}

// CryptoDetails is required when method is crypto.
type CryptoDetails struct {
	Asset         string `json:"asset"`
	Network       string `json:"network"`
	WalletAddress string `json:"walletAddress"`
}

// Payment tracks one monetary settlement against an order. Amount is
// immutable after creation; only the transition methods below mutate
// state, each returning a new value.
type Payment struct {
	ID               uuid.UUID       `json:"id"`
	OrderID          uuid.UUID       `json:"orderId"`
	UserID           uuid.UUID       `json:"userId"`
	Amount           float64         `json:"amount"`
	Currency         string          `json:"currency"`
	Method           PaymentMethod   `json:"method"`
	Provider         string          `json:"provider"`
	Status           PaymentStatus   `json:"status"`
	TransactionID    string          `json:"transactionId,omitempty"`
	Card             *CardDetails    `json:"cardDetails,omitempty"`
	Crypto           *CryptoDetails  `json:"cryptoDetails,omitempty"`
	ProviderResponse json.RawMessage `json:"providerResponse,omitempty"`
	RefundedAmount   float64         `json:"refundedAmount"`
	RefundReason     string          `json:"refundReason,omitempty"`
	FailureReason    string          `json:"failureReason,omitempty"`
	PaidAt           *time.Time      `json:"paidAt,omitempty"`
	RefundedAt       *time.Time      `json:"refundedAt,omitempty"`
	Version          int             `json:"version"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// NewPayment creates a PENDING payment for an order.
func NewPayment(orderID, userID uuid.UUID, amount float64, currency string, method PaymentMethod, provider string, card *CardDetails, crypto *CryptoDetails) (Payment, error) {
	if amount <= 0 {
		return Payment{}, NewValidationError("payment amount must be positive")
	}
	switch method {
	case PaymentMethodCreditCard:
		if card == nil {
			return Payment{}, NewValidationError("card details are required for credit_card payments")
		}
	case PaymentMethodCrypto:
		if crypto == nil {
			return Payment{}, NewValidationError("crypto details are required for crypto payments")
		}
	default:
		return Payment{}, NewValidationError("unsupported payment method %q", string(method))
	}

	now := time.Now()
	return Payment{
		ID:        uuid.New(),
		OrderID:   orderID,
		UserID:    userID,
		Amount:    RoundCents(amount),
		Currency:  currency,
		Method:    method,
		Provider:  provider,
		Status:    PaymentStatusPending,
		Card:      card,
		Crypto:    crypto,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// MarkProcessing records that the provider accepted the payment.
func (p Payment) MarkProcessing(transactionID string) (Payment, error) {
	if p.Status != PaymentStatusPending {
		return p, NewInvalidTransition(string(p.Status), string(PaymentStatusProcessing))
	}
	p.Status = PaymentStatusProcessing
	if transactionID != "" {
		p.TransactionID = transactionID
	}
	p.UpdatedAt = time.Now()
	return p, nil
}

// MarkPaid records a successful settlement. Calling it on an already
// PAID payment fails loudly so duplicate webhook deliveries are visible.
func (p Payment) MarkPaid(transactionID string, providerResponse json.RawMessage) (Payment, error) {
	if p.Status != PaymentStatusPending && p.Status != PaymentStatusProcessing {
		return p, NewInvalidTransition(string(p.Status), string(PaymentStatusPaid))
	}
	now := time.Now()
	p.Status = PaymentStatusPaid
	p.TransactionID = transactionID
	if providerResponse != nil {
		p.ProviderResponse = providerResponse
	}
	p.PaidAt = &now
	p.UpdatedAt = now
	return p, nil
}

// MarkFailed records a settlement failure. Settled payments cannot fail
// retroactively.
func (p Payment) MarkFailed(reason string, providerResponse json.RawMessage) (Payment, error) {
	if p.Status.IsSuccessful() {
		return p, NewInvalidTransition(string(p.Status), string(PaymentStatusFailed))
	}
	p.Status = PaymentStatusFailed
	p.FailureReason = reason
	if providerResponse != nil {
		p.ProviderResponse = providerResponse
	}
	p.UpdatedAt = time.Now()
	return p, nil
}

// MarkCancelled abandons an unsettled payment.
func (p Payment) MarkCancelled(reason string) (Payment, error) {
	if p.Status.IsSuccessful() {
		return p, NewInvalidTransition(string(p.Status), string(PaymentStatusCancelled))
	}
	p.Status = PaymentStatusCancelled
	p.FailureReason = reason
	p.UpdatedAt = time.Now()
	return p, nil
}

// IsRefundable reports whether any amount can still be refunded.
func (p Payment) IsRefundable() bool {
	if p.Status != PaymentStatusPaid && p.Status != PaymentStatusPartiallyRefunded {
		return false
	}
	return p.RefundableAmount() > 0
}

// RefundableAmount is amount - refundedAmount, or 0 outside the
// PAID/PARTIALLY_REFUNDED states.
func (p Payment) RefundableAmount() float64 {
	if p.Status != PaymentStatusPaid && p.Status != PaymentStatusPartiallyRefunded {
		return 0
	}
	return RoundCents(p.Amount - p.RefundedAmount)
}

// Refund accumulates a refund. A zero amount refunds the full remaining
// refundable amount. The payment becomes REFUNDED exactly when the
// cumulative refund reaches the original amount.
func (p Payment) Refund(amount float64, reason string) (Payment, error) {
	if p.Status != PaymentStatusPaid && p.Status != PaymentStatusPartiallyRefunded {
		return p, NewInvalidTransition(string(p.Status), string(PaymentStatusRefunded))
	}
	remaining := p.RefundableAmount()
	if amount == 0 {
		amount = remaining
	}
	if amount < 0 {
		return p, NewValidationError("refund amount cannot be negative")
	}
	if remaining <= 0 || amount > remaining+0.004 {
		return p, NewValidationError("refund amount %.2f exceeds refundable amount %.2f", amount, remaining)
	}

	now := time.Now()
	p.RefundedAmount = RoundCents(p.RefundedAmount + amount)
	if AmountsEqual(p.RefundedAmount, p.Amount) {
		p.RefundedAmount = p.Amount
		p.Status = PaymentStatusRefunded
	} else {
		p.Status = PaymentStatusPartiallyRefunded
	}
	if reason != "" {
		p.RefundReason = reason
	}
	p.RefundedAt = &now
	p.UpdatedAt = now
	return p, nil
}
