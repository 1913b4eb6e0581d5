package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradekart/internal/event"
	"tradekart/internal/model"
	"tradekart/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// orderService implements OrderService. Cross-aggregate sequences
// (checkout, cancel-and-refund) run inside one database transaction so
// a crash mid-sequence never leaves a torn update.
type orderService struct {
	orderRepo   repository.OrderRepository
	cartRepo    repository.CartRepository
	paymentRepo repository.PaymentRepository
	publisher   event.Publisher
	logger      zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	paymentRepo repository.PaymentRepository,
	publisher event.Publisher,
	logger zerolog.Logger,
) OrderService {
	return &orderService{
		orderRepo:   orderRepo,
		cartRepo:    cartRepo,
		paymentRepo: paymentRepo,
		publisher:   publisher,
		logger:      logger.With().Str("service", "order").Logger(),
	}
}

// Checkout converts the user's active cart into a PENDING order. The
// cart transitions ACTIVE -> PENDING_CHECKOUT -> CONVERTED_TO_ORDER, the
// order and a replacement cart are created, all in one transaction.
func (s *orderService) Checkout(ctx context.Context, userID uuid.UUID, req *model.CheckoutRequest) (*model.Order, error) {
	if req == nil {
		return nil, model.NewValidationError("checkout request is nil")
	}

	cart, err := s.cartRepo.GetActiveByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart.IsExpired(time.Now()) {
		return nil, model.NewValidationError("cart has expired")
	}

	pending, err := cart.MarkPendingCheckout()
	if err != nil {
		return nil, err
	}

	order, err := model.NewOrder(pending, req.Totals, req.Notes)
	if err != nil {
		return nil, err
	}

	converted, err := pending.MarkConverted()
	if err != nil {
		return nil, err
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to checkout: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback checkout transaction")
			}
		}
	}()

	if err = s.orderRepo.Create(ctx, tx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	if err = s.cartRepo.Update(ctx, tx, converted); err != nil {
		return nil, fmt.Errorf("failed to convert cart: %w", err)
	}
	if err = s.cartRepo.Create(ctx, tx, model.NewCart(userID, cart.Currency)); err != nil {
		return nil, fmt.Errorf("failed to create replacement cart: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit checkout: %w", err)
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Str("cart_id", cart.ID.String()).
		Float64("total_amount", order.TotalAmount).
		Msg("order created from cart")

	s.publish(ctx, event.TypeOrderCreated, order.ID.String(), order)
	return &order, nil
}

func (s *orderService) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return s.orderRepo.GetByID(ctx, id)
}

func (s *orderService) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Order, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.orderRepo.ListByUserID(ctx, userID, limit, offset)
}

func (s *orderService) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, notes string) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := order.UpdateStatus(status, notes)
	if err != nil {
		s.logger.Warn().
			Str("order_id", id.String()).
			Str("from", string(order.Status)).
			Str("to", string(status)).
			Msg("order status transition rejected")
		return nil, err
	}

	if err := s.orderRepo.Update(ctx, nil, updated); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}
	updated.Version++

	s.logger.Info().
		Str("order_id", id.String()).
		Str("status", string(status)).
		Msg("order status updated")
	return &updated, nil
}

// Cancel cancels the order and, if a refundable payment exists, refunds
// it in the same transaction. Any failure aborts the whole sequence.
func (s *orderService) Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Compute the refund before cancelling: the amount depends on the
	// pre-cancellation status.
	refundAmount := order.RefundAmount()

	cancelled, err := order.Cancel(reason)
	if err != nil {
		return nil, err
	}

	payment, err := s.paymentRepo.GetByOrderID(ctx, id)
	if err != nil && !errors.Is(err, model.ErrPaymentNotFound) {
		return nil, err
	}

	var refunded *model.Payment
	if payment != nil && payment.IsRefundable() {
		if refundAmount > payment.RefundableAmount() {
			refundAmount = payment.RefundableAmount()
		}
		p, err := payment.Refund(refundAmount, reason)
		if err != nil {
			return nil, err
		}
		refunded = &p
		// Keep the order's bookkeeping aligned with what the payment
		// actually did (a partial refund stays PARTIALLY_REFUNDED).
		cancelled = cancelled.UpdatePaymentStatus(orderPaymentStatus(p.Status), "")
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback cancel transaction")
			}
		}
	}()

	if err = s.orderRepo.Update(ctx, tx, cancelled); err != nil {
		return nil, fmt.Errorf("failed to save cancelled order: %w", err)
	}
	if refunded != nil {
		if err = s.paymentRepo.Update(ctx, tx, *refunded); err != nil {
			return nil, fmt.Errorf("failed to refund payment: %w", err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation: %w", err)
	}
	cancelled.Version++

	s.logger.Info().
		Str("order_id", id.String()).
		Bool("payment_refunded", refunded != nil).
		Msg("order cancelled")

	s.publish(ctx, event.TypeOrderCancelled, cancelled.ID.String(), cancelled)
	if refunded != nil {
		s.publish(ctx, event.TypePaymentRefunded, refunded.ID.String(), refunded)
	}
	return &cancelled, nil
}

func (s *orderService) Stats(ctx context.Context, since time.Time) (map[model.OrderStatus]int, error) {
	return s.orderRepo.CountByStatusSince(ctx, since)
}

// publish emits a lifecycle event after a committed change. Publish
// failures are logged, never surfaced to the caller.
func (s *orderService) publish(ctx context.Context, eventType, aggregateID string, data any) {
	if err := s.publisher.Publish(ctx, eventType, aggregateID, data); err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish lifecycle event")
	}
}

// orderPaymentStatus maps a payment settlement state onto the order's
// bookkeeping field.
func orderPaymentStatus(status model.PaymentStatus) model.OrderPaymentStatus {
	switch status {
	case model.PaymentStatusPaid:
		return model.OrderPaymentPaid
	case model.PaymentStatusFailed:
		return model.OrderPaymentFailed
	case model.PaymentStatusRefunded:
		return model.OrderPaymentRefunded
	case model.PaymentStatusPartiallyRefunded:
		return model.OrderPaymentPartiallyRefunded
	default:
		return model.OrderPaymentPending
	}
}
