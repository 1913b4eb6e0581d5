package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"tradekart/internal/event"
	"tradekart/internal/model"
	"tradekart/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// paymentService implements PaymentService. Every settlement change is
// applied to the Payment aggregate first (the source of truth) and then
// reflected onto the Order inside the same transaction.
type paymentService struct {
	paymentRepo repository.PaymentRepository
	orderRepo   repository.OrderRepository
	publisher   event.Publisher
	logger      zerolog.Logger
}

// NewPaymentService creates a new payment service.
func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	orderRepo repository.OrderRepository,
	publisher event.Publisher,
	logger zerolog.Logger,
) PaymentService {
	return &paymentService{
		paymentRepo: paymentRepo,
		orderRepo:   orderRepo,
		publisher:   publisher,
		logger:      logger.With().Str("service", "payment").Logger(),
	}
}

// Create creates a payment attempt for an order. The amount always comes
// from the order. A settled payment for the order blocks a second one.
func (s *paymentService) Create(ctx context.Context, req *model.CreatePaymentRequest) (*model.Payment, error) {
	if req == nil {
		return nil, model.NewValidationError("create payment request is nil")
	}

	order, err := s.orderRepo.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	settled, err := s.paymentRepo.HasSuccessfulForOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if settled {
		s.logger.Warn().Str("order_id", order.ID.String()).Msg("duplicate payment attempt rejected")
		return nil, model.ErrDuplicatePayment
	}

	payment, err := model.NewPayment(order.ID, order.UserID, order.TotalAmount, order.Currency, req.Method, req.Provider, req.Card, req.Crypto)
	if err != nil {
		return nil, err
	}

	if err := s.paymentRepo.Create(ctx, nil, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	s.logger.Info().
		Str("payment_id", payment.ID.String()).
		Str("order_id", order.ID.String()).
		Float64("amount", payment.Amount).
		Str("method", string(payment.Method)).
		Msg("payment created")

	s.publish(ctx, event.TypePaymentCreated, payment.ID.String(), payment)
	return &payment, nil
}

func (s *paymentService) GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	return s.paymentRepo.GetByID(ctx, id)
}

func (s *paymentService) MarkProcessing(ctx context.Context, id uuid.UUID, transactionID string) (*model.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := payment.MarkProcessing(transactionID)
	if err != nil {
		return nil, err
	}

	if err := s.paymentRepo.Update(ctx, nil, updated); err != nil {
		return nil, fmt.Errorf("failed to save payment: %w", err)
	}
	updated.Version++

	s.logger.Info().
		Str("payment_id", id.String()).
		Str("transaction_id", transactionID).
		Msg("payment processing")
	return &updated, nil
}

// MarkPaid settles the payment and advances the order (PENDING ->
// PROCESSING) in one transaction. A second settlement attempt fails
// loudly at the aggregate guard, before anything is written.
func (s *paymentService) MarkPaid(ctx context.Context, id uuid.UUID, transactionID string, providerResponse json.RawMessage) (*model.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	paid, err := payment.MarkPaid(transactionID, providerResponse)
	if err != nil {
		s.logger.Warn().
			Str("payment_id", id.String()).
			Str("status", string(payment.Status)).
			Msg("settlement rejected by payment state machine")
		return nil, err
	}

	order, err := s.orderRepo.GetByID(ctx, payment.OrderID)
	if err != nil {
		return nil, err
	}
	paidOrder := order.MarkPaid(paid.TransactionID)

	if err := s.inTx(ctx, paid, paidOrder); err != nil {
		return nil, err
	}
	paid.Version++

	s.logger.Info().
		Str("payment_id", id.String()).
		Str("order_id", order.ID.String()).
		Str("transaction_id", paid.TransactionID).
		Msg("payment settled")

	s.publish(ctx, event.TypePaymentPaid, paid.ID.String(), paid)
	s.publish(ctx, event.TypeOrderPaid, paidOrder.ID.String(), paidOrder)
	return &paid, nil
}

func (s *paymentService) MarkFailed(ctx context.Context, id uuid.UUID, reason string, providerResponse json.RawMessage) (*model.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	failed, err := payment.MarkFailed(reason, providerResponse)
	if err != nil {
		return nil, err
	}

	order, err := s.orderRepo.GetByID(ctx, payment.OrderID)
	if err != nil {
		return nil, err
	}
	failedOrder := order.UpdatePaymentStatus(model.OrderPaymentFailed, "")

	if err := s.inTx(ctx, failed, failedOrder); err != nil {
		return nil, err
	}
	failed.Version++

	s.logger.Info().
		Str("payment_id", id.String()).
		Str("reason", reason).
		Msg("payment failed")

	s.publish(ctx, event.TypePaymentFailed, failed.ID.String(), failed)
	return &failed, nil
}

// Refund applies a partial or full refund and syncs the order's payment
// bookkeeping. A fully refunded DELIVERED order also moves to REFUNDED.
func (s *paymentService) Refund(ctx context.Context, id uuid.UUID, req *model.RefundRequest) (*model.Payment, error) {
	if req == nil {
		req = &model.RefundRequest{}
	}

	payment, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	refunded, err := payment.Refund(req.Amount, req.Reason)
	if err != nil {
		return nil, err
	}

	order, err := s.orderRepo.GetByID(ctx, payment.OrderID)
	if err != nil {
		return nil, err
	}

	updatedOrder := order.UpdatePaymentStatus(orderPaymentStatus(refunded.Status), "")
	if refunded.Status == model.PaymentStatusRefunded && updatedOrder.CanTransitionTo(model.OrderStatusRefunded) {
		updatedOrder, err = updatedOrder.UpdateStatus(model.OrderStatusRefunded, req.Reason)
		if err != nil {
			return nil, err
		}
	}

	if err := s.inTx(ctx, refunded, updatedOrder); err != nil {
		return nil, err
	}
	refunded.Version++

	s.logger.Info().
		Str("payment_id", id.String()).
		Float64("refunded_amount", refunded.RefundedAmount).
		Str("status", string(refunded.Status)).
		Msg("payment refunded")

	s.publish(ctx, event.TypePaymentRefunded, refunded.ID.String(), refunded)
	if updatedOrder.Status == model.OrderStatusRefunded {
		s.publish(ctx, event.TypeOrderRefunded, updatedOrder.ID.String(), updatedOrder)
	}
	return &refunded, nil
}

// HandleWebhook applies a gateway notification. The payment is resolved
// by the gateway transaction id; the raw event data is stored verbatim
// as the provider response. A duplicate delivery of a settlement event
// fails loudly on the already-PAID guard.
func (s *paymentService) HandleWebhook(ctx context.Context, evt *model.WebhookEvent) (*model.Payment, error) {
	if evt == nil {
		return nil, model.NewValidationError("webhook event is nil")
	}

	transactionID, err := evt.TransactionID()
	if err != nil {
		return nil, err
	}

	payment, err := s.paymentRepo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("event_type", evt.EventType).
		Str("transaction_id", transactionID).
		Str("payment_id", payment.ID.String()).
		Msg("webhook received")

	if strings.Contains(evt.EventType, "fail") {
		return s.MarkFailed(ctx, payment.ID, evt.EventType, evt.Data)
	}
	return s.MarkPaid(ctx, payment.ID, transactionID, evt.Data)
}

// inTx writes a payment and its order in one transaction.
func (s *paymentService) inTx(ctx context.Context, payment model.Payment, order model.Order) (err error) {
	tx, err := s.paymentRepo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback payment transaction")
			}
		}
	}()

	if err = s.paymentRepo.Update(ctx, tx, payment); err != nil {
		return fmt.Errorf("failed to save payment: %w", err)
	}
	if err = s.orderRepo.Update(ctx, tx, order); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit payment transaction: %w", err)
	}
	return nil
}

func (s *paymentService) publish(ctx context.Context, eventType, aggregateID string, data any) {
	if err := s.publisher.Publish(ctx, eventType, aggregateID, data); err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish lifecycle event")
	}
}
