package repository

import (
	"context"
	"errors"
	"fmt"

	"tradekart/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// paymentRepository implements PaymentRepository using PostgreSQL. The
// payments_one_success_per_order partial unique index backs the
// one-successful-payment-per-order rule.
type paymentRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPaymentRepository creates a new PostgreSQL-backed payment repository.
func NewPaymentRepository(pool *pgxpool.Pool, logger zerolog.Logger) PaymentRepository {
	return &paymentRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "payment").Logger(),
	}
}

func (r *paymentRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

func (r *paymentRepository) db(tx pgx.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.pool
}

const paymentColumns = `id, order_id, user_id, amount, currency, method, provider, status, transaction_id, card_details, crypto_details, provider_response, refunded_amount, refund_reason, failure_reason, paid_at, refunded_at, version, created_at, updated_at`

func (r *paymentRepository) Create(ctx context.Context, tx pgx.Tx, payment model.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err := r.db(tx).Exec(ctx, query,
		payment.ID, payment.OrderID, payment.UserID, payment.Amount, payment.Currency,
		payment.Method, payment.Provider, payment.Status, payment.TransactionID,
		payment.Card, payment.Crypto, payment.ProviderResponse,
		payment.RefundedAmount, payment.RefundReason, payment.FailureReason,
		payment.PaidAt, payment.RefundedAt, payment.Version, payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrDuplicatePayment
		}
		r.logger.Error().Err(err).Str("payment_id", payment.ID.String()).Msg("failed to create payment")
		return fmt.Errorf("failed to create payment: %w", err)
	}

	r.logger.Debug().
		Str("payment_id", payment.ID.String()).
		Str("order_id", payment.OrderID.String()).
		Msg("payment created successfully")
	return nil
}

func (r *paymentRepository) Update(ctx context.Context, tx pgx.Tx, payment model.Payment) error {
	query := `
		UPDATE payments
		SET status = $3, transaction_id = $4, provider_response = $5, refunded_amount = $6,
		    refund_reason = $7, failure_reason = $8, paid_at = $9, refunded_at = $10,
		    version = version + 1, updated_at = $11
		WHERE id = $1 AND version = $2
	`

	tag, err := r.db(tx).Exec(ctx, query,
		payment.ID, payment.Version, payment.Status, payment.TransactionID,
		payment.ProviderResponse, payment.RefundedAmount, payment.RefundReason,
		payment.FailureReason, payment.PaidAt, payment.RefundedAt, payment.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrDuplicatePayment
		}
		r.logger.Error().Err(err).Str("payment_id", payment.ID.String()).Msg("failed to update payment")
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Warn().
			Str("payment_id", payment.ID.String()).
			Int("version", payment.Version).
			Msg("payment update lost optimistic concurrency race")
		return model.ErrConcurrentUpdate
	}
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *paymentRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*model.Payment, error) {
	return r.getOne(ctx, `WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`, orderID)
}

func (r *paymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*model.Payment, error) {
	return r.getOne(ctx, `WHERE transaction_id = $1`, transactionID)
}

func (r *paymentRepository) getOne(ctx context.Context, where string, arg any) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments ` + where

	var p model.Payment
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&p.ID, &p.OrderID, &p.UserID, &p.Amount, &p.Currency,
		&p.Method, &p.Provider, &p.Status, &p.TransactionID,
		&p.Card, &p.Crypto, &p.ProviderResponse,
		&p.RefundedAmount, &p.RefundReason, &p.FailureReason,
		&p.PaidAt, &p.RefundedAt, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrPaymentNotFound
		}
		r.logger.Error().Err(err).Msg("failed to query payment")
		return nil, fmt.Errorf("failed to query payment: %w", err)
	}
	return &p, nil
}

func (r *paymentRepository) HasSuccessfulForOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM payments
			WHERE order_id = $1 AND status IN ('PAID', 'REFUNDED', 'PARTIALLY_REFUNDED')
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, orderID).Scan(&exists); err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to check for successful payment")
		return false, fmt.Errorf("failed to check for successful payment: %w", err)
	}
	return exists, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
