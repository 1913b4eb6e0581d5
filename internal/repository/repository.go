package repository

import (
	"context"
	"time"

	"tradekart/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so
// repository methods can run inside or outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// CartRepository is the persistence port for the Cart aggregate. Updates
// are full-replacement with compare-and-swap on the version column; a
// lost race returns model.ErrConcurrentUpdate.
type CartRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// Create inserts a new cart with its items. A nil tx runs on the pool.
	Create(ctx context.Context, tx pgx.Tx, cart model.Cart) error

	// GetByID retrieves a cart with its items.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Cart, error)

	// GetActiveByUserID retrieves the user's ACTIVE cart, if any.
	GetActiveByUserID(ctx context.Context, userID uuid.UUID) (*model.Cart, error)

	// Update replaces the cart row and its items, guarded by version CAS.
	Update(ctx context.Context, tx pgx.Tx, cart model.Cart) error

	// FindExpired scans for ACTIVE carts past their expiry that still
	// hold items.
	FindExpired(ctx context.Context, now time.Time, limit int) ([]model.Cart, error)

	// Delete removes a cart and its items.
	Delete(ctx context.Context, id uuid.UUID) error
}

// OrderRepository is the persistence port for the Order aggregate.
// Order items are immutable snapshots and are only written at creation.
type OrderRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// Create inserts a new order with its item snapshots.
	Create(ctx context.Context, tx pgx.Tx, order model.Order) error

	// GetByID retrieves an order with its items.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// GetByOrderNumber retrieves an order by its human-facing number.
	GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error)

	// ListByUserID retrieves a user's orders, newest first.
	ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Order, error)

	// Update replaces the mutable order columns, guarded by version CAS.
	Update(ctx context.Context, tx pgx.Tx, order model.Order) error

	// CountByStatusSince aggregates order counts per status for orders
	// created at or after the given instant.
	CountByStatusSince(ctx context.Context, since time.Time) (map[model.OrderStatus]int, error)
}

// PaymentRepository is the persistence port for the Payment aggregate.
// A partial unique index guarantees at most one successful payment per
// order; violations surface as model.ErrDuplicatePayment.
type PaymentRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// Create inserts a new payment.
	Create(ctx context.Context, tx pgx.Tx, payment model.Payment) error

	// GetByID retrieves a payment.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)

	// GetByOrderID retrieves the most recent payment for an order.
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*model.Payment, error)

	// GetByTransactionID retrieves a payment by gateway transaction id.
	GetByTransactionID(ctx context.Context, transactionID string) (*model.Payment, error)

	// HasSuccessfulForOrder reports whether the order already has a
	// settled payment.
	HasSuccessfulForOrder(ctx context.Context, orderID uuid.UUID) (bool, error)

	// Update replaces the mutable payment columns, guarded by version CAS.
	Update(ctx context.Context, tx pgx.Tx, payment model.Payment) error
}
