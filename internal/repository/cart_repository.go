package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradekart/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// cartRepository implements CartRepository using PostgreSQL.
type cartRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCartRepository creates a new PostgreSQL-backed cart repository.
func NewCartRepository(pool *pgxpool.Pool, logger zerolog.Logger) CartRepository {
	return &cartRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "cart").Logger(),
	}
}

func (r *cartRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

func (r *cartRepository) db(tx pgx.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.pool
}

func (r *cartRepository) Create(ctx context.Context, tx pgx.Tx, cart model.Cart) error {
	query := `
		INSERT INTO carts (id, user_id, currency, status, total_amount, discount_amount, final_amount, version, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db(tx).Exec(ctx, query,
		cart.ID, cart.UserID, cart.Currency, cart.Status,
		cart.TotalAmount, cart.DiscountAmount, cart.FinalAmount,
		cart.Version, cart.ExpiresAt, cart.CreatedAt, cart.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_id", cart.ID.String()).Msg("failed to create cart")
		return fmt.Errorf("failed to create cart: %w", err)
	}

	if err := r.insertItems(ctx, r.db(tx), cart); err != nil {
		return err
	}

	r.logger.Debug().Str("cart_id", cart.ID.String()).Msg("cart created successfully")
	return nil
}

// Update performs a full replacement of the cart row and its items. The
// WHERE clause carries the version the aggregate was loaded at, so a
// concurrent writer makes this a zero-row update.
func (r *cartRepository) Update(ctx context.Context, tx pgx.Tx, cart model.Cart) error {
	query := `
		UPDATE carts
		SET currency = $3, status = $4, total_amount = $5, discount_amount = $6,
		    final_amount = $7, version = version + 1, expires_at = $8, updated_at = $9
		WHERE id = $1 AND version = $2
	`

	tag, err := r.db(tx).Exec(ctx, query,
		cart.ID, cart.Version, cart.Currency, cart.Status,
		cart.TotalAmount, cart.DiscountAmount, cart.FinalAmount,
		cart.ExpiresAt, cart.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_id", cart.ID.String()).Msg("failed to update cart")
		return fmt.Errorf("failed to update cart: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Warn().
			Str("cart_id", cart.ID.String()).
			Int("version", cart.Version).
			Msg("cart update lost optimistic concurrency race")
		return model.ErrConcurrentUpdate
	}

	if _, err := r.db(tx).Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cart.ID); err != nil {
		r.logger.Error().Err(err).Str("cart_id", cart.ID.String()).Msg("failed to clear cart items")
		return fmt.Errorf("failed to clear cart items: %w", err)
	}

	return r.insertItems(ctx, r.db(tx), cart)
}

func (r *cartRepository) insertItems(ctx context.Context, db querier, cart model.Cart) error {
	if len(cart.Items) == 0 {
		return nil
	}

	query := `
		INSERT INTO cart_items (cart_id, product_id, name, image_url, quantity, unit_price, discount, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	batch := &pgx.Batch{}
	for i, item := range cart.Items {
		batch.Queue(query, cart.ID, item.ProductID, item.Name, item.ImageURL, item.Quantity, item.UnitPrice, item.Discount, i)
	}

	results := db.SendBatch(ctx, batch)
	defer results.Close()

	for range cart.Items {
		if _, err := results.Exec(); err != nil {
			r.logger.Error().Err(err).Str("cart_id", cart.ID.String()).Msg("failed to insert cart item")
			return fmt.Errorf("failed to insert cart item: %w", err)
		}
	}
	return nil
}

func (r *cartRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Cart, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *cartRepository) GetActiveByUserID(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	return r.getOne(ctx, `WHERE user_id = $1 AND status = 'ACTIVE' ORDER BY created_at DESC LIMIT 1`, userID)
}

func (r *cartRepository) getOne(ctx context.Context, where string, arg any) (*model.Cart, error) {
	query := `
		SELECT id, user_id, currency, status, total_amount, discount_amount, final_amount, version, expires_at, created_at, updated_at
		FROM carts ` + where

	var cart model.Cart
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&cart.ID, &cart.UserID, &cart.Currency, &cart.Status,
		&cart.TotalAmount, &cart.DiscountAmount, &cart.FinalAmount,
		&cart.Version, &cart.ExpiresAt, &cart.CreatedAt, &cart.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrCartNotFound
		}
		r.logger.Error().Err(err).Msg("failed to query cart")
		return nil, fmt.Errorf("failed to query cart: %w", err)
	}

	items, err := r.loadItems(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Items = items
	return &cart, nil
}

func (r *cartRepository) loadItems(ctx context.Context, cartID uuid.UUID) ([]model.CartItem, error) {
	query := `
		SELECT product_id, name, image_url, quantity, unit_price, discount
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY position
	`

	rows, err := r.pool.Query(ctx, query, cartID)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_id", cartID.String()).Msg("failed to query cart items")
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	var items []model.CartItem
	for rows.Next() {
		var item model.CartItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.ImageURL, &item.Quantity, &item.UnitPrice, &item.Discount); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}
	return items, nil
}

func (r *cartRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]model.Cart, error) {
	query := `
		SELECT id
		FROM carts c
		WHERE c.status = 'ACTIVE'
		  AND c.expires_at < $1
		  AND EXISTS (SELECT 1 FROM cart_items ci WHERE ci.cart_id = c.id)
		ORDER BY c.expires_at
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to scan for expired carts")
		return nil, fmt.Errorf("failed to scan for expired carts: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan expired cart id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expired carts: %w", err)
	}

	carts := make([]model.Cart, 0, len(ids))
	for _, id := range ids {
		cart, err := r.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, model.ErrCartNotFound) {
				continue
			}
			return nil, err
		}
		carts = append(carts, *cart)
	}
	return carts, nil
}

func (r *cartRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM carts WHERE id = $1`, id)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_id", id.String()).Msg("failed to delete cart")
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrCartNotFound
	}
	return nil
}
