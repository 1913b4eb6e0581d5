package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradekart/internal/model"
	"tradekart/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// cartService implements CartService. Every mutation is load, transform
// on the immutable value, save with version CAS.
type cartService struct {
	cartRepo repository.CartRepository
	logger   zerolog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(cartRepo repository.CartRepository, logger zerolog.Logger) CartService {
	return &cartService{
		cartRepo: cartRepo,
		logger:   logger.With().Str("service", "cart").Logger(),
	}
}

func (s *cartService) GetOrCreate(ctx context.Context, userID uuid.UUID, currency string) (*model.Cart, error) {
	cart, err := s.cartRepo.GetActiveByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, model.ErrCartNotFound) {
			return nil, fmt.Errorf("failed to get cart: %w", err)
		}
		created := model.NewCart(userID, currency)
		if err := s.cartRepo.Create(ctx, nil, created); err != nil {
			return nil, fmt.Errorf("failed to create cart: %w", err)
		}
		s.logger.Info().
			Str("cart_id", created.ID.String()).
			Str("user_id", userID.String()).
			Msg("cart created")
		return &created, nil
	}

	if cart.IsExpired(time.Now()) {
		cleared := cart.Clear().Renew()
		if err := s.cartRepo.Update(ctx, nil, cleared); err != nil {
			return nil, fmt.Errorf("failed to clear expired cart: %w", err)
		}
		cleared.Version++
		s.logger.Info().Str("cart_id", cart.ID.String()).Msg("expired cart cleared on access")
		return &cleared, nil
	}

	return cart, nil
}

func (s *cartService) AddItem(ctx context.Context, userID uuid.UUID, req *model.AddItemRequest) (*model.Cart, error) {
	if req == nil {
		return nil, model.NewValidationError("add item request is nil")
	}
	return s.mutate(ctx, userID, func(cart model.Cart) (model.Cart, error) {
		return cart.AddItem(req.ProductID, req.Quantity, req.UnitPrice, req.Discount, req.Name, req.ImageURL)
	})
}

func (s *cartService) UpdateItemQuantity(ctx context.Context, userID uuid.UUID, productID string, quantity int) (*model.Cart, error) {
	return s.mutate(ctx, userID, func(cart model.Cart) (model.Cart, error) {
		return cart.UpdateItemQuantity(productID, quantity)
	})
}

func (s *cartService) RemoveItem(ctx context.Context, userID uuid.UUID, productID string) (*model.Cart, error) {
	return s.mutate(ctx, userID, func(cart model.Cart) (model.Cart, error) {
		return cart.RemoveItem(productID)
	})
}

func (s *cartService) ApplyDiscount(ctx context.Context, userID uuid.UUID, amount float64) (*model.Cart, error) {
	return s.mutate(ctx, userID, func(cart model.Cart) (model.Cart, error) {
		return cart.ApplyDiscount(amount)
	})
}

func (s *cartService) Clear(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	return s.mutate(ctx, userID, func(cart model.Cart) (model.Cart, error) {
		return cart.Clear(), nil
	})
}

// mutate loads the user's active cart, applies a pure transform, and
// saves the result. A domain error from the transform leaves storage
// untouched.
func (s *cartService) mutate(ctx context.Context, userID uuid.UUID, transform func(model.Cart) (model.Cart, error)) (*model.Cart, error) {
	cart, err := s.cartRepo.GetActiveByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	updated, err := transform(*cart)
	if err != nil {
		s.logger.Warn().
			Str("cart_id", cart.ID.String()).
			Err(err).
			Msg("cart mutation rejected")
		return nil, err
	}

	if err := s.cartRepo.Update(ctx, nil, updated); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}
	updated.Version++

	s.logger.Debug().
		Str("cart_id", updated.ID.String()).
		Int("item_count", len(updated.Items)).
		Msg("cart updated")
	return &updated, nil
}

func (s *cartService) SweepExpired(ctx context.Context, limit int) (int, error) {
	carts, err := s.cartRepo.FindExpired(ctx, time.Now(), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to find expired carts: %w", err)
	}

	swept := 0
	for _, cart := range carts {
		if err := s.cartRepo.Update(ctx, nil, cart.Clear()); err != nil {
			// A concurrent access may have cleared it already; skip and
			// continue the sweep.
			if errors.Is(err, model.ErrConcurrentUpdate) {
				continue
			}
			return swept, fmt.Errorf("failed to clear expired cart: %w", err)
		}
		swept++
	}

	if swept > 0 {
		s.logger.Info().Int("count", swept).Msg("expired carts cleared")
	}
	return swept, nil
}
