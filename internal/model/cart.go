package model

import (
	"time"

	"github.com/google/uuid"
)

// CartStatus is the lifecycle state of a cart.
type CartStatus string

const (
	CartStatusActive          CartStatus = "ACTIVE"
	CartStatusPendingCheckout CartStatus = "PENDING_CHECKOUT"
	CartStatusConverted       CartStatus = "CONVERTED_TO_ORDER"
)

// Cart capacity limits and lifetime.
const (
	MaxDistinctCartItems = 10
	MaxItemQuantity      = 99
	CartLifetime         = 30 * 24 * time.Hour
)

// CartItem is a single product line in a cart. One line per product ID.
type CartItem struct {
	ProductID string  `json:"productId" db:"product_id"`
	Name      string  `json:"name" db:"name"`
	ImageURL  string  `json:"imageUrl,omitempty" db:"image_url"`
	Quantity  int     `json:"quantity" db:"quantity"`
	UnitPrice float64 `json:"unitPrice" db:"unit_price"`
	Discount  float64 `json:"discount" db:"discount"`
}

// Subtotal is (unitPrice - discount) * quantity.
func (i CartItem) Subtotal() float64 {
	return LineSubtotal(i.UnitPrice, i.Discount, i.Quantity)
}

// Cart is the pre-checkout aggregate. It is an immutable value: every
// mutating operation returns a new Cart, leaving the receiver untouched,
// so a lost optimistic-concurrency race never half-applies a change.
type Cart struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"userId"`
	Currency       string     `json:"currency"`
	Status         CartStatus `json:"status"`
	Items          []CartItem `json:"items"`
	TotalAmount    float64    `json:"totalAmount"`
	DiscountAmount float64    `json:"discountAmount"`
	FinalAmount    float64    `json:"finalAmount"`
	Version        int        `json:"version"`
	ExpiresAt      time.Time  `json:"expiresAt"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// NewCart creates an empty ACTIVE cart for a user.
func NewCart(userID uuid.UUID, currency string) Cart {
	now := time.Now()
	return Cart{
		ID:        uuid.New(),
		UserID:    userID,
		Currency:  currency,
		Status:    CartStatusActive,
		Items:     nil,
		ExpiresAt: now.Add(CartLifetime),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddItem appends a product line, or increments quantity if the product
// is already present. Totals are recomputed.
func (c Cart) AddItem(productID string, quantity int, unitPrice, discount float64, name, imageURL string) (Cart, error) {
	if c.Status != CartStatusActive {
		return c, ErrCartNotActive
	}
	if productID == "" {
		return c, NewValidationError("product ID is required")
	}
	if quantity < 1 || quantity > MaxItemQuantity {
		return c, NewValidationError("quantity must be between 1 and %d", MaxItemQuantity)
	}
	if unitPrice < 0 {
		return c, NewValidationError("unit price cannot be negative")
	}
	if discount < 0 || discount > unitPrice {
		return c, NewValidationError("item discount must be between 0 and the unit price")
	}

	items := c.cloneItems()
	found := false
	for i := range items {
		if items[i].ProductID == productID {
			if items[i].Quantity+quantity > MaxItemQuantity {
				return c, ErrQuantityLimitExceeded
			}
			items[i].Quantity += quantity
			items[i].UnitPrice = unitPrice
			items[i].Discount = discount
			found = true
			break
		}
	}
	if !found {
		if len(items) >= MaxDistinctCartItems {
			return c, ErrTooManyCartItems
		}
		items = append(items, CartItem{
			ProductID: productID,
			Name:      name,
			ImageURL:  imageURL,
			Quantity:  quantity,
			UnitPrice: unitPrice,
			Discount:  discount,
		})
	}

	c.Items = items
	return c.recalculated(), nil
}

// UpdateItemQuantity replaces the quantity of an existing line. A zero
// quantity removes the line.
func (c Cart) UpdateItemQuantity(productID string, quantity int) (Cart, error) {
	if c.Status != CartStatusActive {
		return c, ErrCartNotActive
	}
	if quantity < 0 {
		return c, NewValidationError("quantity cannot be negative")
	}
	if quantity > MaxItemQuantity {
		return c, ErrQuantityLimitExceeded
	}
	if quantity == 0 {
		if !c.hasItem(productID) {
			return c, ErrCartItemNotFound
		}
		return c.RemoveItem(productID)
	}

	items := c.cloneItems()
	for i := range items {
		if items[i].ProductID == productID {
			items[i].Quantity = quantity
			c.Items = items
			return c.recalculated(), nil
		}
	}
	return c, ErrCartItemNotFound
}

// RemoveItem drops a product line. Removing an absent product is a
// no-op, not an error.
func (c Cart) RemoveItem(productID string) (Cart, error) {
	if c.Status != CartStatusActive {
		return c, ErrCartNotActive
	}
	if !c.hasItem(productID) {
		return c, nil
	}

	items := make([]CartItem, 0, len(c.Items)-1)
	for _, item := range c.Items {
		if item.ProductID != productID {
			items = append(items, item)
		}
	}
	c.Items = items
	return c.recalculated(), nil
}

// ApplyDiscount sets a cart-level discount. The amount must not exceed
// the current total.
func (c Cart) ApplyDiscount(amount float64) (Cart, error) {
	if c.Status != CartStatusActive {
		return c, ErrCartNotActive
	}
	if amount < 0 {
		return c, NewValidationError("discount cannot be negative")
	}
	if amount > c.TotalAmount {
		return c, NewValidationError("discount %.2f exceeds cart total %.2f", amount, c.TotalAmount)
	}

	c.DiscountAmount = RoundCents(amount)
	return c.recalculated(), nil
}

// Clear empties the cart and zeroes all totals. Status is unchanged.
func (c Cart) Clear() Cart {
	c.Items = nil
	c.DiscountAmount = 0
	return c.recalculated()
}

// MarkPendingCheckout starts checkout. The cart must be ACTIVE and hold
// at least one item.
func (c Cart) MarkPendingCheckout() (Cart, error) {
	if c.Status != CartStatusActive {
		return c, NewInvalidTransition(string(c.Status), string(CartStatusPendingCheckout))
	}
	if len(c.Items) == 0 {
		return c, ErrCartEmpty
	}
	c.Status = CartStatusPendingCheckout
	c.UpdatedAt = time.Now()
	return c, nil
}

// MarkConverted is the terminal transition after a successful order
// creation. A fresh cart is created for the user afterwards.
func (c Cart) MarkConverted() (Cart, error) {
	if c.Status != CartStatusPendingCheckout {
		return c, NewInvalidTransition(string(c.Status), string(CartStatusConverted))
	}
	c.Status = CartStatusConverted
	c.UpdatedAt = time.Now()
	return c, nil
}

// Renew extends the expiry window after an expired cart has been
// cleared on access.
func (c Cart) Renew() Cart {
	now := time.Now()
	c.ExpiresAt = now.Add(CartLifetime)
	c.UpdatedAt = now
	return c
}

// IsExpired reports whether the cart is past its expiry instant.
func (c Cart) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

func (c Cart) hasItem(productID string) bool {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return true
		}
	}
	return false
}

func (c Cart) cloneItems() []CartItem {
	if len(c.Items) == 0 {
		return nil
	}
	items := make([]CartItem, len(c.Items))
	copy(items, c.Items)
	return items
}

// recalculated re-derives the three totals from the item lines. The
// discount is clamped to the total so the invariant discount <= total
// survives item removal.
func (c Cart) recalculated() Cart {
	total := 0.0
	for _, item := range c.Items {
		total += item.Subtotal()
	}
	c.TotalAmount = RoundCents(total)
	if c.DiscountAmount > c.TotalAmount {
		c.DiscountAmount = c.TotalAmount
	}
	c.FinalAmount = FinalAmount(c.TotalAmount, c.DiscountAmount)
	c.UpdatedAt = time.Now()
	return c
}
