package domain

import "time"

type MenuItem struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	BasePriceCents int64     `json:"basePriceCents"`
	// Sizes is empty for items sold at a single price.
	Sizes     []SizePrice `json:"sizes,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

type SizePrice struct {
	Size       string `json:"size"`
	PriceCents int64  `json:"priceCents"`
}

type Extra struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"priceCents"`
}

// ExtraSelection is a priced extra attached to a unit or cart line.
type ExtraSelection struct {
	ExtraID    string `json:"extraId"`
	Name       string `json:"name"`
	PriceCents int64  `json:"priceCents"`
	Quantity   int    `json:"quantity"`
}

// CartLine is a staged menu selection. It is never persisted; committed
// carts become product units and normalized order lines.
type CartLine struct {
	MenuItemID string           `json:"menuItemId"`
	Quantity   int              `json:"quantity"`
	Size       *string          `json:"size,omitempty"`
	Extras     []ExtraSelection `json:"extras,omitempty"`
}
