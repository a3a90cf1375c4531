package domain

import "time"

// Campaign is a fixed-price bundle of specific menu items. It applies only
// when a cart's item multiset exactly equals the required set.
type Campaign struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	PriceCents int64          `json:"priceCents"`
	Active     bool           `json:"active"`
	Position   int            `json:"position"`
	Items      []CampaignItem `json:"items"`
	CreatedAt  time.Time      `json:"createdAt"`
}

type CampaignItem struct {
	MenuItemID string  `json:"menuItemId"`
	Size       *string `json:"size,omitempty"`
	Quantity   int     `json:"quantity"`
}
