package domain

import "time"

// ProductUnit is one independently payable and deletable instance of a
// purchased item, or one whole campaign bundle. The unit ledger on an order
// is the authoritative record of payment state; units are addressed by
// position, so indices shift down after a delete.
type ProductUnit struct {
	ID          string           `json:"id"`
	MenuItemID  string           `json:"menuItemId,omitempty"`
	Name        string           `json:"name"`
	PriceCents  int64            `json:"priceCents"`
	Size        *string          `json:"size,omitempty"`
	Extras      []ExtraSelection `json:"extras,omitempty"`
	IsPaid      bool             `json:"isPaid"`
	CampaignID  *string          `json:"campaignId,omitempty"`
	BundleItems []BundleItem     `json:"bundleItems,omitempty"`
}

// BundleItem is a constituent of a campaign bundle unit. Constituents are
// not independently payable; the bundle pays or deletes as a whole.
type BundleItem struct {
	MenuItemID string  `json:"menuItemId"`
	Name       string  `json:"name"`
	Size       *string `json:"size,omitempty"`
}

// Order is the order header plus its children: the per-unit payment ledger
// and the normalized line-item mirror kept for the audit trail.
type Order struct {
	ID         string        `json:"id"`
	TableID    *string       `json:"tableId,omitempty"`
	Takeaway   bool          `json:"takeaway"`
	StaffID    string        `json:"staffId"`
	TotalCents int64         `json:"totalCents"`
	IsPaid     bool          `json:"isPaid"`
	PaidAt     *time.Time    `json:"paidAt,omitempty"`
	CampaignID *string       `json:"campaignId,omitempty"`
	Units      []ProductUnit `json:"units"`
	Lines      []OrderLine   `json:"lines,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// OrderLine mirrors the unit ledger in normalized form for reporting. It is
// not authoritative for payment state.
type OrderLine struct {
	ID             string           `json:"id"`
	OrderID        string           `json:"orderId"`
	MenuItemID     string           `json:"menuItemId,omitempty"`
	Name           string           `json:"name"`
	UnitPriceCents int64            `json:"unitPriceCents"`
	Quantity       int              `json:"quantity"`
	SubtotalCents  int64            `json:"subtotalCents"`
	Size           *string          `json:"size,omitempty"`
	Extras         []OrderLineExtra `json:"extras,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
}

type OrderLineExtra struct {
	ID             string `json:"id"`
	LineID         string `json:"lineId"`
	ExtraID        string `json:"extraId"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	Quantity       int    `json:"quantity"`
	SubtotalCents  int64  `json:"subtotalCents"`
}
