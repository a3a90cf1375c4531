package order

import (
	"context"

	"cafepos/internal/domain"
)

type CreateOrderInput struct {
	TableID    *string
	Takeaway   bool
	StaffID    string
	TotalCents int64
	CampaignID *string
	Units      []domain.ProductUnit
	Lines      []LineInput
}

type AppendInput struct {
	// AddedCents is added to the stored total. The total is never recomputed
	// from scratch on append, so already-paid units keep their recorded
	// prices.
	AddedCents int64
	Units      []domain.ProductUnit
	Lines      []LineInput
}

type LineInput struct {
	MenuItemID     string
	Name           string
	UnitPriceCents int64
	Quantity       int
	SubtotalCents  int64
	Size           *string
	Extras         []LineExtraInput
}

type LineExtraInput struct {
	ExtraID        string
	Name           string
	UnitPriceCents int64
	Quantity       int
	SubtotalCents  int64
}

// Repository persists order headers, the per-unit payment ledger and the
// normalized line-item mirror. Every mutation runs as one transaction over
// the header and all of its children; table occupancy is recomputed inside
// the same transaction whenever the open-header set can change.
type Repository interface {
	Create(ctx context.Context, in CreateOrderInput) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListOpenByTable(ctx context.Context, tableID string) ([]domain.Order, error)
	Append(ctx context.Context, orderID string, in AppendInput) (*domain.Order, error)
	MarkUnitPaid(ctx context.Context, orderID string, unitIndex int) (*domain.Order, error)
	MarkAllUnitsPaid(ctx context.Context, orderID string) (*domain.Order, error)
	DeleteUnit(ctx context.Context, orderID string, unitIndex int) (*domain.Order, error)
	Transfer(ctx context.Context, sourceTableID, targetTableID string) ([]domain.Order, error)
	Cancel(ctx context.Context, orderID string) error
}
