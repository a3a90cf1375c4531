package campaign

import (
	"context"

	"cafepos/internal/domain"
)

type Repository interface {
	// ListActive returns active campaigns in listing order, items included.
	ListActive(ctx context.Context) ([]domain.Campaign, error)
	GetByID(ctx context.Context, id string) (*domain.Campaign, error)
}
