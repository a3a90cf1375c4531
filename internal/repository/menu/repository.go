package menu

import (
	"context"

	"cafepos/internal/domain"
)

type Repository interface {
	GetItem(ctx context.Context, id string) (*domain.MenuItem, error)
	GetExtra(ctx context.Context, id string) (*domain.Extra, error)
	ListItems(ctx context.Context) ([]domain.MenuItem, error)
}
