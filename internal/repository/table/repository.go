package table

import (
	"context"

	"cafepos/internal/domain"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Table, error)
	List(ctx context.Context) ([]domain.Table, error)
}
