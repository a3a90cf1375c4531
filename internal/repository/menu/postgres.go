package menu

import (
	"context"
	"errors"

	"cafepos/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) GetItem(ctx context.Context, id string) (*domain.MenuItem, error) {
	const q = `
SELECT id::text, name, base_price_cents, created_at
FROM menu_items
WHERE id = $1
`
	var item domain.MenuItem
	if err := r.pool.QueryRow(ctx, q, id).Scan(&item.ID, &item.Name, &item.BasePriceCents, &item.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	sizes, err := r.fetchSizes(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	item.Sizes = sizes
	return &item, nil
}

func (r *postgresRepo) GetExtra(ctx context.Context, id string) (*domain.Extra, error) {
	const q = `
SELECT id::text, name, price_cents
FROM extras
WHERE id = $1
`
	var extra domain.Extra
	if err := r.pool.QueryRow(ctx, q, id).Scan(&extra.ID, &extra.Name, &extra.PriceCents); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &extra, nil
}

func (r *postgresRepo) ListItems(ctx context.Context) ([]domain.MenuItem, error) {
	const q = `
SELECT id::text, name, base_price_cents, created_at
FROM menu_items
ORDER BY name ASC
`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.MenuItem
	for rows.Next() {
		var item domain.MenuItem
		if err := rows.Scan(&item.ID, &item.Name, &item.BasePriceCents, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range items {
		sizes, err := r.fetchSizes(ctx, items[i].ID)
		if err != nil {
			return nil, err
		}
		items[i].Sizes = sizes
	}
	return items, nil
}

func (r *postgresRepo) fetchSizes(ctx context.Context, itemID string) ([]domain.SizePrice, error) {
	const q = `
SELECT size, price_cents
FROM menu_item_sizes
WHERE menu_item_id = $1
ORDER BY price_cents ASC
`
	rows, err := r.pool.Query(ctx, q, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sizes []domain.SizePrice
	for rows.Next() {
		var s domain.SizePrice
		if err := rows.Scan(&s.Size, &s.PriceCents); err != nil {
			return nil, err
		}
		sizes = append(sizes, s)
	}
	return sizes, rows.Err()
}
