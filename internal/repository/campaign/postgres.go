package campaign

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

func (r *postgresRepo) ListActive(ctx context.Context) ([]domain.Campaign, error) {
	const q = `
SELECT id::text, name, price_cents, active, position, created_at
FROM campaigns
WHERE active = TRUE
ORDER BY position ASC, created_at ASC
`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []domain.Campaign
	for rows.Next() {
		var c domain.Campaign
		if err := rows.Scan(&c.ID, &c.Name, &c.PriceCents, &c.Active, &c.Position, &c.CreatedAt); err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range campaigns {
		items, err := r.fetchItems(ctx, campaigns[i].ID)
		if err != nil {
			return nil, err
		}
		campaigns[i].Items = items
	}
	return campaigns, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	const q = `
SELECT id::text, name, price_cents, active, position, created_at
FROM campaigns
WHERE id = $1
`
	var c domain.Campaign
	if err := r.pool.QueryRow(ctx, q, id).Scan(&c.ID, &c.Name, &c.PriceCents, &c.Active, &c.Position, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	items, err := r.fetchItems(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Items = items
	return &c, nil
}

func (r *postgresRepo) fetchItems(ctx context.Context, campaignID string) ([]domain.CampaignItem, error) {
	const q = `
SELECT menu_item_id::text, size, quantity
FROM campaign_items
WHERE campaign_id = $1
`
	rows, err := r.pool.Query(ctx, q, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.CampaignItem
	for rows.Next() {
		var it domain.CampaignItem
		if err := rows.Scan(&it.MenuItemID, &it.Size, &it.Quantity); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
