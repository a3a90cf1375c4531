package seed

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type itemSeed struct {
	Name           string
	BasePriceCents int64
	Sizes          map[string]int64
}

type extraSeed struct {
	Name       string
	PriceCents int64
}

// Apply inserts basic seed data for manual testing. It is idempotent via ON CONFLICT.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	items := []itemSeed{
		{Name: "Latte", BasePriceCents: 5000, Sizes: map[string]int64{"MEDIUM": 6000, "LARGE": 7000}},
		{Name: "Espresso", BasePriceCents: 3500},
		{Name: "Cheesecake", BasePriceCents: 5500},
		{Name: "Bagel", BasePriceCents: 4000},
	}
	itemIDs := make(map[string]string, len(items))
	for _, it := range items {
		id, err := upsertItem(ctx, pool, it)
		if err != nil {
			return fmt.Errorf("upsert menu item %s: %w", it.Name, err)
		}
		itemIDs[it.Name] = id
	}

	extras := []extraSeed{
		{Name: "Oat milk", PriceCents: 800},
		{Name: "Extra shot", PriceCents: 1000},
	}
	for _, ex := range extras {
		if err := upsertExtra(ctx, pool, ex); err != nil {
			return fmt.Errorf("upsert extra %s: %w", ex.Name, err)
		}
	}

	if err := upsertBreakfastCampaign(ctx, pool, itemIDs["Latte"], itemIDs["Bagel"]); err != nil {
		return fmt.Errorf("upsert campaign: %w", err)
	}

	for _, name := range []string{"Table 1", "Table 2", "Table 3", "Window"} {
		if err := upsertTable(ctx, pool, name); err != nil {
			return fmt.Errorf("upsert table %s: %w", name, err)
		}
	}

	return nil
}

func upsertItem(ctx context.Context, pool *pgxpool.Pool, it itemSeed) (string, error) {
	const q = `
INSERT INTO menu_items (name, base_price_cents)
VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET base_price_cents = EXCLUDED.base_price_cents
RETURNING id::text
`
	var id string
	if err := pool.QueryRow(ctx, q, it.Name, it.BasePriceCents).Scan(&id); err != nil {
		return "", err
	}
	for size, price := range it.Sizes {
		const sq = `
INSERT INTO menu_item_sizes (menu_item_id, size, price_cents)
VALUES ($1, $2, $3)
ON CONFLICT (menu_item_id, size) DO UPDATE SET price_cents = EXCLUDED.price_cents
`
		if _, err := pool.Exec(ctx, sq, id, size, price); err != nil {
			return "", err
		}
	}
	return id, nil
}

func upsertExtra(ctx context.Context, pool *pgxpool.Pool, ex extraSeed) error {
	const q = `
INSERT INTO extras (name, price_cents)
VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET price_cents = EXCLUDED.price_cents
`
	_, err := pool.Exec(ctx, q, ex.Name, ex.PriceCents)
	return err
}

func upsertBreakfastCampaign(ctx context.Context, pool *pgxpool.Pool, latteID, bagelID string) error {
	const q = `
INSERT INTO campaigns (name, price_cents, active, position)
VALUES ('Breakfast Deal', 8000, TRUE, 1)
ON CONFLICT (name) DO UPDATE SET price_cents = EXCLUDED.price_cents, active = EXCLUDED.active
RETURNING id::text
`
	var id string
	if err := pool.QueryRow(ctx, q).Scan(&id); err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, `DELETE FROM campaign_items WHERE campaign_id = $1`, id); err != nil {
		return err
	}
	const iq = `
INSERT INTO campaign_items (campaign_id, menu_item_id, size, quantity)
VALUES ($1, $2, $3, $4)
`
	medium := "MEDIUM"
	if _, err := pool.Exec(ctx, iq, id, latteID, &medium, 1); err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, iq, id, bagelID, nil, 1); err != nil {
		return err
	}
	return nil
}

func upsertTable(ctx context.Context, pool *pgxpool.Pool, name string) error {
	const q = `
INSERT INTO tables (name)
VALUES ($1)
ON CONFLICT (name) DO NOTHING
`
	_, err := pool.Exec(ctx, q, name)
	return err
}
