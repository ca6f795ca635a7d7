package orders

import (
	"context"
	"fmt"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StockRepo is the Postgres StockLedger and CatalogReader.
// Every stock change is a single-row conditional UPDATE; no multi-row tx is needed.
type StockRepo struct{ DB *pgxpool.Pool }

// Reserve decrements stock only while stock >= qty, so concurrent callers can never overdraw.
func (r *StockRepo) Reserve(ctx context.Context, itemID string, qty int) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`, itemID, qty)
	if err != nil {
		return false, fmt.Errorf("reserve %s: %w", itemID, err)
	}
	if ct.RowsAffected() == 1 {
		return true, nil
	}
	// zero rows: either unknown item or not enough stock
	if err := r.mustExist(ctx, itemID); err != nil {
		return false, err
	}
	return false, nil
}

func (r *StockRepo) Release(ctx context.Context, itemID string, qty int) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1`, itemID, qty)
	if err != nil {
		return fmt.Errorf("release %s: %w", itemID, err)
	}
	if ct.RowsAffected() != 1 {
		return &NotFoundError{Resource: "item", ID: itemID}
	}
	return nil
}

func (r *StockRepo) ResolveItems(ctx context.Context, ids []string) (map[string]CatalogItem, error) {
	out := make(map[string]CatalogItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.DB.Query(ctx, `
		SELECT id, title, price_cents, sale_price_cents, stock, is_active
		FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it CatalogItem
		if err := rows.Scan(&it.ID, &it.Title, &it.PriceCents, &it.SalePriceCents, &it.Stock, &it.IsActive); err != nil {
			return nil, err
		}
		out[it.ID] = it
	}
	return out, rows.Err()
}

// Stock reads the current stock of one item.
func (r *StockRepo) Stock(ctx context.Context, itemID string) (int, error) {
	var n int
	err := r.DB.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1`, itemID).Scan(&n)
	if err != nil {
		if isNoRows(err) {
			return 0, &NotFoundError{Resource: "item", ID: itemID}
		}
		return 0, err
	}
	return n, nil
}

func (r *StockRepo) mustExist(ctx context.Context, itemID string) error {
	var exists bool
	if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id=$1)`, itemID).Scan(&exists); err != nil {
		return fmt.Errorf("lookup %s: %w", itemID, err)
	}
	if !exists {
		return &NotFoundError{Resource: "item", ID: itemID}
	}
	return nil
}

// Upsert writes a catalog item, replacing price, stock and activity of an existing row.
func (r *StockRepo) Upsert(ctx context.Context, it CatalogItem) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO products (id, title, price_cents, sale_price_cents, stock, is_active)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title, price_cents = EXCLUDED.price_cents,
			sale_price_cents = EXCLUDED.sale_price_cents, stock = EXCLUDED.stock,
			is_active = EXCLUDED.is_active, updated_at = now()`,
		it.ID, it.Title, it.PriceCents, it.SalePriceCents, it.Stock, it.IsActive)
	if err != nil {
		return fmt.Errorf("upsert item %s: %w", it.ID, err)
	}
	return nil
}
