package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"cafepos/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uqOpenTable is the partial unique index enforcing at most one open order
// per table. The in-transaction check below is the fast path; the index is
// the real enforcement under concurrent creates.
const uqOpenTable = "uq_orders_open_table"

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *postgresRepo) Create(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, mapStorageErr(err)
	}
	defer tx.Rollback(ctx)

	if in.TableID != nil {
		var winner string
		err := tx.QueryRow(ctx, `
SELECT id::text
FROM orders
WHERE table_id = $1 AND is_paid = FALSE
LIMIT 1
`, *in.TableID).Scan(&winner)
		if err == nil {
			return nil, &domain.ConflictError{
				Reason:      "table already has an open order",
				OpenOrderID: winner,
			}
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
	}

	unitsJSON, err := json.Marshal(in.Units)
	if err != nil {
		return nil, fmt.Errorf("marshal units: %w", err)
	}

	var orderID string
	err = tx.QueryRow(ctx, `
INSERT INTO orders (table_id, takeaway, staff_id, total_cents, campaign_id, units)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id::text
`, in.TableID, in.Takeaway, in.StaffID, in.TotalCents, in.CampaignID, unitsJSON).Scan(&orderID)
	if err != nil {
		if conflict := r.loseCreateRace(ctx, err, in.TableID); conflict != nil {
			return nil, conflict
		}
		return nil, mapStorageErr(err)
	}

	if err := insertLines(ctx, tx, orderID, in.Lines); err != nil {
		return nil, err
	}

	if in.TableID != nil {
		cmd, err := tx.Exec(ctx, `UPDATE tables SET occupied = TRUE WHERE id = $1`, *in.TableID)
		if err != nil {
			return nil, err
		}
		if cmd.RowsAffected() == 0 {
			return nil, domain.ErrNotFound
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if conflict := r.loseCreateRace(ctx, err, in.TableID); conflict != nil {
			return nil, conflict
		}
		return nil, mapStorageErr(err)
	}
	return r.GetByID(ctx, orderID)
}

// loseCreateRace maps a unique violation on the open-table index to a
// ConflictError carrying the winning order's id, so the caller can retry
// the same cart as an append.
func (r *postgresRepo) loseCreateRace(ctx context.Context, err error, tableID *string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" || pgErr.ConstraintName != uqOpenTable || tableID == nil {
		return nil
	}
	var winner string
	if qerr := r.pool.QueryRow(ctx, `
SELECT id::text
FROM orders
WHERE table_id = $1 AND is_paid = FALSE
LIMIT 1
`, *tableID).Scan(&winner); qerr != nil {
		r.logger.Printf("order repo: lost create race on table %s but cannot read winner: %v", *tableID, qerr)
	}
	return &domain.ConflictError{
		Reason:      "table already has an open order",
		OpenOrderID: winner,
	}
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return fetchOrder(ctx, r.pool, `
SELECT id::text, table_id::text, takeaway, staff_id, total_cents, is_paid, paid_at, campaign_id::text, units, created_at
FROM orders
WHERE id = $1
`, id)
}

func (r *postgresRepo) ListOpenByTable(ctx context.Context, tableID string) ([]domain.Order, error) {
	const q = `
SELECT id::text
FROM orders
WHERE table_id = $1 AND is_paid = FALSE
ORDER BY created_at ASC
`
	rows, err := r.pool.Query(ctx, q, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		o, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, nil
}

func (r *postgresRepo) Append(ctx context.Context, orderID string, in AppendInput) (*domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, mapStorageErr(err)
	}
	defer tx.Rollback(ctx)

	st, err := lockHeader(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if st.isPaid {
		return nil, &domain.ConflictError{Reason: "order already paid"}
	}

	units := append(st.units, in.Units...)
	unitsJSON, err := json.Marshal(units)
	if err != nil {
		return nil, fmt.Errorf("marshal units: %w", err)
	}

	if _, err := tx.Exec(ctx, `
UPDATE orders
SET units = $1,
    total_cents = total_cents + $2
WHERE id = $3
`, unitsJSON, in.AddedCents, orderID); err != nil {
		return nil, err
	}

	if err := insertLines(ctx, tx, orderID, in.Lines); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapStorageErr(err)
	}
	return r.GetByID(ctx, orderID)
}

func (r *postgresRepo) MarkUnitPaid(ctx context.Context, orderID string, unitIndex int) (*domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, mapStorageErr(err)
	}
	defer tx.Rollback(ctx)

	st, err := lockHeader(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if unitIndex < 0 || unitIndex >= len(st.units) {
		return nil, &domain.ValidationError{Reason: fmt.Sprintf("unit index %d out of range", unitIndex)}
	}
	if st.units[unitIndex].IsPaid {
		// Paying a paid unit is a no-op, not an error.
		return r.GetByID(ctx, orderID)
	}

	st.units[unitIndex].IsPaid = true
	if err := writePaymentState(ctx, tx, orderID, st); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapStorageErr(err)
	}
	return r.GetByID(ctx, orderID)
}

func (r *postgresRepo) MarkAllUnitsPaid(ctx context.Context, orderID string) (*domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, mapStorageErr(err)
	}
	defer tx.Rollback(ctx)

	st, err := lockHeader(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	for i := range st.units {
		st.units[i].IsPaid = true
	}
	if err := writePaymentState(ctx, tx, orderID, st); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapStorageErr(err)
	}
	return r.GetByID(ctx, orderID)
}

func (r *postgresRepo) DeleteUnit(ctx context.Context, orderID string, unitIndex int) (*domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, mapStorageErr(err)
	}
	defer tx.Rollback(ctx)

	st, err := lockHeader(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if unitIndex < 0 || unitIndex >= len(st.units) {
		return nil, &domain.ValidationError{Reason: fmt.Sprintf("unit index %d out of range", unitIndex)}
	}

	var mirrorCents int64
	if err := tx.QueryRow(ctx, `
SELECT COALESCE(SUM(subtotal_cents), 0)
FROM order_lines
WHERE order_id = $1
`, orderID).Scan(&mirrorCents); err != nil {
		return nil, err
	}
	if mirrorCents != st.totalCents {
		drift := &domain.ConsistencyError{
			Reason: fmt.Sprintf("order %s: line mirror sum %d != ledger total %d", orderID, mirrorCents, st.totalCents),
		}
		r.logger.Printf("order repo: %v (mirror will be rewritten)", drift)
	}

	// Splice: later indices shift down, so stale indices must not be reused
	// by callers after a delete.
	st.units = append(st.units[:unitIndex], st.units[unitIndex+1:]...)

	var total int64
	for _, u := range st.units {
		total += u.PriceCents
	}
	st.totalCents = total

	unitsJSON, err := json.Marshal(st.units)
	if err != nil {
		return nil, fmt.Errorf("marshal units: %w", err)
	}
	allPaid := len(st.units) > 0
	for _, u := range st.units {
		if !u.IsPaid {
			allPaid = false
			break
		}
	}
	paidAt := st.paidAt
	if allPaid && !st.isPaid {
		now := time.Now().UTC()
		paidAt = &now
	}
	if !allPaid {
		paidAt = nil
	}

	if _, err := tx.Exec(ctx, `
UPDATE orders
SET units = $1,
    total_cents = $2,
    is_paid = $3,
    paid_at = $4
WHERE id = $5
`, unitsJSON, total, allPaid, paidAt, orderID); err != nil {
		return nil, err
	}

	// Strict co-update: the normalized mirror is rewritten from the
	// surviving units in the same transaction.
	if _, err := tx.Exec(ctx, `DELETE FROM order_lines WHERE order_id = $1`, orderID); err != nil {
		return nil, err
	}
	if err := insertLines(ctx, tx, orderID, linesFromUnits(st.units)); err != nil {
		return nil, err
	}

	if st.tableID != nil {
		if err := recomputeOccupancy(ctx, tx, *st.tableID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapStorageErr(err)
	}
	return r.GetByID(ctx, orderID)
}

func (r *postgresRepo) Transfer(ctx context.Context, sourceTableID, targetTableID string) ([]domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, mapStorageErr(err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tables WHERE id = $1)`, targetTableID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrNotFound
	}

	var winner string
	err = tx.QueryRow(ctx, `
SELECT id::text
FROM orders
WHERE table_id = $1 AND is_paid = FALSE
LIMIT 1
FOR UPDATE
`, targetTableID).Scan(&winner)
	if err == nil {
		return nil, &domain.ConflictError{Reason: "target table already has an open order", OpenOrderID: winner}
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	srcRows, err := tx.Query(ctx, `
SELECT id::text, takeaway, staff_id, total_cents, campaign_id::text, units, created_at
FROM orders
WHERE table_id = $1 AND is_paid = FALSE
ORDER BY created_at ASC
FOR UPDATE
`, sourceTableID)
	if err != nil {
		return nil, err
	}
	type sourceOrder struct {
		id         string
		takeaway   bool
		staffID    string
		totalCents int64
		campaignID *string
		unitsJSON  []byte
		createdAt  time.Time
	}
	var sources []sourceOrder
	for srcRows.Next() {
		var src sourceOrder
		if err := srcRows.Scan(&src.id, &src.takeaway, &src.staffID, &src.totalCents, &src.campaignID, &src.unitsJSON, &src.createdAt); err != nil {
			srcRows.Close()
			return nil, err
		}
		sources = append(sources, src)
	}
	srcRows.Close()
	if err := srcRows.Err(); err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, domain.ErrNotFound
	}

	var movedIDs []string
	for _, src := range sources {
		// The copy keeps the original createdAt so the order's age survives
		// the move.
		var newID string
		if err := tx.QueryRow(ctx, `
INSERT INTO orders (table_id, takeaway, staff_id, total_cents, campaign_id, units, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id::text
`, targetTableID, src.takeaway, src.staffID, src.totalCents, src.campaignID, src.unitsJSON, src.createdAt).Scan(&newID); err != nil {
			return nil, mapStorageErr(err)
		}

		lines, err := fetchLines(ctx, tx, src.id)
		if err != nil {
			return nil, err
		}
		if err := insertLines(ctx, tx, newID, lineInputs(lines)); err != nil {
			return nil, err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, src.id); err != nil {
			return nil, err
		}
		movedIDs = append(movedIDs, newID)
	}

	if err := recomputeOccupancy(ctx, tx, sourceTableID); err != nil {
		return nil, err
	}
	if err := recomputeOccupancy(ctx, tx, targetTableID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapStorageErr(err)
	}

	moved := make([]domain.Order, 0, len(movedIDs))
	for _, id := range movedIDs {
		o, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		moved = append(moved, *o)
	}
	return moved, nil
}

func (r *postgresRepo) Cancel(ctx context.Context, orderID string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return mapStorageErr(err)
	}
	defer tx.Rollback(ctx)

	var tableID *string
	if err := tx.QueryRow(ctx, `
SELECT table_id::text
FROM orders
WHERE id = $1
FOR UPDATE
`, orderID).Scan(&tableID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, orderID); err != nil {
		return err
	}

	if tableID != nil {
		if err := recomputeOccupancy(ctx, tx, *tableID); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return mapStorageErr(err)
	}
	return nil
}

// headerState is the locked view of a header inside a mutation transaction.
type headerState struct {
	units      []domain.ProductUnit
	tableID    *string
	isPaid     bool
	paidAt     *time.Time
	totalCents int64
}

func lockHeader(ctx context.Context, tx pgx.Tx, orderID string) (*headerState, error) {
	var st headerState
	var unitsJSON []byte
	err := tx.QueryRow(ctx, `
SELECT units, table_id::text, is_paid, paid_at, total_cents
FROM orders
WHERE id = $1
FOR UPDATE
`, orderID).Scan(&unitsJSON, &st.tableID, &st.isPaid, &st.paidAt, &st.totalCents)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(unitsJSON, &st.units); err != nil {
		return nil, fmt.Errorf("unmarshal units: %w", err)
	}
	return &st, nil
}

// writePaymentState persists the mutated unit ledger and the derived header
// payment state. paidAt is set only on the false-to-true transition, and the
// table is freed only when no open header remains on it.
func writePaymentState(ctx context.Context, tx pgx.Tx, orderID string, st *headerState) error {
	unitsJSON, err := json.Marshal(st.units)
	if err != nil {
		return fmt.Errorf("marshal units: %w", err)
	}

	allPaid := len(st.units) > 0
	for _, u := range st.units {
		if !u.IsPaid {
			allPaid = false
			break
		}
	}
	paidAt := st.paidAt
	if allPaid && !st.isPaid {
		now := time.Now().UTC()
		paidAt = &now
	}

	if _, err := tx.Exec(ctx, `
UPDATE orders
SET units = $1,
    is_paid = $2,
    paid_at = $3
WHERE id = $4
`, unitsJSON, allPaid, paidAt, orderID); err != nil {
		return err
	}

	if st.tableID != nil {
		return recomputeOccupancy(ctx, tx, *st.tableID)
	}
	return nil
}

// recomputeOccupancy derives the cached occupied flag from the open-header
// set, inside the caller's transaction.
func recomputeOccupancy(ctx context.Context, tx pgx.Tx, tableID string) error {
	_, err := tx.Exec(ctx, `
UPDATE tables
SET occupied = EXISTS (
	SELECT 1 FROM orders WHERE table_id = $1 AND is_paid = FALSE
)
WHERE id = $1
`, tableID)
	return err
}

func insertLines(ctx context.Context, tx pgx.Tx, orderID string, lines []LineInput) error {
	for _, ln := range lines {
		var menuItemID *string
		if ln.MenuItemID != "" {
			menuItemID = &ln.MenuItemID
		}
		var lineID string
		if err := tx.QueryRow(ctx, `
INSERT INTO order_lines (order_id, menu_item_id, name, unit_price_cents, quantity, subtotal_cents, size)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id::text
`, orderID, menuItemID, ln.Name, ln.UnitPriceCents, ln.Quantity, ln.SubtotalCents, ln.Size).Scan(&lineID); err != nil {
			return err
		}
		for _, ex := range ln.Extras {
			if _, err := tx.Exec(ctx, `
INSERT INTO order_line_extras (line_id, extra_id, name, unit_price_cents, quantity, subtotal_cents)
VALUES ($1, $2, $3, $4, $5, $6)
`, lineID, ex.ExtraID, ex.Name, ex.UnitPriceCents, ex.Quantity, ex.SubtotalCents); err != nil {
				return err
			}
		}
	}
	return nil
}

// linesFromUnits rebuilds the normalized mirror from the unit ledger after a
// delete. Each surviving unit becomes a quantity-one line; identical units
// are not re-grouped.
func linesFromUnits(units []domain.ProductUnit) []LineInput {
	lines := make([]LineInput, 0, len(units))
	for _, u := range units {
		var extrasCents int64
		extras := make([]LineExtraInput, 0, len(u.Extras))
		for _, e := range u.Extras {
			extrasCents += e.PriceCents * int64(e.Quantity)
			extras = append(extras, LineExtraInput{
				ExtraID:        e.ExtraID,
				Name:           e.Name,
				UnitPriceCents: e.PriceCents,
				Quantity:       e.Quantity,
				SubtotalCents:  e.PriceCents * int64(e.Quantity),
			})
		}
		lines = append(lines, LineInput{
			MenuItemID:     u.MenuItemID,
			Name:           u.Name,
			UnitPriceCents: u.PriceCents - extrasCents,
			Quantity:       1,
			SubtotalCents:  u.PriceCents,
			Size:           u.Size,
			Extras:         extras,
		})
	}
	return lines
}

func lineInputs(lines []domain.OrderLine) []LineInput {
	inputs := make([]LineInput, 0, len(lines))
	for _, ln := range lines {
		extras := make([]LineExtraInput, 0, len(ln.Extras))
		for _, ex := range ln.Extras {
			extras = append(extras, LineExtraInput{
				ExtraID:        ex.ExtraID,
				Name:           ex.Name,
				UnitPriceCents: ex.UnitPriceCents,
				Quantity:       ex.Quantity,
				SubtotalCents:  ex.SubtotalCents,
			})
		}
		inputs = append(inputs, LineInput{
			MenuItemID:     ln.MenuItemID,
			Name:           ln.Name,
			UnitPriceCents: ln.UnitPriceCents,
			Quantity:       ln.Quantity,
			SubtotalCents:  ln.SubtotalCents,
			Size:           ln.Size,
			Extras:         extras,
		})
	}
	return inputs
}

func fetchOrder(ctx context.Context, q querier, orderQuery string, args ...any) (*domain.Order, error) {
	var o domain.Order
	var unitsJSON []byte
	err := q.QueryRow(ctx, orderQuery, args...).Scan(
		&o.ID,
		&o.TableID,
		&o.Takeaway,
		&o.StaffID,
		&o.TotalCents,
		&o.IsPaid,
		&o.PaidAt,
		&o.CampaignID,
		&unitsJSON,
		&o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(unitsJSON, &o.Units); err != nil {
		return nil, fmt.Errorf("unmarshal units: %w", err)
	}

	lines, err := fetchLines(ctx, q, o.ID)
	if err != nil {
		return nil, err
	}
	o.Lines = lines
	return &o, nil
}

func fetchLines(ctx context.Context, q querier, orderID string) ([]domain.OrderLine, error) {
	const linesQuery = `
SELECT id::text, order_id::text, COALESCE(menu_item_id::text, ''), name, unit_price_cents, quantity, subtotal_cents, size, created_at
FROM order_lines
WHERE order_id = $1
ORDER BY created_at ASC, id ASC
`
	rows, err := q.Query(ctx, linesQuery, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []domain.OrderLine
	for rows.Next() {
		var ln domain.OrderLine
		if err := rows.Scan(&ln.ID, &ln.OrderID, &ln.MenuItemID, &ln.Name, &ln.UnitPriceCents, &ln.Quantity, &ln.SubtotalCents, &ln.Size, &ln.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, ln)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range lines {
		extras, err := fetchLineExtras(ctx, q, lines[i].ID)
		if err != nil {
			return nil, err
		}
		lines[i].Extras = extras
	}
	return lines, nil
}

func fetchLineExtras(ctx context.Context, q querier, lineID string) ([]domain.OrderLineExtra, error) {
	const extrasQuery = `
SELECT id::text, line_id::text, extra_id::text, name, unit_price_cents, quantity, subtotal_cents
FROM order_line_extras
WHERE line_id = $1
ORDER BY id ASC
`
	rows, err := q.Query(ctx, extrasQuery, lineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var extras []domain.OrderLineExtra
	for rows.Next() {
		var ex domain.OrderLineExtra
		if err := rows.Scan(&ex.ID, &ex.LineID, &ex.ExtraID, &ex.Name, &ex.UnitPriceCents, &ex.Quantity, &ex.SubtotalCents); err != nil {
			return nil, err
		}
		extras = append(extras, ex)
	}
	return extras, rows.Err()
}

// mapStorageErr tags retryable aborts (serialization failure, deadlock) so
// callers can safely retry the whole operation.
func mapStorageErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %v", domain.ErrTransientStorage, err)
		}
	}
	return err
}
