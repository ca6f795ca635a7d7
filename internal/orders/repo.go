package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"strings"
	"time"
)

// Repo is the Postgres order Store. Items and address are embedded as JSONB.
type Repo struct{ DB *pgxpool.Pool }

const orderColumns = `id, owner_id, items, total_cents, status, payment_status,
	payment_intent_id, issued_payment_intent_id, shipping_address, currency,
	cancellation_reason, created_at, updated_at, paid_at, shipped_at, delivered_at,
	cancelled_at, version`

func (r *Repo) Create(ctx context.Context, o Order) error {
	items, addr, err := encodeEmbedded(o)
	if err != nil {
		return err
	}
	_, err = r.DB.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		o.ID, o.OwnerID, items, o.TotalCents, string(o.Status), string(o.PaymentStatus),
		nullIfEmpty(o.PaymentIntentID), nullIfEmpty(o.IssuedPaymentIntentID), addr, o.Currency,
		nullIfEmpty(o.CancellationReason), o.CreatedAt, o.UpdatedAt, o.PaidAt, o.ShippedAt,
		o.DeliveredAt, o.CancelledAt, o.Version,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if isNoRows(err) {
			return Order{}, &NotFoundError{Resource: "order", ID: id}
		}
		return Order{}, err
	}
	return o, nil
}

// Update writes every mutable field when the stored version still equals o.Version.
func (r *Repo) Update(ctx context.Context, o Order) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET
			status = $3, payment_status = $4, payment_intent_id = $5,
			issued_payment_intent_id = $6, cancellation_reason = $7, updated_at = $8,
			paid_at = $9, shipped_at = $10, delivered_at = $11, cancelled_at = $12,
			version = version + 1
		WHERE id = $1 AND version = $2`,
		o.ID, o.Version, string(o.Status), string(o.PaymentStatus),
		nullIfEmpty(o.PaymentIntentID), nullIfEmpty(o.IssuedPaymentIntentID),
		nullIfEmpty(o.CancellationReason), o.UpdatedAt,
		o.PaidAt, o.ShippedAt, o.DeliveredAt, o.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, o.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return &NotFoundError{Resource: "order", ID: o.ID}
	}
	return ErrStaleOrder
}

func (r *Repo) List(ctx context.Context, f ListFilter) ([]Order, int, error) {
	f = f.Normalize()

	var (
		where []string
		args  []any
	)
	if f.OwnerID != "" {
		args = append(args, f.OwnerID)
		where = append(where, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	args = append(args, f.Limit, f.Offset())
	q := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		orderColumns, cond, len(args)-1, len(args))
	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o                          Order
		items, addr                []byte
		status, payStatus          string
		intent, issued, cancelNote *string
		paidAt, shippedAt          *time.Time
		deliveredAt, cancelledAt   *time.Time
	)
	err := row.Scan(&o.ID, &o.OwnerID, &items, &o.TotalCents, &status, &payStatus,
		&intent, &issued, &addr, &o.Currency, &cancelNote, &o.CreatedAt, &o.UpdatedAt,
		&paidAt, &shippedAt, &deliveredAt, &cancelledAt, &o.Version)
	if err != nil {
		return Order{}, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return Order{}, fmt.Errorf("decode items of %s: %w", o.ID, err)
	}
	if err := json.Unmarshal(addr, &o.ShippingAddress); err != nil {
		return Order{}, fmt.Errorf("decode address of %s: %w", o.ID, err)
	}
	o.Status = Status(status)
	o.PaymentStatus = PaymentStatus(payStatus)
	o.PaymentIntentID = deref(intent)
	o.IssuedPaymentIntentID = deref(issued)
	o.CancellationReason = deref(cancelNote)
	o.PaidAt, o.ShippedAt, o.DeliveredAt, o.CancelledAt = paidAt, shippedAt, deliveredAt, cancelledAt
	return o, nil
}

func encodeEmbedded(o Order) (items, addr []byte, err error) {
	if items, err = json.Marshal(o.Items); err != nil {
		return nil, nil, fmt.Errorf("encode items: %w", err)
	}
	if addr, err = json.Marshal(o.ShippingAddress); err != nil {
		return nil, nil, fmt.Errorf("encode address: %w", err)
	}
	return items, addr, nil
}

func isNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
