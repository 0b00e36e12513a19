package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"courier-dispatch/internal/domain/order"
	"courier-dispatch/internal/domain/protocol"
	"courier-dispatch/internal/ports"

	"github.com/jackc/pgx/v5"
)

// OrderRepo persists orders using pgx and plain SQL. Line items ride along as
// a jsonb column; they are immutable after creation so there is no item table.
type OrderRepo struct{}

// NewOrderRepo constructs a new OrderRepo.
func NewOrderRepo() ports.OrderRepository {
	return &OrderRepo{}
}

const orderColumns = `
	id, order_number, client_id, driver_id, status, seen_by_admin,
	created_at, updated_at, assigned_at, delivered_at, cancelled_at, redistributed_at,
	delivery_comment, cancel_reason, cancel_comment, items, total`

// Create inserts a new order row.
func (r *OrderRepo) Create(ctx context.Context, o *order.Order) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal line items: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (
			order_number, client_id, status, seen_by_admin, items, total
		)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		RETURNING id, created_at, updated_at
	`,
		o.Number,
		o.ClientID,
		o.Status.String(),
		o.SeenByAdmin,
		string(items),
		o.Total,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByID fetches an order by primary key.
func (r *OrderRepo) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.get(ctx, id, false)
}

// GetForUpdate fetches an order with a row lock so concurrent transitions on
// the same order queue up instead of interleaving.
func (r *OrderRepo) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return r.get(ctx, id, true)
}

func (r *OrderRepo) get(ctx context.Context, id string, lock bool) (*order.Order, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	o, err := scanOrder(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, protocol.NotFoundf("order %s not found", id)
		}
		return nil, fmt.Errorf("query order: %w", err)
	}
	return o, nil
}

// Save writes back every mutable column of an already-loaded order.
func (r *OrderRepo) Save(ctx context.Context, o *order.Order) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE orders
		SET driver_id = $1,
		    status = $2,
		    seen_by_admin = $3,
		    updated_at = $4,
		    assigned_at = $5,
		    delivered_at = $6,
		    cancelled_at = $7,
		    redistributed_at = $8,
		    delivery_comment = $9,
		    cancel_reason = $10,
		    cancel_comment = $11
		WHERE id = $12
	`,
		o.DriverID,
		o.Status.String(),
		o.SeenByAdmin,
		o.UpdatedAt,
		o.AssignedAt,
		o.DeliveredAt,
		o.CancelledAt,
		o.RedistributedAt,
		o.DeliveryComment,
		o.CancelReason,
		o.CancelComment,
		o.ID,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return nil
}

// ListByStatus returns the newest orders in a status bucket.
func (r *OrderRepo) ListByStatus(ctx context.Context, status order.Status, limit int) ([]*order.Order, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, status.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("query orders by status: %w", err)
	}
	defer rows.Close()

	var out []*order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// CountUnseen counts orders in a bucket the admin has not yet looked at.
func (r *OrderRepo) CountUnseen(ctx context.Context, status order.Status) (int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	err = tx.QueryRow(ctx, `
		SELECT count(*) FROM orders WHERE status = $1 AND seen_by_admin = false
	`, status.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unseen orders: %w", err)
	}
	return n, nil
}

// MarkBucketSeen flips seen_by_admin for every order currently in the bucket
// and reports how many rows changed.
func (r *OrderRepo) MarkBucketSeen(ctx context.Context, status order.Status) (int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE orders SET seen_by_admin = true
		WHERE status = $1 AND seen_by_admin = false
	`, status.String())
	if err != nil {
		return 0, fmt.Errorf("mark bucket seen: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// CountByStatusBetween counts orders that entered a status inside a window,
// judged by the matching lifecycle timestamp.
func (r *OrderRepo) CountByStatusBetween(ctx context.Context, status order.Status, start, end time.Time) (int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	col := lifecycleColumnFor(status)
	var n int
	err = tx.QueryRow(ctx, `
		SELECT count(*) FROM orders
		WHERE status = $1 AND `+col+` >= $2 AND `+col+` < $3
	`, status.String(), start, end).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count orders by status: %w", err)
	}
	return n, nil
}

// SumDeliveredTotalBetween sums the totals of orders delivered in a window.
func (r *OrderRepo) SumDeliveredTotalBetween(ctx context.Context, start, end time.Time) (float64, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var sum float64
	err = tx.QueryRow(ctx, `
		SELECT coalesce(sum(total), 0) FROM orders
		WHERE status = 'DELIVERED' AND delivered_at >= $1 AND delivered_at < $2
	`, start, end).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum delivered totals: %w", err)
	}
	return sum, nil
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var o order.Order
	var status string
	var items []byte

	err := row.Scan(
		&o.ID, &o.Number, &o.ClientID, &o.DriverID, &status, &o.SeenByAdmin,
		&o.CreatedAt, &o.UpdatedAt, &o.AssignedAt, &o.DeliveredAt, &o.CancelledAt, &o.RedistributedAt,
		&o.DeliveryComment, &o.CancelReason, &o.CancelComment, &items, &o.Total,
	)
	if err != nil {
		return nil, err
	}
	o.Status = order.Status(status)

	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return nil, fmt.Errorf("unmarshal line items: %w", err)
		}
	}
	return &o, nil
}

// lifecycleColumnFor maps a status to the timestamp column stamped when an
// order entered it. Statuses without a dedicated column fall back to updated_at.
func lifecycleColumnFor(status order.Status) string {
	switch status {
	case order.StatusInProgress:
		return "assigned_at"
	case order.StatusDelivered:
		return "delivered_at"
	case order.StatusCancelled:
		return "cancelled_at"
	default:
		return "updated_at"
	}
}
