package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/crowdlunch/admission/internal/domain/admission"
	"github.com/crowdlunch/admission/internal/ports"
)

// pgLockNotAvailable is raised when SET LOCAL lock_timeout expires.
const pgLockNotAvailable = "55P03"

// OrdersRepo implements order persistence and per-date sequencing using pgx
// and SQL.
type OrdersRepo struct{}

// NewOrdersRepo constructs a new OrdersRepo.
func NewOrdersRepo() ports.OrderRepository {
	return &OrdersRepo{}
}

// NextDaySeq upserts the date's counter row and returns the incremented
// sequence. The row lock taken by the upsert serializes concurrent admissions
// for the same date — and only that date — until the enclosing transaction
// commits, so two callers can never observe the same count. A lock wait that
// exceeds the transaction's lock_timeout comes back as allocation_conflict.
func (r *OrdersRepo) NextDaySeq(ctx context.Context, date admission.ServiceDate) (int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var seq int
	err = tx.QueryRow(ctx, `
		INSERT INTO order_day_counters (serve_date, seq)
		VALUES ($1::date, 1)
		ON CONFLICT (serve_date) DO UPDATE
		SET seq = order_day_counters.seq + 1
		RETURNING seq
	`, date.String()).Scan(&seq)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
			return 0, admission.Reject(admission.CodeAllocationConflict)
		}
		return 0, fmt.Errorf("next day seq for %s: %w", date, err)
	}
	return seq, nil
}

// CreateOrder inserts the order header and its line items.
func (r *OrdersRepo) CreateOrder(ctx context.Context, order *admission.Order) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (code, serve_date, pickup_at, time_slot_id, delivery_type,
		                    delivery_location, department, customer_name, total_price, status)
		VALUES ($1, $2::date, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`,
		order.Code,
		order.ServeDate.String(),
		order.PickupAt,
		order.SlotID,
		string(order.DeliveryType),
		order.DeliveryLocation,
		order.Department,
		order.CustomerName,
		int64(order.TotalPrice),
		string(order.Status),
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order %s: %w", order.Code, err)
	}

	for i := range order.Items {
		it := &order.Items[i]
		err = tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, menu_item_id, title, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`,
			order.ID,
			it.MenuItemID,
			it.Title,
			it.Quantity,
			int64(it.UnitPrice),
		).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("insert order item %d: %w", it.MenuItemID, err)
		}
		it.OrderID = order.ID
	}

	return nil
}
