package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/crowdlunch/admission/internal/domain/admission"
	"github.com/crowdlunch/admission/internal/ports"
)

// MenuRepo is the menu lookup and stock ledger backed by the menu_items
// table.
type MenuRepo struct{}

// NewMenuRepo constructs a new MenuRepo.
func NewMenuRepo() ports.MenuRepository {
	return &MenuRepo{}
}

// GetItemForUpdate loads the item offered on date and takes its row lock for
// the rest of the transaction. Returns nil when the item is not offered on
// that date.
func (r *MenuRepo) GetItemForUpdate(ctx context.Context, menuItemID int64, date admission.ServiceDate) (*admission.MenuItem, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	item := admission.MenuItem{ServeDate: date}
	var price int64
	err = tx.QueryRow(ctx, `
		SELECT id, title, price, cafe_time_available, stock_quantity, daily_limit, is_available
		FROM menu_items
		WHERE id = $1 AND serve_date = $2::date
		FOR UPDATE
	`, menuItemID, date.String()).Scan(
		&item.ID,
		&item.Title,
		&price,
		&item.CafeTimeAvailable,
		&item.StockQuantity,
		&item.DailyLimit,
		&item.IsAvailable,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get menu item %d: %w", menuItemID, err)
	}
	item.Price = admission.Money(price)
	return &item, nil
}

// DailyConsumed sums the quantities of the item across all orders already
// admitted for the date.
func (r *MenuRepo) DailyConsumed(ctx context.Context, menuItemID int64, date admission.ServiceDate) (int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var used int
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(oi.quantity), 0)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE oi.menu_item_id = $1 AND o.serve_date = $2::date
	`, menuItemID, date.String()).Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("sum daily consumption for item %d: %w", menuItemID, err)
	}
	return used, nil
}

// ConsumeStock decrements finite stock when enough remains and derives
// is_available in the same statement. The conditional UPDATE is the
// check-and-mutate unit; a non-atomic read-then-write here is exactly the
// oversell race this ledger exists to prevent.
func (r *MenuRepo) ConsumeStock(ctx context.Context, menuItemID int64, qty int) (bool, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return false, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE menu_items
		SET stock_quantity = stock_quantity - $2,
		    is_available   = (stock_quantity - $2) > 0
		WHERE id = $1 AND stock_quantity >= $2
	`, menuItemID, qty)
	if err != nil {
		return false, fmt.Errorf("consume stock for item %d: %w", menuItemID, err)
	}
	return tag.RowsAffected() == 1, nil
}
