package ports

import (
	"context"
	"time"

	"github.com/crowdlunch/admission/internal/domain/admission"
	"github.com/crowdlunch/admission/internal/shared/contracts"
)

// Clock supplies "now" in the fixed JST civil calendar. Injected everywhere
// so tests can pin exact boundary instants.
type Clock interface {
	Now() time.Time
}

// UnitOfWork wraps a function in a DB transaction. All mutations of one
// admission attempt run inside a single transaction; any error rolls the
// whole attempt back.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists admitted orders and owns the per-date sequence.
type OrderRepository interface {
	// NextDaySeq returns the next 1-based sequence number for the date. The
	// counter row lock serializes concurrent callers for the same date only;
	// a bounded lock wait that times out surfaces as an allocation_conflict
	// rejection.
	NextDaySeq(ctx context.Context, date admission.ServiceDate) (int, error)
	// CreateOrder inserts the order header and its line items.
	CreateOrder(ctx context.Context, o *admission.Order) error
}

// SlotRepository owns the finite capacity slots of a service date.
type SlotRepository interface {
	// EnsureGenerated lazily materializes the canonical slot set for the
	// date and returns it. Idempotent; concurrent callers observe exactly
	// one slot set.
	EnsureGenerated(ctx context.Context, date admission.ServiceDate) ([]admission.TimeSlot, error)
	Get(ctx context.Context, slotID int64) (*admission.TimeSlot, error)
	// Reserve atomically increments the slot's count if capacity remains.
	// Two racing calls against one remaining unit yield exactly one true.
	Reserve(ctx context.Context, slotID int64) (bool, error)
}

// MenuRepository is the menu lookup and stock ledger for admission.
type MenuRepository interface {
	// GetItemForUpdate loads and row-locks the item offered on date, or
	// returns nil when no such item is offered. The lock serializes the
	// daily-limit check and the stock decrement per item.
	GetItemForUpdate(ctx context.Context, menuItemID int64, date admission.ServiceDate) (*admission.MenuItem, error)
	// DailyConsumed sums quantities of the item already admitted for date.
	DailyConsumed(ctx context.Context, menuItemID int64, date admission.ServiceDate) (int, error)
	// ConsumeStock decrements finite stock by qty when enough remains and
	// flips is_available off at zero; returns whether it succeeded.
	ConsumeStock(ctx context.Context, menuItemID int64, qty int) (bool, error)
}

// AdmittedPublisher announces committed admissions to downstream consumers.
type AdmittedPublisher interface {
	PublishAdmitted(ctx context.Context, msg contracts.OrderAdmittedMessage) error
}
