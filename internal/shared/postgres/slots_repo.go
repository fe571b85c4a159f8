package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/crowdlunch/admission/internal/domain/admission"
	"github.com/crowdlunch/admission/internal/ports"
)

// SlotsRepo implements slot capacity persistence using pgx and SQL.
type SlotsRepo struct{}

// NewSlotsRepo constructs a new SlotsRepo.
func NewSlotsRepo() ports.SlotRepository {
	return &SlotsRepo{}
}

// EnsureGenerated materializes the canonical slot set for the date if it does
// not exist yet, then returns the date's slots. The unique constraint on
// (serve_date, start_at) makes a generation race produce exactly one slot
// set: the loser's inserts are no-ops.
func (r *SlotsRepo) EnsureGenerated(ctx context.Context, date admission.ServiceDate) ([]admission.TimeSlot, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	for _, s := range admission.BuildSchedule(date) {
		_, err = tx.Exec(ctx, `
			INSERT INTO time_slots (serve_date, start_at, max_orders, reserved_count)
			VALUES ($1::date, $2, $3, 0)
			ON CONFLICT (serve_date, start_at) DO NOTHING
		`, date.String(), s.StartAt, s.MaxOrders)
		if err != nil {
			return nil, fmt.Errorf("generate slot %s: %w", s.StartAt, err)
		}
	}

	rows, err := tx.Query(ctx, `
		SELECT id, start_at, max_orders, reserved_count
		FROM time_slots
		WHERE serve_date = $1::date
		ORDER BY start_at
	`, date.String())
	if err != nil {
		return nil, fmt.Errorf("list slots for %s: %w", date, err)
	}
	defer rows.Close()

	var slots []admission.TimeSlot
	for rows.Next() {
		s := admission.TimeSlot{ServeDate: date}
		var startAt time.Time
		if err := rows.Scan(&s.ID, &startAt, &s.MaxOrders, &s.ReservedCount); err != nil {
			return nil, err
		}
		s.StartAt = startAt.In(admission.JST)
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// Get loads one slot by id, or nil when it does not exist.
func (r *SlotsRepo) Get(ctx context.Context, slotID int64) (*admission.TimeSlot, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var s admission.TimeSlot
	var serveDate, startAt time.Time
	err = tx.QueryRow(ctx, `
		SELECT id, serve_date, start_at, max_orders, reserved_count
		FROM time_slots
		WHERE id = $1
	`, slotID).Scan(&s.ID, &serveDate, &startAt, &s.MaxOrders, &s.ReservedCount)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get slot %d: %w", slotID, err)
	}
	s.ServeDate = admission.DateOf(serveDate)
	s.StartAt = startAt.In(admission.JST)
	return &s, nil
}

// Reserve takes one unit of slot capacity. Check and increment are a single
// conditional UPDATE, so two racing reservations of the last unit produce
// exactly one success; the row lock rules out a lost update.
func (r *SlotsRepo) Reserve(ctx context.Context, slotID int64) (bool, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return false, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE time_slots
		SET reserved_count = reserved_count + 1
		WHERE id = $1 AND reserved_count < max_orders
	`, slotID)
	if err != nil {
		return false, fmt.Errorf("reserve slot %d: %w", slotID, err)
	}
	return tag.RowsAffected() == 1, nil
}
