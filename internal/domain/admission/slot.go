package admission

import "time"

// Slot capacity constants. The slot window (11:00–14:00) is deliberately
// narrower than, and independent of, the pickup window in window.go: the two
// are separate capacity concepts and must not be unified.
const (
	SlotWindowOpenHour  = 11
	SlotWindowCloseHour = 14
	SlotStride          = 15 * time.Minute
	SlotMaxOrders       = 20

	// SlotLeadTime: a slot starting within the next half hour can no longer
	// be booked today. Independent of, and additional to, the daily cutoff.
	SlotLeadTime = 30 * time.Minute
)

// TimeSlot is a fixed-length capacity bucket anchored to a service date.
// ReservedCount only ever increases; there is no release once an order holds
// a reservation.
type TimeSlot struct {
	ID            int64
	ServeDate     ServiceDate
	StartAt       time.Time
	MaxOrders     int
	ReservedCount int
}

// Available reports whether the slot still has capacity.
func (s TimeSlot) Available() bool { return s.ReservedCount < s.MaxOrders }

// Bookable reports whether the slot can still be chosen at now: it must have
// capacity, and — on the current service day only — start more than
// SlotLeadTime after now.
func (s TimeSlot) Bookable(now time.Time) bool {
	if !s.Available() {
		return false
	}
	now = now.In(JST)
	if DateOf(s.StartAt) == DateOf(now) && !s.StartAt.After(now.Add(SlotLeadTime)) {
		return false
	}
	return true
}

// BuildSchedule returns the canonical slot set for a service date: 15-minute
// buckets from 11:00 up to (not including) 14:00 JST, each with the default
// capacity and no reservations.
func BuildSchedule(date ServiceDate) []TimeSlot {
	open := date.At(SlotWindowOpenHour, 0)
	close := date.At(SlotWindowCloseHour, 0)

	var slots []TimeSlot
	for start := open; start.Before(close); start = start.Add(SlotStride) {
		slots = append(slots, TimeSlot{
			ServeDate: date,
			StartAt:   start,
			MaxOrders: SlotMaxOrders,
		})
	}
	return slots
}
