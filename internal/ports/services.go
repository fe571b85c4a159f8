package ports

import (
	"context"
	"time"

	"github.com/crowdlunch/admission/internal/domain/admission"
)

// AdmissionService handles the POST /orders flow: time window → cafe-time
// menu gate → optional slot reserve → stock consume → code allocation →
// persist, all-or-nothing.
type AdmissionService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (OrderAdmitted, error)
	AvailableSlots(ctx context.Context, date admission.ServiceDate) ([]admission.TimeSlot, error)
}

// PlaceOrderCommand is one admission attempt. Either PickupAt or the legacy
// RequestTime slot label must be set; PickupAt wins when both are present.
type PlaceOrderCommand struct {
	ServeDate        admission.ServiceDate
	PickupAt         *time.Time
	RequestTime      string // legacy "HH:MM～HH:MM" or "HH:MM"
	TimeSlotID       *int64
	DeliveryType     admission.DeliveryType
	DeliveryLocation *string
	Department       *string
	CustomerName     *string
	Items            []ItemInput
}

type ItemInput struct {
	MenuItemID int64
	Quantity   int
}

type AdmittedItem struct {
	MenuItemID int64
	Title      string
	Quantity   int
	UnitPrice  admission.Money
}

// OrderAdmitted is the acceptance result returned to the caller.
type OrderAdmitted struct {
	OrderCode  string
	PickupAt   time.Time
	TimeSlotID *int64
	TotalPrice admission.Money
	Items      []AdmittedItem
}
