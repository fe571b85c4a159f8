package admission

import (
	"fmt"
	"time"
)

// DeliveryType says how the customer receives the order.
type DeliveryType string

const (
	DeliveryPickup DeliveryType = "pickup"
	DeliveryDesk   DeliveryType = "desk"
)

// LineItem is one ordered menu item with the unit price resolved at admission
// time, never cached from menu display.
type LineItem struct {
	ID         int64 // DB PK
	OrderID    int64
	MenuItemID int64
	Title      string
	Quantity   int
	UnitPrice  Money
}

// Order is an admitted order: the service date, pickup instant, allocated
// code, optional slot reservation, and validated line items.
type Order struct {
	ID               int64
	Code             string // "#MMDD###"
	ServeDate        ServiceDate
	PickupAt         time.Time
	SlotID           *int64
	DeliveryType     DeliveryType
	DeliveryLocation *string
	Department       *string
	CustomerName     *string
	Items            []LineItem
	TotalPrice       Money
	Status           OrderStatus
	CreatedAt        time.Time
}

// SetTotalPrice recomputes the total from the line items.
func (o *Order) SetTotalPrice() {
	var sum Money
	for _, it := range o.Items {
		sum += Money(it.Quantity) * it.UnitPrice
	}
	o.TotalPrice = sum
}

// RoutingKey builds "orders.admitted.{delivery_type}".
func (o *Order) RoutingKey() string {
	return "orders.admitted." + string(o.DeliveryType)
}

// FormatOrderCode builds the human-readable per-date order code: '#' + MMDD +
// the 1-based sequence zero-padded to three digits. A sequence past 999
// widens to four or more digits rather than truncating, so uniqueness holds
// on any volume.
func FormatOrderCode(date ServiceDate, seq int) string {
	return fmt.Sprintf("#%s%03d", date.MonthDay(), seq)
}
