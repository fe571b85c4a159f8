package contracts

import "time"

// AdmittedItemMessage is the wire-format for one line item in an admitted
// order event.
type AdmittedItemMessage struct {
	MenuItemID int64  `json:"menu_item_id"`
	Title      string `json:"title"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int64  `json:"unit_price"` // yen
}

// OrderAdmittedMessage is published to "orders_topic" after a successful
// admission commit.
type OrderAdmittedMessage struct {
	OrderCode    string                `json:"order_code"` // "#MMDD###"
	ServeDate    string                `json:"serve_date"` // "YYYY-MM-DD"
	PickupAt     time.Time             `json:"pickup_at"`
	DeliveryType string                `json:"delivery_type"` // "pickup" | "desk"
	TimeSlotID   *int64                `json:"time_slot_id"`  // null for slot-free orders
	TotalPrice   int64                 `json:"total_price"`   // yen
	Items        []AdmittedItemMessage `json:"items"`
}
