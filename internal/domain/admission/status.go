package admission

// OrderStatus is the lifecycle state of an admitted order.
type OrderStatus string

const (
	StatusNew       OrderStatus = "new"
	StatusPaid      OrderStatus = "paid"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusDelivered OrderStatus = "delivered"
)

// Allowed transitions. Payment may be skipped for desk deliveries settled on
// handover, so new can go straight to preparing.
var allowed = map[OrderStatus]map[OrderStatus]bool{
	StatusNew:       {StatusPaid: true, StatusPreparing: true},
	StatusPaid:      {StatusPreparing: true},
	StatusPreparing: {StatusReady: true},
	StatusReady:     {StatusDelivered: true},
	StatusDelivered: {},
}

// CanTransition checks if from->to is allowed.
func CanTransition(from, to OrderStatus) bool {
	nexts := allowed[from]
	return nexts != nil && nexts[to]
}
