package admission

// MenuItem is the admission-relevant view of a menu row for one service date.
// StockQuantity and DailyLimit are nil when unlimited; IsAvailable is derived
// from stock reaching zero and is maintained by the stock ledger.
type MenuItem struct {
	ID                int64
	ServeDate         ServiceDate
	Title             string
	Price             Money
	CafeTimeAvailable bool
	StockQuantity     *int
	DailyLimit        *int
	IsAvailable       bool
}
