package admission

// RejectCode identifies an expected, user-facing admission outcome. The codes
// are part of the API contract; clients branch on them for messaging.
type RejectCode string

const (
	// CodeInvalidTimeslot: requested pickup time outside the allowed window,
	// already past, or a malformed slot label.
	CodeInvalidTimeslot RejectCode = "invalid_timeslot"
	// CodeCafeTimeClosed: the daily 18:15 JST cutoff has passed.
	CodeCafeTimeClosed RejectCode = "cafe_time_closed"
	// CodeMenuNotAvailable: an item is not offered for the requested time.
	CodeMenuNotAvailable RejectCode = "menu_not_available"
	// CodeSlotUnavailable: the chosen time slot is at capacity.
	CodeSlotUnavailable RejectCode = "slot_unavailable"
	// CodeInsufficientStock: absolute stock or the daily limit is exhausted.
	CodeInsufficientStock RejectCode = "insufficient_stock"
	// CodeAllocationConflict: the date-scoped counter lock could not be taken
	// in time. Transient; the caller may retry as-is.
	CodeAllocationConflict RejectCode = "allocation_conflict"
)

// Rejection is a structured admission refusal. It is never used to wrap
// storage failures; those stay ordinary errors so a broken database can not
// masquerade as "sold out".
type Rejection struct {
	Code       RejectCode
	Message    string
	MenuItemID int64 // set for menu_not_available / insufficient_stock
}

func (r *Rejection) Error() string { return string(r.Code) + ": " + r.Message }

// Default user-facing messages, carried over from the production deployment.
var messages = map[RejectCode]string{
	CodeInvalidTimeslot:    "指定された受取時間には注文できません",
	CodeCafeTimeClosed:     "本日の注文受付は終了しました",
	CodeMenuNotAvailable:   "このメニューはカフェタイムには注文できません",
	CodeSlotUnavailable:    "この時間帯の受付枠は満席です",
	CodeInsufficientStock:  "在庫が不足しています",
	CodeAllocationConflict: "注文が混み合っています。もう一度お試しください",
}

// Reject builds a Rejection with the standard message for code.
func Reject(code RejectCode) *Rejection {
	return &Rejection{Code: code, Message: messages[code]}
}

// RejectItem builds a Rejection that names the offending menu item.
func RejectItem(code RejectCode, menuItemID int64) *Rejection {
	r := Reject(code)
	r.MenuItemID = menuItemID
	return r
}
