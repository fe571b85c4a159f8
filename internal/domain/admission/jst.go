package admission

import (
	"fmt"
	"time"
)

// JST is the fixed UTC+9 civil calendar every comparison in this package uses.
// The service historically grew several independent "JST day range" helpers
// that drifted apart; all date arithmetic now goes through this one zone.
var JST = time.FixedZone("JST", 9*60*60)

// ServiceDate is the civil calendar day (JST) an order is prepared for. It
// scopes slot generation, order-code sequencing, and daily stock caps.
type ServiceDate struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the JST civil date of an instant.
func DateOf(t time.Time) ServiceDate {
	y, m, d := t.In(JST).Date()
	return ServiceDate{Year: y, Month: m, Day: d}
}

// ParseServiceDate parses a "YYYY-MM-DD" string.
func ParseServiceDate(s string) (ServiceDate, error) {
	t, err := time.ParseInLocation("2006-01-02", s, JST)
	if err != nil {
		return ServiceDate{}, fmt.Errorf("invalid service date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// At returns the instant at hour:min:00 JST on the date.
func (d ServiceDate) At(hour, min int) time.Time {
	return time.Date(d.Year, d.Month, d.Day, hour, min, 0, 0, JST)
}

func (d ServiceDate) IsZero() bool { return d == ServiceDate{} }

func (d ServiceDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MonthDay returns the "MMDD" fragment used in order codes.
func (d ServiceDate) MonthDay() string {
	return fmt.Sprintf("%02d%02d", int(d.Month), d.Day)
}

// JSTClock is the production clock: current instant in the fixed UTC+9 zone,
// regardless of the host timezone.
type JSTClock struct{}

func (JSTClock) Now() time.Time { return time.Now().In(JST) }
