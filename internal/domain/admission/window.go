package admission

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Pickup window boundaries, JST time-of-day. The window is a closed interval:
// a pickup at exactly 18:30:00 is still accepted.
const (
	WindowOpenHour    = 12
	WindowCloseHour   = 18
	WindowCloseMinute = 30

	// CutoffHour/CutoffMinute is the absolute daily cutoff. Once the current
	// JST time reaches 18:15 on the service day no further orders for that
	// day are accepted, regardless of the requested pickup time.
	CutoffHour   = 18
	CutoffMinute = 15

	// CafeTimeStartHour begins the late sub-window in which only menu items
	// flagged cafe_time_available may be ordered.
	CafeTimeStartHour = 14
)

// ValidatePickup decides whether pickup is inside the allowed ordering window
// for now. A nil result means accepted. Rules are applied in a fixed order;
// the cutoff is checked before the generic window because "kitchen closed"
// and "that slot is unreachable" carry different user messaging.
func ValidatePickup(pickup, now time.Time) *Rejection {
	pickup = pickup.In(JST)
	now = now.In(JST)
	sameDay := DateOf(pickup) == DateOf(now)

	if sameDay && !now.Before(DateOf(now).At(CutoffHour, CutoffMinute)) {
		return Reject(CodeCafeTimeClosed)
	}

	tod := pickup.Hour()*3600 + pickup.Minute()*60 + pickup.Second()
	open := WindowOpenHour * 3600
	close := WindowCloseHour*3600 + WindowCloseMinute*60
	if tod < open || tod > close {
		return Reject(CodeInvalidTimeslot)
	}

	if sameDay && !pickup.After(now) {
		return Reject(CodeInvalidTimeslot)
	}

	return nil
}

// IsCafeTime reports whether pickup falls in the late sub-window.
func IsCafeTime(pickup time.Time) bool {
	return pickup.In(JST).Hour() >= CafeTimeStartHour
}

// slot labels use either the fullwidth tilde (legacy clients) or ASCII.
var labelSeparators = []string{"～", "~"}

// ParseSlotLabel normalizes a legacy request_time value to a pickup instant on
// date. Accepted forms are a half-open slot label such as "11:30～11:45"
// (normalized to its start) and a bare "HH:MM". Parsing is pure; window rules
// are applied by the caller afterwards.
func ParseSlotLabel(label string, date ServiceDate) (time.Time, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return time.Time{}, fmt.Errorf("empty slot label")
	}

	start := label
	for _, sep := range labelSeparators {
		if s, e, found := strings.Cut(label, sep); found {
			startT, err := parseClock(s)
			if err != nil {
				return time.Time{}, fmt.Errorf("slot label %q: %w", label, err)
			}
			endT, err := parseClock(e)
			if err != nil {
				return time.Time{}, fmt.Errorf("slot label %q: %w", label, err)
			}
			if !endT.after(startT) {
				return time.Time{}, fmt.Errorf("slot label %q: end is not after start", label)
			}
			return date.At(startT.hour, startT.min), nil
		}
	}

	t, err := parseClock(start)
	if err != nil {
		return time.Time{}, fmt.Errorf("slot label %q: %w", label, err)
	}
	return date.At(t.hour, t.min), nil
}

type clockTime struct {
	hour, min int
}

func (c clockTime) after(o clockTime) bool {
	return c.hour*60+c.min > o.hour*60+o.min
}

func parseClock(s string) (clockTime, error) {
	h, m, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		return clockTime{}, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return clockTime{}, fmt.Errorf("bad hour %q", h)
	}
	min, err := strconv.Atoi(m)
	if err != nil || min < 0 || min > 59 {
		return clockTime{}, fmt.Errorf("bad minute %q", m)
	}
	return clockTime{hour: hour, min: min}, nil
}
