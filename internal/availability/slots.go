package availability

import (
	"fmt"
	"time"
)

// DefaultSlotLength is the grid granularity in minutes.
const DefaultSlotLength = 30

const dateLayout = "2006-01-02"

// Rule is one recurring open window. Minutes are offsets from midnight.
type Rule struct {
	Weekday  int `json:"weekday"`
	StartMin int `json:"start_min"`
	EndMin   int `json:"end_min"`
}

// Interval is a booked span expressed as offsets from the start of the queried day.
type Interval struct {
	StartMin int `json:"start_min"`
	EndMin   int `json:"end_min"`
}

// OpenSlots returns the bookable start offsets for date. Only the weekday of
// date is consulted, and bookings must already be scoped to that day.
//
// The first rule matching the weekday wins. A slot is offered when it fits
// inside the rule window and its span [m, m+slotLength) misses every booking
// padded by buffer on both sides.
func OpenSlots(date time.Time, rules []Rule, bookings []Interval, buffer, slotLength int) []int {
	if slotLength <= 0 {
		slotLength = DefaultSlotLength
	}

	rule, ok := ruleFor(date.Weekday(), rules)
	if !ok {
		return []int{}
	}

	slots := make([]int, 0, (rule.EndMin-rule.StartMin)/slotLength)
	for m := rule.StartMin; m+slotLength <= rule.EndMin; m += slotLength {
		if blocked(m, m+slotLength, bookings, buffer) {
			continue
		}
		slots = append(slots, m)
	}
	return slots
}

func ruleFor(weekday time.Weekday, rules []Rule) (Rule, bool) {
	for _, r := range rules {
		if r.Weekday == int(weekday) {
			return r, true
		}
	}
	return Rule{}, false
}

func blocked(start, end int, bookings []Interval, buffer int) bool {
	for _, b := range bookings {
		// half-open overlap against the padded exclusion window
		if start < b.EndMin+buffer && end > b.StartMin-buffer {
			return true
		}
	}
	return false
}

// ParseDate parses a yyyy-mm-dd string as a UTC calendar day.
func ParseDate(dateISO string) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, dateISO, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", dateISO, err)
	}
	return d, nil
}

// ToUTC turns a calendar date plus a minute offset into an absolute instant.
// Dates always denote UTC days.
func ToUTC(dateISO string, minutes int) (time.Time, error) {
	d, err := ParseDate(dateISO)
	if err != nil {
		return time.Time{}, err
	}
	return d.Add(time.Duration(minutes) * time.Minute), nil
}

// DayRange returns [start, end) of the UTC day named by dateISO.
func DayRange(dateISO string) (start, end time.Time, err error) {
	start, err = ToUTC(dateISO, 0)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.Add(24 * time.Hour), nil
}

// MinutesSince converts t into a minute offset from dayStart.
func MinutesSince(dayStart, t time.Time) int {
	return int(t.Sub(dayStart) / time.Minute)
}

// FormatDate is the inverse of ParseDate.
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// FormatMinutes renders a minute offset as HH:MM.
func FormatMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
