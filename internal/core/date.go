package core

import (
	"fmt"
	"strings"
	"time"
)

// DayFirstLayout is the canonical display form of a ledger date.
const DayFirstLayout = "02/01/2006"

// dayFirstLayouts are tried in order. Single-digit day and month are
// accepted by the "2" and "1" elements; ISO dates are unambiguous and
// accepted as-is.
var dayFirstLayouts = []string{
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/06",
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseDayFirst parses a date written day-before-month ("05/03/2024" is
// 5 March). Any time-of-day component is discarded.
func ParseDayFirst(s string) (Date, error) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return Date{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// DayFirst formats the date as dd/mm/yyyy.
func (d Date) DayFirst() string {
	return d.Format(DayFirstLayout)
}
