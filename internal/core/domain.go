package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Inflow  Direction = "INFLOW"
	Outflow Direction = "OUTFLOW"
)

type (
	Direction string

	// RawRecord is one source row: column name to cell text, exactly as delivered.
	RawRecord map[string]string

	Date struct {
		time.Time
	}

	// Period is a year-month bucket.
	Period struct {
		Key   string `json:"key"`   // 2024-03
		Label string `json:"label"` // 03/2024
	}

	Transaction struct {
		Date        Date            `json:"date"`
		Amount      decimal.Decimal `json:"amount"`
		Category    string          `json:"category"`
		Direction   Direction       `json:"direction"`
		Period      Period          `json:"period"`
		Recurrence  string          `json:"recurrence,omitempty"`
		Description string          `json:"description,omitempty"`
		Row         int             `json:"row"` // index of the source record; not part of identity
	}
)

var (
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidPeriod = errors.New("invalid period key")
)

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == Inflow || d == Outflow
}

// DirectionOf derives a direction from the sign of an amount.
// Zero counts as an outflow.
func DirectionOf(amount decimal.Decimal) Direction {
	if amount.IsPositive() {
		return Inflow
	}
	return Outflow
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// Period returns the year-month bucket the date belongs to.
func (d Date) Period() Period {
	return Period{
		Key:   fmt.Sprintf("%04d-%02d", d.Year(), d.Month()),
		Label: fmt.Sprintf("%02d/%04d", d.Month(), d.Year()),
	}
}

// FirstOfMonth returns the first day of the date's month.
func (d Date) FirstOfMonth() Date {
	return NewDate(d.Year(), d.Month(), 1)
}

// ISO formats the date as 2006-01-02.
func (d Date) ISO() string {
	return d.Format("2006-01-02")
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.ISO() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	d.Time = t
	return nil
}

// ParsePeriodKey validates a YYYY-MM key and returns its period.
func ParsePeriodKey(key string) (Period, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(key))
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, key)
	}
	return DateOf(t).Period(), nil
}
