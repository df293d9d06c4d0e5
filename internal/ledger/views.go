package ledger

import (
	"fmt"
	"time"

	"saldo/internal/core"
)

// TickMode selects the axis label density.
type TickMode int

const (
	// TickFine is used for a single month: a label every 5 days.
	TickFine TickMode = iota
	// TickCoarse is used for the whole history: a label every 10 days.
	TickCoarse
)

const day = 24 * time.Hour

func (m TickMode) String() string {
	if m == TickCoarse {
		return "coarse"
	}
	return "fine"
}

// TickSchedule returns a fixed origin, the first day of start's month, and
// a constant step for evenly spaced date labels. It depends only on its
// inputs, never on how the data is distributed.
func TickSchedule(start core.Date, mode TickMode) (core.Date, time.Duration) {
	interval := 5 * day
	if mode == TickCoarse {
		interval = 10 * day
	}
	return start.FirstOfMonth(), interval
}

// Ticks enumerates origin, origin+interval, ... up to and including until.
func Ticks(origin core.Date, interval time.Duration, until core.Date) []core.Date {
	if interval <= 0 {
		return nil
	}
	var out []core.Date
	for t := origin.Time; !t.After(until.Time); t = t.Add(interval) {
		out = append(out, core.Date{Time: t})
	}
	return out
}

// EvolutionQuery selects the data of the evolution chart.
type EvolutionQuery struct {
	// Period is the month shown when All is false.
	Period string
	// All shows the whole history.
	All bool
	// Categories filters by category; nil keeps everything.
	Categories []string
	// Origin anchors the tick grid. The zero value uses the earliest
	// transaction of txs; charts built from a slice of the ledger pass the
	// ledger's earliest date so every chart shares one grid.
	Origin core.Date
}

// EvolutionView is the evolution chart's data and axis schedule.
type EvolutionView struct {
	Label    string             `json:"label"`
	Points   []core.SeriesPoint `json:"points"`
	Origin   core.Date          `json:"tick_origin"`
	Interval time.Duration      `json:"-"`
	StepDays int                `json:"tick_step_days"`
	Mode     string             `json:"tick_mode"`
}

// HistoryLabel names the whole-history view.
const HistoryLabel = "Histórico Total"

// Evolution builds the evolution chart data. The tick origin is the first
// day of the month of q.Origin, or of the earliest transaction in txs, so
// single-month and whole-history views share the same grid.
func Evolution(txs []core.Transaction, q EvolutionQuery) (EvolutionView, error) {
	var (
		subset []core.Transaction
		label  string
		mode   TickMode
	)
	if q.All {
		subset = txs
		label = HistoryLabel
		mode = TickCoarse
	} else {
		p, err := core.ParsePeriodKey(q.Period)
		if err != nil {
			return EvolutionView{}, fmt.Errorf("evolution: %w", err)
		}
		subset = SelectPeriod(txs, p.Key)
		label = p.Label
		mode = TickFine
	}
	subset = FilterCategories(subset, q.Categories)

	view := EvolutionView{
		Label:  label,
		Points: GroupByDateDirectionCategory(subset),
		Mode:   mode.String(),
	}
	if view.Points == nil {
		view.Points = []core.SeriesPoint{}
	}
	anchor := q.Origin
	if anchor.IsZero() && len(txs) > 0 {
		anchor = earliest(txs)
	}
	if !anchor.IsZero() {
		view.Origin, view.Interval = TickSchedule(anchor, mode)
		view.StepDays = int(view.Interval / day)
	}
	return view, nil
}

// EarliestDate returns the date of the oldest transaction, or the zero Date
// when txs is empty.
func EarliestDate(txs []core.Transaction) core.Date {
	if len(txs) == 0 {
		return core.Date{}
	}
	return earliest(txs)
}

func earliest(txs []core.Transaction) core.Date {
	first := txs[0].Date
	for _, tx := range txs[1:] {
		if tx.Date.Before(first.Time) {
			first = tx.Date
		}
	}
	return first
}
