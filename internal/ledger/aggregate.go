package ledger

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// PeriodGroup is one year-month bucket of a ledger.
type PeriodGroup struct {
	Period       core.Period        `json:"period"`
	Transactions []core.Transaction `json:"transactions"`
}

// TotalByDirection sums the amounts of transactions going in direction d.
func TotalByDirection(txs []core.Transaction, d core.Direction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		if tx.Direction == d {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

// Total sums every amount.
func Total(txs []core.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Amount)
	}
	return total
}

// GroupByPeriod partitions txs by period key in chronological key order.
// Within a group the input order is kept.
func GroupByPeriod(txs []core.Transaction) []PeriodGroup {
	pos := make(map[string]int)
	var groups []PeriodGroup
	for _, tx := range txs {
		i, ok := pos[tx.Period.Key]
		if !ok {
			i = len(groups)
			pos[tx.Period.Key] = i
			groups = append(groups, PeriodGroup{Period: tx.Period})
		}
		groups[i].Transactions = append(groups[i].Transactions, tx)
	}
	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].Period.Key < groups[b].Period.Key
	})
	return groups
}

// SelectPeriod returns the transactions of one period. An unknown or empty
// bucket yields an empty, non-nil slice.
func SelectPeriod(txs []core.Transaction, key string) []core.Transaction {
	out := make([]core.Transaction, 0)
	for _, tx := range txs {
		if tx.Period.Key == key {
			out = append(out, tx)
		}
	}
	return out
}

type seriesKey struct {
	date      int64
	direction core.Direction
	category  string
}

// GroupByDateDirectionCategory sums amounts per (date, direction, category).
// Same-day transactions in different categories stay separate points.
// Points are ordered by date, then direction, then category.
func GroupByDateDirectionCategory(txs []core.Transaction) []core.SeriesPoint {
	return groupSeries(txs, true)
}

// GroupByDateDirection sums amounts per (date, direction), merging
// categories.
func GroupByDateDirection(txs []core.Transaction) []core.SeriesPoint {
	return groupSeries(txs, false)
}

func groupSeries(txs []core.Transaction, byCategory bool) []core.SeriesPoint {
	pos := make(map[seriesKey]int)
	var points []core.SeriesPoint
	for _, tx := range txs {
		k := seriesKey{date: tx.Date.Unix(), direction: tx.Direction}
		if byCategory {
			k.category = tx.Category
		}
		i, ok := pos[k]
		if !ok {
			i = len(points)
			pos[k] = i
			points = append(points, core.SeriesPoint{
				Date:      tx.Date,
				Direction: tx.Direction,
				Category:  k.category,
				Amount:    decimal.Zero,
			})
		}
		points[i].Amount = points[i].Amount.Add(tx.Amount)
	}
	sort.SliceStable(points, func(a, b int) bool {
		pa, pb := points[a], points[b]
		if !pa.Date.Equal(pb.Date.Time) {
			return pa.Date.Before(pb.Date.Time)
		}
		if pa.Direction != pb.Direction {
			return pa.Direction < pb.Direction
		}
		return pa.Category < pb.Category
	})
	return points
}

// CumulativeBalance sums every amount dated on or before asOf. It needs
// the full history, not one period.
func CumulativeBalance(txs []core.Transaction, asOf core.Date) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		if !tx.Date.After(asOf.Time) {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

// Periods lists the distinct periods, most recent first.
func Periods(txs []core.Transaction) []core.Period {
	seen := make(map[string]struct{})
	out := make([]core.Period, 0)
	for _, tx := range txs {
		if _, ok := seen[tx.Period.Key]; ok {
			continue
		}
		seen[tx.Period.Key] = struct{}{}
		out = append(out, tx.Period)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Key > out[b].Key })
	return out
}

// FilterCategories keeps transactions whose category is one of cats.
// A nil cats means no filter; an empty non-nil cats keeps nothing.
func FilterCategories(txs []core.Transaction, cats []string) []core.Transaction {
	if cats == nil {
		return txs
	}
	want := make(map[string]struct{}, len(cats))
	for _, c := range cats {
		want[strings.TrimSpace(c)] = struct{}{}
	}
	out := make([]core.Transaction, 0)
	for _, tx := range txs {
		if _, ok := want[tx.Category]; ok {
			out = append(out, tx)
		}
	}
	return out
}

// MatchCategory keeps transactions whose category contains needle,
// ignoring case and accents.
func MatchCategory(txs []core.Transaction, needle string) []core.Transaction {
	n := fold(needle)
	out := make([]core.Transaction, 0)
	for _, tx := range txs {
		if strings.Contains(fold(tx.Category), n) {
			out = append(out, tx)
		}
	}
	return out
}

// Summarize computes the inflow/outflow balance of txs for period.
func Summarize(txs []core.Transaction, period core.Period) core.Summary {
	in := TotalByDirection(txs, core.Inflow)
	out := TotalByDirection(txs, core.Outflow)
	return core.Summary{
		Period:  period,
		Inflow:  in,
		Outflow: out,
		Net:     in.Add(out),
		Count:   len(txs),
	}
}

// OutflowByCategory returns the absolute outflow per category, largest
// first. Blank categories are grouped under an empty name.
func OutflowByCategory(txs []core.Transaction) []core.CategoryAmount {
	pos := make(map[string]int)
	var out []core.CategoryAmount
	for _, tx := range txs {
		if tx.Direction != core.Outflow || tx.Amount.IsZero() {
			continue
		}
		i, ok := pos[tx.Category]
		if !ok {
			i = len(out)
			pos[tx.Category] = i
			out = append(out, core.CategoryAmount{Name: tx.Category, Amount: decimal.Zero})
		}
		out[i].Amount = out[i].Amount.Add(tx.Amount.Abs())
	}
	sort.SliceStable(out, func(a, b int) bool {
		if c := out[a].Amount.Cmp(out[b].Amount); c != 0 {
			return c > 0
		}
		return out[a].Name < out[b].Name
	})
	return out
}
