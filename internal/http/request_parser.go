package http

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"saldo/internal/core"
)

// ParamError reports an invalid query parameter.
type ParamError struct {
	Param string
	Value string
	Msg   string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Param, e.Value, e.Msg)
}

// ViewQuery holds the query parameters shared by the ledger views.
type ViewQuery struct {
	// Period is a validated YYYY-MM key, or empty for the default.
	Period string
	// All selects the whole history instead of one period.
	All bool
	// Categories filters by category; nil keeps everything.
	Categories []string
	// Format is "json" or "csv".
	Format string
}

// ParseViewQuery validates the period, all, category and format
// parameters. Categories may repeat or be comma separated.
func ParseViewQuery(q url.Values) (ViewQuery, error) {
	vq := ViewQuery{Format: "json"}

	if v := strings.TrimSpace(q.Get("period")); v != "" {
		p, err := core.ParsePeriodKey(v)
		if err != nil {
			return ViewQuery{}, &ParamError{Param: "period", Value: v, Msg: "expected YYYY-MM"}
		}
		vq.Period = p.Key
	}

	if v := strings.TrimSpace(q.Get("all")); v != "" {
		all, err := strconv.ParseBool(v)
		if err != nil {
			return ViewQuery{}, &ParamError{Param: "all", Value: v, Msg: "expected a boolean"}
		}
		vq.All = all
	}

	for _, raw := range q["category"] {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				vq.Categories = append(vq.Categories, c)
			}
		}
	}

	switch v := strings.ToLower(strings.TrimSpace(q.Get("format"))); v {
	case "", "json":
	case "csv":
		vq.Format = "csv"
	default:
		return ViewQuery{}, &ParamError{Param: "format", Value: v, Msg: "expected json or csv"}
	}

	return vq, nil
}

// ParseAsOf reads the as_of parameter as a day-first date. ok is false
// when the parameter is absent.
func ParseAsOf(q url.Values) (date core.Date, ok bool, err error) {
	v := strings.TrimSpace(q.Get("as_of"))
	if v == "" {
		return core.Date{}, false, nil
	}
	d, err := core.ParseDayFirst(v)
	if err != nil {
		return core.Date{}, false, &ParamError{Param: "as_of", Value: v, Msg: "expected dd/mm/yyyy"}
	}
	return d, true, nil
}

// cacheKey identifies one rendered view of one ledger generation.
func (q ViewQuery) cacheKey(view string, generation uint64, extra ...string) string {
	cats := append([]string(nil), q.Categories...)
	sort.Strings(cats)
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%s|p=%s|a=%t|f=%s|c=%q", generation, view, q.Period, q.All, q.Format, cats)
	for _, e := range extra {
		b.WriteString("|")
		b.WriteString(e)
	}
	return b.String()
}
