package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/ledger"
	applog "saldo/internal/log"
	"saldo/internal/services"
)

// investmentCategory selects the rows of the investments chart.
const investmentCategory = "Investimento"

// viewFunc renders one view of a snapshot. The result is encoded as JSON.
type viewFunc func(r *http.Request, snap *services.Snapshot, q ViewQuery) (any, error)

// snapshot loads the ledger for a request. A failed refresh that still has
// a previous non-empty ledger is served with the stale header set.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) (*services.Snapshot, bool) {
	snap, err := s.ledger.Ledger(r.Context())
	if err == nil {
		return snap, true
	}
	if snap == nil || snap.Ledger.Empty() || errors.Is(err, services.ErrNoData) {
		writeError(w, r, err, s.retryAfter)
		return nil, false
	}
	applog.FromContext(r.Context()).WithComponent(applog.ComponentHTTP).WarnContext(r.Context(),
		"Serving stale ledger",
		applog.FieldError, err,
		applog.FieldGeneration, snap.Generation)
	w.Header().Set(HeaderStale, "true")
	return snap, true
}

// view wraps fn with query parsing, ledger loading and a per-generation
// cache of the encoded body. Stale responses are not cached.
func (s *Server) view(name string, fn viewFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := ParseViewQuery(r.URL.Query())
		if err != nil {
			writeError(w, r, err, s.retryAfter)
			return
		}
		if q.Format != "json" {
			writeError(w, r, &ParamError{Param: "format", Value: q.Format, Msg: "only the transactions view supports csv"}, s.retryAfter)
			return
		}

		snap, ok := s.snapshot(w, r)
		if !ok {
			return
		}
		stale := w.Header().Get(HeaderStale) != ""
		if !q.All && q.Period == "" && len(snap.Periods) > 0 {
			q.Period = snap.Periods[0].Key
		}

		key := q.cacheKey(name, snap.Generation, "as_of="+r.URL.Query().Get("as_of"))
		if body, ok := s.views.Get(key); ok {
			w.Header().Set("X-Cache", "HIT")
			writeBody(w, http.StatusOK, body)
			return
		}

		v, err := fn(r, snap, q)
		if err != nil {
			writeError(w, r, err, s.retryAfter)
			return
		}
		body, err := json.Marshal(v)
		if err != nil {
			writeError(w, r, fmt.Errorf("encode %s view: %w", name, err), s.retryAfter)
			return
		}
		if !stale {
			s.views.Set(key, body)
		}
		applog.FromContext(r.Context()).WithComponent(applog.ComponentHTTP).DebugContext(r.Context(), "Rendered view",
			applog.FieldView, name,
			applog.FieldPeriod, q.Period,
			applog.FieldGeneration, snap.Generation)
		w.Header().Set("X-Cache", "MISS")
		writeBody(w, http.StatusOK, body)
	}
}

type transactionsResponse struct {
	Period       string             `json:"period,omitempty"`
	Count        int                `json:"count"`
	Total        decimal.Decimal    `json:"total"`
	Transactions []core.Transaction `json:"transactions"`
}

func periodsView(_ *http.Request, snap *services.Snapshot, _ ViewQuery) (any, error) {
	periods := snap.Periods
	if periods == nil {
		periods = []core.Period{}
	}
	return map[string]any{"periods": periods}, nil
}

func categoriesView(_ *http.Request, snap *services.Snapshot, _ ViewQuery) (any, error) {
	cats := snap.Categories
	if cats == nil {
		cats = []string{}
	}
	return map[string]any{"categories": cats}, nil
}

func summaryView(_ *http.Request, snap *services.Snapshot, q ViewQuery) (any, error) {
	txs := snap.Ledger.Transactions
	var period core.Period
	if q.All {
		period = core.Period{Key: "all", Label: ledger.HistoryLabel}
	} else {
		p, err := core.ParsePeriodKey(q.Period)
		if err != nil {
			return nil, &ParamError{Param: "period", Value: q.Period, Msg: "expected YYYY-MM"}
		}
		period = p
		txs = ledger.SelectPeriod(txs, p.Key)
	}
	return ledger.Summarize(ledger.FilterCategories(txs, q.Categories), period), nil
}

func selectTransactions(snap *services.Snapshot, q ViewQuery) []core.Transaction {
	txs := snap.Ledger.Transactions
	if !q.All {
		txs = ledger.SelectPeriod(txs, q.Period)
	}
	return ledger.FilterCategories(txs, q.Categories)
}

func transactionsView(_ *http.Request, snap *services.Snapshot, q ViewQuery) (any, error) {
	txs := selectTransactions(snap, q)
	if txs == nil {
		txs = []core.Transaction{}
	}
	resp := transactionsResponse{
		Count:        len(txs),
		Total:        ledger.Total(txs),
		Transactions: txs,
	}
	if !q.All {
		resp.Period = q.Period
	}
	return resp, nil
}

// handleTransactions serves the transactions view, or a CSV download when
// format=csv.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	q, err := ParseViewQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err, s.retryAfter)
		return
	}
	if q.Format != "csv" {
		s.view("transactions", transactionsView)(w, r)
		return
	}

	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	if !q.All && q.Period == "" && len(snap.Periods) > 0 {
		q.Period = snap.Periods[0].Key
	}

	var buf bytes.Buffer
	if err := ledger.WriteCSV(&buf, selectTransactions(snap, q)); err != nil {
		writeError(w, r, fmt.Errorf("export transactions: %w", err), s.retryAfter)
		return
	}
	name := "transacoes.csv"
	if !q.All {
		name = fmt.Sprintf("transacoes-%s.csv", q.Period)
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func evolutionView(_ *http.Request, snap *services.Snapshot, q ViewQuery) (any, error) {
	return evolution(snap.Ledger.Transactions, q, core.Date{})
}

// investmentsView is the evolution chart restricted to investment rows, on
// the same tick grid as the full evolution chart.
func investmentsView(_ *http.Request, snap *services.Snapshot, q ViewQuery) (any, error) {
	txs := ledger.MatchCategory(snap.Ledger.Transactions, investmentCategory)
	view, err := evolution(txs, q, ledger.EarliestDate(snap.Ledger.Transactions))
	if err != nil {
		return nil, err
	}
	subset := txs
	if !q.All {
		subset = ledger.SelectPeriod(subset, q.Period)
	}
	return map[string]any{
		"evolution": view,
		"total":     ledger.Total(ledger.FilterCategories(subset, q.Categories)),
	}, nil
}

func evolution(txs []core.Transaction, q ViewQuery, origin core.Date) (ledger.EvolutionView, error) {
	view, err := ledger.Evolution(txs, ledger.EvolutionQuery{
		Period:     q.Period,
		All:        q.All,
		Categories: q.Categories,
		Origin:     origin,
	})
	if err != nil {
		return ledger.EvolutionView{}, &ParamError{Param: "period", Value: q.Period, Msg: "expected YYYY-MM"}
	}
	return view, nil
}

func distributionView(_ *http.Request, snap *services.Snapshot, q ViewQuery) (any, error) {
	txs := selectTransactions(snap, q)
	dist := ledger.OutflowByCategory(txs)
	if dist == nil {
		dist = []core.CategoryAmount{}
	}
	return map[string]any{
		"period":     q.Period,
		"categories": dist,
		"outflow":    ledger.TotalByDirection(txs, core.Outflow).Abs(),
	}, nil
}

// balanceView reports the cumulative balance up to as_of, by default the
// latest transaction date.
func balanceView(r *http.Request, snap *services.Snapshot, _ ViewQuery) (any, error) {
	asOf, ok, err := ParseAsOf(r.URL.Query())
	if err != nil {
		return nil, err
	}
	txs := snap.Ledger.Transactions
	if !ok {
		for _, tx := range txs {
			if tx.Date.After(asOf.Time) {
				asOf = tx.Date
			}
		}
	}
	return map[string]any{
		"as_of":   asOf,
		"balance": ledger.CumulativeBalance(txs, asOf),
	}, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Status())
}

// handleRefresh forces a reload and drops every rendered view.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.ledger.Refresh(r.Context())
	s.views.Purge()
	if err != nil {
		writeError(w, r, err, s.retryAfter)
		return
	}
	applog.FromContext(r.Context()).WithComponent(applog.ComponentHTTP).InfoContext(r.Context(), "Ledger refreshed on request",
		applog.FieldOperation, applog.OpRefresh,
		applog.FieldGeneration, snap.Generation)
	writeJSON(w, http.StatusOK, s.ledger.Status())
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, APIError{
		Kind:    "rate_limited",
		Message: "rate limit exceeded, please try again later",
	})
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports ready once a ledger with transactions is cached.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	st := s.ledger.Status()
	status, code := "ready", http.StatusOK
	if !st.Loaded || st.Transactions == 0 {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"ledger": st,
		"cache": map[string]any{
			"views": s.views.Size(),
		},
	})
}
