// Package services wires row sources, normalization and caching into the
// operations the HTTP API and the CLI call.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"saldo/internal/amqp"
	"saldo/internal/cache"
	"saldo/internal/core"
	"saldo/internal/ledger"
	applog "saldo/internal/log"
	"saldo/internal/sheets"
)

// ErrNoData reports a source that holds no usable transaction yet.
var ErrNoData = errors.New("no valid ledger data")

const notifyTimeout = 5 * time.Second

// RefreshNotifier is told about every successful refresh.
type RefreshNotifier interface {
	PublishLedgerRefreshed(ctx context.Context, msg *amqp.LedgerRefreshedMessage) error
}

// Snapshot is one normalized ledger together with its derived indexes.
// It is never modified after creation.
type Snapshot struct {
	Ledger     ledger.Ledger
	Periods    []core.Period
	Categories []string
	Source     string
	Generation uint64
	FetchedAt  time.Time
}

// Status describes the cache state for health checks and the CLI.
type Status struct {
	Source       string    `json:"source"`
	Loaded       bool      `json:"loaded"`
	Generation   uint64    `json:"generation"`
	TTL          string    `json:"ttl"`
	FetchedAt    time.Time `json:"fetched_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	Rows         int       `json:"rows"`
	Transactions int       `json:"transactions"`
	Dropped      int       `json:"dropped"`
	Coerced      int       `json:"coerced"`
	UnknownTypes int       `json:"unknown_types"`
	LastError    string    `json:"last_error,omitempty"`
}

// LedgerService serves the cached ledger of one row source.
type LedgerService struct {
	source     sheets.RowSource
	normalizer *ledger.Normalizer
	loader     *cache.Loader[*Snapshot]
	notifier   RefreshNotifier
	logger     *applog.Logger
	events     *applog.StructuredLogger
	now        func() time.Time
	retry      time.Duration
	generation atomic.Uint64
}

// LedgerServiceOption configures a LedgerService.
type LedgerServiceOption func(*LedgerService)

// WithNotifier publishes a ledger.refreshed event after each refresh.
func WithNotifier(n RefreshNotifier) LedgerServiceOption {
	return func(s *LedgerService) { s.notifier = n }
}

// WithLogger sets the service logger.
func WithLogger(l *applog.Logger) LedgerServiceOption {
	return func(s *LedgerService) { s.logger = l }
}

// WithClock replaces the time source of the service and its cache.
func WithClock(now func() time.Time) LedgerServiceOption {
	return func(s *LedgerService) { s.now = now }
}

// WithRetryBackoff stops a failing source from being asked again for d
// after each failure; Refresh still forces a fetch.
func WithRetryBackoff(d time.Duration) LedgerServiceOption {
	return func(s *LedgerService) { s.retry = d }
}

// NewLedgerService returns a service that refetches source at most once per ttl.
func NewLedgerService(source sheets.RowSource, cfg ledger.Config, ttl time.Duration, opts ...LedgerServiceOption) *LedgerService {
	s := &LedgerService{
		source: source,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = applog.FromContext(context.Background())
	}
	s.logger = s.logger.WithComponent(applog.ComponentLedger)
	s.events = applog.NewStructuredLogger(s.logger)
	s.normalizer = ledger.NewNormalizer(cfg, s.logger.Slog())
	s.loader = cache.NewLoader[*Snapshot](ttl, s.load).WithClock(s.now).WithRetryBackoff(s.retry)
	return s
}

// Ledger returns the cached snapshot, refreshing it when the TTL has
// elapsed. When a refresh fails the previous snapshot, if any, is returned
// together with the error. An empty ledger yields ErrNoData.
func (s *LedgerService) Ledger(ctx context.Context) (*Snapshot, error) {
	snap, err := s.loader.Get(ctx)
	if err != nil {
		return snap, err
	}
	if snap == nil || snap.Ledger.Empty() {
		return snap, ErrNoData
	}
	return snap, nil
}

// Refresh discards the cached ledger and loads a new one.
func (s *LedgerService) Refresh(ctx context.Context) (*Snapshot, error) {
	s.Invalidate()
	return s.Ledger(ctx)
}

// Invalidate makes the next Ledger call refetch.
func (s *LedgerService) Invalidate() {
	s.loader.Invalidate()
	s.logger.Debug("Ledger cache invalidated")
}

// Source names the row source.
func (s *LedgerService) Source() string {
	return sheets.Describe(s.source)
}

// Status reports the cache state without fetching.
func (s *LedgerService) Status() Status {
	snap, st := s.loader.Snapshot()
	out := Status{
		Source:     s.Source(),
		Loaded:     st.Loaded,
		Generation: st.Generation,
		TTL:        s.loader.TTL().String(),
		FetchedAt:  st.FetchedAt,
		ExpiresAt:  st.ExpiresAt,
	}
	if st.LastError != nil {
		out.LastError = st.LastError.Error()
	}
	if snap != nil {
		out.Rows = snap.Ledger.Rows
		out.Transactions = len(snap.Ledger.Transactions)
		out.Dropped = snap.Ledger.DroppedRows
		out.Coerced = snap.Ledger.CoercedAmounts
		out.UnknownTypes = snap.Ledger.UnknownTypes
	}
	return out
}

func (s *LedgerService) load(ctx context.Context) (*Snapshot, error) {
	source := s.Source()
	recs, err := s.source.Records(ctx)
	if err != nil {
		s.events.LogError(ctx, "Failed to fetch ledger rows", err, applog.ComponentLedger, applog.OpRead, errorType(err))
		return nil, err
	}
	led, err := s.normalizer.Normalize(recs)
	if err != nil {
		s.events.LogError(ctx, "Failed to normalize ledger rows", err, applog.ComponentLedger, applog.OpNormalize, errorType(err))
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	snap := &Snapshot{
		Ledger:     led,
		Periods:    ledger.Periods(led.Transactions),
		Categories: ledger.Categories(led.Transactions),
		Source:     source,
		Generation: s.generation.Add(1),
		FetchedAt:  s.now(),
	}
	s.events.LogLedgerLoaded(ctx, source, snap.Generation, led.Rows, led.DroppedRows, led.CoercedAmounts)
	s.notify(ctx, snap)
	return snap, nil
}

func (s *LedgerService) notify(ctx context.Context, snap *Snapshot) {
	if s.notifier == nil {
		return
	}
	keys := make([]string, len(snap.Periods))
	for i, p := range snap.Periods {
		keys[i] = p.Key
	}
	msg := amqp.NewLedgerRefreshedMessage(snap.Source, snap.Generation, snap.Ledger.Rows,
		snap.Ledger.DroppedRows, snap.Ledger.CoercedAmounts, keys, snap.FetchedAt)

	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := s.notifier.PublishLedgerRefreshed(nctx, msg); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish ledger refreshed event", applog.FieldError, err, applog.FieldGeneration, snap.Generation)
	}
}

// ErrorKind classifies a ledger error for logs and API responses:
// "schema", "source", "no_data" or "internal".
func ErrorKind(err error) string {
	var schemaErr *core.SchemaError
	var sourceErr *core.SourceError
	switch {
	case errors.Is(err, ErrNoData):
		return "no_data"
	case errors.As(err, &schemaErr):
		return "schema"
	case errors.As(err, &sourceErr), errors.Is(err, context.DeadlineExceeded):
		return "source"
	default:
		return "internal"
	}
}

func errorType(err error) string {
	switch ErrorKind(err) {
	case "schema":
		return applog.ErrorTypeSchema
	case "source":
		return applog.ErrorTypeSource
	case "no_data":
		return applog.ErrorTypeNoData
	default:
		return applog.ErrorTypeInternal
	}
}
