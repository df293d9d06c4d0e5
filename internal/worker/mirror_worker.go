// Package worker copies the upstream ledger into SQLite so servers can run
// on the sqlite backend without calling the Sheets API on every refresh.
package worker

import (
	"context"
	"fmt"
	"time"

	"saldo/internal/amqp"
	"saldo/internal/core"
	"saldo/internal/ledger"
	applog "saldo/internal/log"
	"saldo/internal/services"
	"saldo/internal/sheets"
	"saldo/internal/storage"
)

// Store keeps the mirrored rows.
type Store interface {
	ImportRecords(ctx context.Context, source string, recs []core.RawRecord) (storage.Import, error)
	LastImport(ctx context.Context) (storage.Import, bool, error)
}

// RefreshPublisher asks running servers to reload after an import.
type RefreshPublisher interface {
	PublishRefreshRequest(ctx context.Context, requestedBy, reason string) (*amqp.RefreshRequestMessage, error)
}

// MirrorWorker copies the rows of a source into a Store.
type MirrorWorker struct {
	source     sheets.RowSource
	store      Store
	normalizer *ledger.Normalizer
	publisher  RefreshPublisher
	logger     *applog.Logger
	now        func() time.Time
}

// NewMirrorWorker creates a worker. publisher may be nil.
func NewMirrorWorker(source sheets.RowSource, store Store, cfg ledger.Config, publisher RefreshPublisher, logger *applog.Logger) *MirrorWorker {
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	logger = logger.WithComponent(applog.ComponentStorage)
	return &MirrorWorker{
		source:     source,
		store:      store,
		normalizer: ledger.NewNormalizer(cfg, logger.Slog()),
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}
}

// SyncOnce replaces the stored rows with the current source rows. Rows
// that do not form a readable ledger are rejected before anything is
// replaced, so a broken sheet never wipes the mirror.
func (w *MirrorWorker) SyncOnce(ctx context.Context) (storage.Import, error) {
	source := sheets.Describe(w.source)

	recs, err := w.source.Records(ctx)
	if err != nil {
		return storage.Import{}, err
	}
	led, err := w.normalizer.Normalize(recs)
	if err != nil {
		return storage.Import{}, fmt.Errorf("%s: %w", source, err)
	}
	if led.Empty() {
		return storage.Import{}, fmt.Errorf("%s: %w", source, services.ErrNoData)
	}

	imp, err := w.store.ImportRecords(ctx, source, recs)
	if err != nil {
		return storage.Import{}, fmt.Errorf("import rows: %w", err)
	}

	w.logger.InfoContext(ctx, "Mirrored ledger rows",
		applog.FieldOperation, applog.OpImport,
		applog.FieldSource, source,
		applog.FieldRows, imp.Rows,
		applog.FieldDropped, led.DroppedRows,
		"import_id", imp.ID)

	if w.publisher != nil {
		if _, err := w.publisher.PublishRefreshRequest(ctx, "saldo-worker", "mirror import "+imp.ID); err != nil {
			w.logger.WarnContext(ctx, "Failed to publish refresh request", applog.FieldError, err)
		}
	}
	return imp, nil
}

// SyncIfStale runs SyncOnce when there is no import yet or the last one is
// older than maxAge. It reports whether a sync ran.
func (w *MirrorWorker) SyncIfStale(ctx context.Context, maxAge time.Duration) (bool, error) {
	last, ok, err := w.store.LastImport(ctx)
	if err != nil {
		w.logger.WarnContext(ctx, "Could not determine last import, syncing", applog.FieldError, err)
	} else if ok && w.now().Sub(last.ImportedAt) < maxAge {
		w.logger.InfoContext(ctx, "Mirror is fresh",
			"last_import", last.ImportedAt,
			"age", w.now().Sub(last.ImportedAt).Round(time.Second))
		return false, nil
	}
	if _, err := w.SyncOnce(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// Run syncs every interval until ctx is done. Failed syncs are logged and
// retried on the next tick; the previous mirror stays in place.
func (w *MirrorWorker) Run(ctx context.Context, interval time.Duration) error {
	if _, err := w.SyncIfStale(ctx, interval); err != nil {
		w.logError(ctx, "Startup sync failed", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				w.logError(ctx, "Periodic sync failed", err)
			}
		}
	}
}

func (w *MirrorWorker) logError(ctx context.Context, msg string, err error) {
	errorType := applog.ErrorTypeInternal
	switch services.ErrorKind(err) {
	case "schema":
		errorType = applog.ErrorTypeSchema
	case "source":
		errorType = applog.ErrorTypeSource
	case "no_data":
		errorType = applog.ErrorTypeNoData
	}
	w.logger.ErrorContext(ctx, msg,
		applog.FieldError, err,
		applog.FieldErrorType, errorType,
		applog.FieldOperation, applog.OpImport)
}
