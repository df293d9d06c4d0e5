package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"saldo/internal/amqp"
)

// RefreshSubscriber delivers refresh requests until ctx is done.
type RefreshSubscriber interface {
	ConsumeRefreshRequests(ctx context.Context, handler func(*amqp.RefreshRequestMessage) error) error
}

// Refresher drops the cached ledger and reloads it.
type Refresher interface {
	Refresh(ctx context.Context) (*Snapshot, error)
}

// RefreshListener reloads the ledger whenever a refresh request arrives.
type RefreshListener struct {
	subscriber RefreshSubscriber
	refresher  Refresher

	// Lifecycle management
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

// NewRefreshListener creates a new refresh listener
func NewRefreshListener(subscriber RefreshSubscriber, refresher Refresher) *RefreshListener {
	return &RefreshListener{
		subscriber: subscriber,
		refresher:  refresher,
	}
}

// Start begins consuming. Returns an error if already running.
func (l *RefreshListener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return fmt.Errorf("refresh listener is already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.running = true
	l.cancel = cancel
	l.doneCh = make(chan struct{})

	go l.run(runCtx, l.doneCh)

	slog.InfoContext(ctx, "Refresh listener started", "component", "ledger")
	return nil
}

// Stop cancels consumption and waits for it to finish.
func (l *RefreshListener) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	cancel, done := l.cancel, l.doneCh
	l.mu.Unlock()

	cancel()

	select {
	case <-done:
		slog.InfoContext(ctx, "Refresh listener stopped gracefully", "component", "ledger")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Refresh listener stop timed out", "component", "ledger")
		return ctx.Err()
	}
	return nil
}

// IsRunning returns whether the listener is currently consuming
func (l *RefreshListener) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *RefreshListener) run(ctx context.Context, done chan struct{}) {
	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
		close(done)
	}()

	err := l.subscriber.ConsumeRefreshRequests(ctx, func(msg *amqp.RefreshRequestMessage) error {
		return l.handle(ctx, msg)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.ErrorContext(ctx, "Refresh listener stopped with error", "component", "ledger", "error", err)
	}
}

// handle never asks for redelivery: a failed reload is reported through
// the ledger status and retried by the next request or query.
func (l *RefreshListener) handle(ctx context.Context, msg *amqp.RefreshRequestMessage) error {
	slog.InfoContext(ctx, "Refresh requested",
		"component", "ledger",
		"id", msg.ID,
		"requested_by", msg.RequestedBy,
		"reason", msg.Reason)

	snap, err := l.refresher.Refresh(ctx)
	switch {
	case err == nil:
		slog.DebugContext(ctx, "Ledger reloaded on request", "component", "ledger", "generation", snap.Generation)
	case errors.Is(err, ErrNoData):
		slog.WarnContext(ctx, "Ledger reloaded but holds no data", "component", "ledger", "id", msg.ID)
	default:
		slog.WarnContext(ctx, "Ledger reload failed", "component", "ledger", "id", msg.ID, "error", err, "kind", ErrorKind(err))
	}
	return nil
}
