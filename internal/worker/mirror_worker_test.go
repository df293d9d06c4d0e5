package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saldo/internal/amqp"
	"saldo/internal/core"
	"saldo/internal/ledger"
	applog "saldo/internal/log"
	"saldo/internal/services"
	"saldo/internal/sheets/memory"
	"saldo/internal/storage"
)

type fakePublisher struct {
	mu      sync.Mutex
	reasons []string
	err     error
}

func (p *fakePublisher) PublishRefreshRequest(_ context.Context, requestedBy, reason string) (*amqp.RefreshRequestMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.reasons = append(p.reasons, reason)
	return amqp.NewRefreshRequestMessage(requestedBy, reason), nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.reasons)
}

func newRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newWorker(src *memory.Store, repo *storage.SQLiteRepository, pub RefreshPublisher) *MirrorWorker {
	return NewMirrorWorker(src, repo, ledger.DefaultConfig(), pub, applog.Discard())
}

func TestMirrorWorker_SyncOnce(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	pub := &fakePublisher{}
	w := newWorker(memory.NewDemo(), repo, pub)

	imp, err := w.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, "memory", imp.Source)
	assert.Equal(t, len(memory.DemoRecords()), imp.Rows)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(memory.DemoRecords()), n)

	rows, err := repo.Records(ctx)
	require.NoError(t, err)
	assert.Equal(t, "R$ 5.000,00", rows[0]["Valor"])

	require.Equal(t, 1, pub.count())
	assert.Equal(t, "mirror import "+imp.ID, pub.reasons[0])
}

func TestMirrorWorker_SyncOnceWithoutPublisher(t *testing.T) {
	w := newWorker(memory.NewDemo(), newRepo(t), nil)
	_, err := w.SyncOnce(context.Background())
	require.NoError(t, err)
}

func TestMirrorWorker_PublishFailureIsNotFatal(t *testing.T) {
	pub := &fakePublisher{err: errors.New("circuit breaker is open")}
	w := newWorker(memory.NewDemo(), newRepo(t), pub)
	_, err := w.SyncOnce(context.Background())
	require.NoError(t, err)
}

func TestMirrorWorker_SourceErrorKeepsMirror(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	src := memory.NewDemo()
	w := newWorker(src, repo, nil)

	_, err := w.SyncOnce(ctx)
	require.NoError(t, err)

	src.FailWith(errors.New("quota exceeded"))
	_, err = w.SyncOnce(ctx)
	var se *core.SourceError
	require.ErrorAs(t, err, &se)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(memory.DemoRecords()), n)
}

func TestMirrorWorker_SchemaErrorKeepsMirror(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	src := memory.NewDemo()
	w := newWorker(src, repo, nil)

	_, err := w.SyncOnce(ctx)
	require.NoError(t, err)

	src.Replace([]core.RawRecord{{"Data": "01/03/2024", "Valor": "R$ 1,00"}})
	_, err = w.SyncOnce(ctx)
	var se *core.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "schema", services.ErrorKind(err))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(memory.DemoRecords()), n)
}

func TestMirrorWorker_EmptySourceIsNoData(t *testing.T) {
	repo := newRepo(t)
	w := newWorker(memory.New(nil), repo, nil)

	_, err := w.SyncOnce(context.Background())
	require.ErrorIs(t, err, services.ErrNoData)

	_, ok, err := repo.LastImport(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMirrorWorker_SyncIfStale(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	src := memory.NewDemo()
	w := newWorker(src, repo, nil)

	ran, err := w.SyncIfStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.True(t, ran, "first run has no import yet")
	assert.Equal(t, 1, src.Reads())

	ran, err = w.SyncIfStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, 1, src.Reads())

	w.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	ran, err = w.SyncIfStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 2, src.Reads())
}

func TestMirrorWorker_RunStopsOnCancel(t *testing.T) {
	repo := newRepo(t)
	src := memory.NewDemo()
	w := newWorker(src, repo, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, 10*time.Millisecond) }()

	require.Eventually(t, func() bool { return src.Reads() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
