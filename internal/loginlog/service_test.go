package loginlog

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/opsarch/admin-core/internal/loginlog/entity"
	"github.com/opsarch/admin-core/pkg/cache"
)

type memStore struct {
	logs    []entity.LoginLog
	cleared bool
}

func (m *memStore) Insert(_ context.Context, l *entity.LoginLog) error {
	m.logs = append(m.logs, *l)
	return nil
}

func (m *memStore) List(_ context.Context, q entity.ListQuery) ([]entity.LoginLog, error) {
	out := []entity.LoginLog{}
	for _, l := range m.logs {
		if q.UserName != "" && l.UserName != q.UserName {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (m *memStore) Count(_ context.Context, q entity.ListQuery) (int64, error) {
	rows, _ := m.List(context.Background(), q)
	return int64(len(rows)), nil
}

func (m *memStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	kept := m.logs[:0]
	var removed int64
	for _, l := range m.logs {
		if l.LoginTime.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	m.logs = kept
	return removed, nil
}

func (m *memStore) Clear(_ context.Context) error {
	m.cleared = true
	m.logs = nil
	return nil
}

func (m *memStore) CountSince(_ context.Context, since time.Time) (int64, error) {
	var n int64
	for _, l := range m.logs {
		if l.Status == entity.StatusSuccess && !l.LoginTime.Before(since) {
			n++
		}
	}
	return n, nil
}

func downCache() *cache.Client {
	return cache.New(cache.Config{
		Addr:           "127.0.0.1:1",
		Timeout:        100 * time.Millisecond,
		RedialInterval: time.Hour,
	}, zap.NewNop().Sugar())
}

func TestRecordAndList(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	svc := NewService(store, downCache(), 30, zap.NewNop().Sugar())

	svc.Record(context.Background(), &entity.LoginLog{
		UserName:  "alice",
		Status:    entity.StatusSuccess,
		LoginTime: time.Now(),
	})
	svc.Record(context.Background(), &entity.LoginLog{
		UserName:  "bob",
		Status:    entity.StatusFailure,
		LoginTime: time.Now(),
	})

	rows, total, err := svc.List(context.Background(), entity.ListQuery{UserName: "alice", Limit: 10})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if total != 1 || len(rows) != 1 || rows[0].UserName != "alice" {
		t.Fatalf("unexpected list result: total=%d rows=%+v", total, rows)
	}
}

type signalStore struct {
	memStore
	purged chan struct{}
}

func (s *signalStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	defer close(s.purged)
	return s.memStore.DeleteOlderThan(ctx, cutoff)
}

func TestStartPurgeLoopRunsInBackground(t *testing.T) {
	t.Parallel()

	store := &signalStore{purged: make(chan struct{})}
	svc := NewService(store, downCache(), 30, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Returns immediately; the initial purge happens on its own goroutine.
	svc.StartPurgeLoop(ctx)
	select {
	case <-store.purged:
	case <-time.After(2 * time.Second):
		t.Fatal("initial purge did not run")
	}
}

func TestPurgeExpired(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	svc := NewService(store, downCache(), 30, zap.NewNop().Sugar())

	old := time.Now().AddDate(0, 0, -40)
	fresh := time.Now()
	store.logs = []entity.LoginLog{
		{UserName: "stale", LoginTime: old},
		{UserName: "recent", LoginTime: fresh},
	}

	n, err := svc.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("PurgeExpired error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged record, got %d", n)
	}
	if len(store.logs) != 1 || store.logs[0].UserName != "recent" {
		t.Fatalf("unexpected remaining logs: %+v", store.logs)
	}
}

func TestClear(t *testing.T) {
	t.Parallel()

	store := &memStore{logs: []entity.LoginLog{{UserName: "x"}}}
	svc := NewService(store, downCache(), 30, zap.NewNop().Sugar())

	if err := svc.Clear(context.Background()); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if !store.cleared || len(store.logs) != 0 {
		t.Fatal("expected store to be cleared")
	}
}

func TestCountSinceOnlyCountsSuccesses(t *testing.T) {
	t.Parallel()

	now := time.Now()
	store := &memStore{logs: []entity.LoginLog{
		{Status: entity.StatusSuccess, LoginTime: now},
		{Status: entity.StatusFailure, LoginTime: now},
		{Status: entity.StatusSuccess, LoginTime: now.AddDate(0, 0, -2)},
	}}
	svc := NewService(store, downCache(), 30, zap.NewNop().Sugar())

	n, err := svc.CountSince(context.Background(), now.AddDate(0, 0, -1))
	if err != nil {
		t.Fatalf("CountSince error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 login, got %d", n)
	}
}

func TestRetentionDefaults(t *testing.T) {
	svc := NewService(&memStore{}, downCache(), 0, zap.NewNop().Sugar())
	if svc.retentionDays != DefaultRetentionDays {
		t.Fatalf("retentionDays = %d, want %d", svc.retentionDays, DefaultRetentionDays)
	}

	t.Setenv("LOGIN_LOG_RETENTION_DAYS", "90")
	if got := RetentionFromEnv(); got != 90 {
		t.Fatalf("RetentionFromEnv = %d, want 90", got)
	}
	t.Setenv("LOGIN_LOG_RETENTION_DAYS", "not-a-number")
	if got := RetentionFromEnv(); got != DefaultRetentionDays {
		t.Fatalf("RetentionFromEnv = %d, want %d", got, DefaultRetentionDays)
	}
}
