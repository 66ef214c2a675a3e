package sysconfig

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/opsarch/admin-core/internal/sysconfig/entity"
	"github.com/opsarch/admin-core/pkg/cache"
)

type memStore struct {
	rows map[string]*entity.Config
}

func newMemStore(kv map[string]string) *memStore {
	m := &memStore{rows: map[string]*entity.Config{}}
	var id int64
	for k, v := range kv {
		id++
		m.rows[k] = &entity.Config{ConfigID: id, ConfigKey: k, ConfigValue: v, Version: 1}
	}
	return m
}

func (m *memStore) List(_ context.Context) ([]entity.Config, error) {
	out := make([]entity.Config, 0, len(m.rows))
	for _, c := range m.rows {
		out = append(out, *c)
	}
	return out, nil
}

func (m *memStore) GetByKey(_ context.Context, key string) (*entity.Config, error) {
	c, ok := m.rows[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) Update(_ context.Context, key, value string, expectedVersion int64) (int64, error) {
	c, ok := m.rows[key]
	if !ok || c.Version != expectedVersion {
		return 0, nil
	}
	c.ConfigValue = value
	c.Version++
	return 1, nil
}

func (m *memStore) Upsert(_ context.Context, key, value, remark string) error {
	if c, ok := m.rows[key]; ok {
		c.ConfigValue = value
		return nil
	}
	m.rows[key] = &entity.Config{ConfigKey: key, ConfigValue: value, Remark: remark, Version: 1}
	return nil
}

func downCache() *cache.Client {
	return cache.New(cache.Config{
		Addr:           "127.0.0.1:1",
		Timeout:        100 * time.Millisecond,
		RedialInterval: time.Hour,
	}, zap.NewNop().Sugar())
}

func TestValueFallsBackToStore(t *testing.T) {
	t.Parallel()

	store := newMemStore(map[string]string{entity.KeyCaptchaEnabled: "true"})
	svc := NewService(store, downCache(), zap.NewNop().Sugar())

	v, err := svc.Value(context.Background(), entity.KeyCaptchaEnabled)
	if err != nil {
		t.Fatalf("Value error: %v", err)
	}
	if v != "true" {
		t.Fatalf("value = %q, want true", v)
	}
}

func TestGetNotFound(t *testing.T) {
	t.Parallel()

	svc := NewService(newMemStore(nil), downCache(), zap.NewNop().Sugar())

	if _, err := svc.Get(context.Background(), "missing.key"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBoolValue(t *testing.T) {
	t.Parallel()

	store := newMemStore(map[string]string{
		"switch.on":    "true",
		"switch.off":   "false",
		"switch.weird": "yes",
	})
	svc := NewService(store, downCache(), zap.NewNop().Sugar())

	cases := []struct {
		key      string
		fallback bool
		want     bool
	}{
		{"switch.on", false, true},
		{"switch.off", true, false},
		{"switch.weird", true, false},
		{"switch.missing", true, true},
		{"switch.missing", false, false},
	}
	for _, tc := range cases {
		if got := svc.BoolValue(context.Background(), tc.key, tc.fallback); got != tc.want {
			t.Errorf("BoolValue(%q, %v) = %v, want %v", tc.key, tc.fallback, got, tc.want)
		}
	}
}

func TestCreateUpsertsKey(t *testing.T) {
	t.Parallel()

	store := newMemStore(nil)
	svc := NewService(store, downCache(), zap.NewNop().Sugar())

	if err := svc.Create(context.Background(), "app.banner", "maintenance at 02:00", "shown on login page"); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	c, err := svc.Get(context.Background(), "app.banner")
	if err != nil {
		t.Fatalf("Get after Create error: %v", err)
	}
	if c.ConfigValue != "maintenance at 02:00" || c.Remark != "shown on login page" {
		t.Fatalf("unexpected row after Create: %+v", c)
	}

	// Creating again overwrites unconditionally.
	if err := svc.Create(context.Background(), "app.banner", "back to normal", ""); err != nil {
		t.Fatalf("Create overwrite error: %v", err)
	}
	if v, _ := svc.Value(context.Background(), "app.banner"); v != "back to normal" {
		t.Fatalf("value after overwrite = %q", v)
	}
}

func TestSetOptimisticLocking(t *testing.T) {
	t.Parallel()

	store := newMemStore(map[string]string{"app.name": "admin"})
	svc := NewService(store, downCache(), zap.NewNop().Sugar())

	if err := svc.Set(context.Background(), "app.name", "console", 1); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if store.rows["app.name"].ConfigValue != "console" {
		t.Fatalf("value not updated: %+v", store.rows["app.name"])
	}

	// stale version
	if err := svc.Set(context.Background(), "app.name", "other", 1); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	// missing key
	if err := svc.Set(context.Background(), "no.such.key", "v", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRefreshSurvivesCacheOutage(t *testing.T) {
	t.Parallel()

	store := newMemStore(map[string]string{entity.KeyRegisterEnabled: "true"})
	svc := NewService(store, downCache(), zap.NewNop().Sugar())

	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh error with redis down: %v", err)
	}
}
