package sysconfig

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/opsarch/admin-core/internal/sysconfig/entity"
	"github.com/opsarch/admin-core/pkg/cache"
)

var (
	ErrNotFound        = errors.New("config not found")
	ErrVersionConflict = errors.New("config version conflict")
)

// Store is satisfied by *repo.ConfigRepo.
type Store interface {
	List(ctx context.Context) ([]entity.Config, error)
	GetByKey(ctx context.Context, key string) (*entity.Config, error)
	Update(ctx context.Context, key, value string, expectedVersion int64) (int64, error)
	Upsert(ctx context.Context, key, value, remark string) error
}

// Config values never expire on their own; the refresh path rewrites them.
// A TTL still bounds staleness if a refresh is missed.
const configCacheTTL = 24 * time.Hour

// Service keeps the sys_config table mirrored into Redis under the
// sys_config: prefix, the way lookups expect to find it.
type Service struct {
	store  Store
	cache  *cache.Client
	logger *zap.SugaredLogger
}

func NewService(store Store, c *cache.Client, logger *zap.SugaredLogger) *Service {
	return &Service{store: store, cache: c, logger: logger}
}

// Refresh loads every row into the cache. Called at startup and via the
// admin endpoint; a cache failure only degrades lookups to the DB.
func (s *Service) Refresh(ctx context.Context) error {
	rows, err := s.store.List(ctx)
	if err != nil {
		return err
	}
	if _, err := s.cache.DeleteByPrefix(ctx, cache.PrefixSysConfig); err != nil && !errors.Is(err, cache.ErrUnavailable) {
		s.logger.Warnw("sys config cache clear failed", "err", err)
	}
	for _, row := range rows {
		key := cache.PrefixSysConfig + ":" + row.ConfigKey
		if err := s.cache.Set(ctx, key, row.ConfigValue, configCacheTTL); err != nil {
			if errors.Is(err, cache.ErrUnavailable) {
				s.logger.Warnw("sys config cache refresh skipped, redis unavailable")
				return nil
			}
			s.logger.Warnw("sys config cache write failed", "key", row.ConfigKey, "err", err)
		}
	}
	s.logger.Infow("sys config cache refreshed", "entries", len(rows))
	return nil
}

// List returns every configuration row.
func (s *Service) List(ctx context.Context) ([]entity.Config, error) {
	return s.store.List(ctx)
}

// Get returns one configuration row.
func (s *Service) Get(ctx context.Context, key string) (*entity.Config, error) {
	c, err := s.store.GetByKey(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// Value returns a config value, preferring the cache and falling back to
// the database when the cache misses or is down.
func (s *Service) Value(ctx context.Context, key string) (string, error) {
	if v, err := s.cache.Get(ctx, cache.PrefixSysConfig+":"+key); err == nil {
		return v, nil
	}
	c, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return c.ConfigValue, nil
}

// BoolValue interprets a config switch. Unknown keys and lookup failures
// report the fallback so feature switches degrade predictably.
func (s *Service) BoolValue(ctx context.Context, key string, fallback bool) bool {
	v, err := s.Value(ctx, key)
	if err != nil {
		return fallback
	}
	return v == "true"
}

// Create inserts a key or overwrites it unconditionally, then refreshes its
// cache entry. Used by the admin create path where no prior version exists.
func (s *Service) Create(ctx context.Context, key, value, remark string) error {
	if err := s.store.Upsert(ctx, key, value, remark); err != nil {
		return err
	}
	if err := s.cache.Set(ctx, cache.PrefixSysConfig+":"+key, value, configCacheTTL); err != nil && !errors.Is(err, cache.ErrUnavailable) {
		s.logger.Warnw("sys config cache write failed", "key", key, "err", err)
	}
	return nil
}

// Set updates a value with optimistic locking and refreshes its cache entry.
func (s *Service) Set(ctx context.Context, key, value string, expectedVersion int64) error {
	rows, err := s.store.Update(ctx, key, value, expectedVersion)
	if err != nil {
		return err
	}
	if rows == 0 {
		// Distinguish a missing key from a stale version.
		if _, err := s.Get(ctx, key); err != nil {
			return err
		}
		return ErrVersionConflict
	}
	if err := s.cache.Set(ctx, cache.PrefixSysConfig+":"+key, value, configCacheTTL); err != nil && !errors.Is(err, cache.ErrUnavailable) {
		s.logger.Warnw("sys config cache write failed", "key", key, "err", err)
	}
	return nil
}
