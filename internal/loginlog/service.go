package loginlog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/opsarch/admin-core/internal/loginlog/entity"
	"github.com/opsarch/admin-core/pkg/cache"
)

// Store is the persistence surface the service needs; *repo.LogRepo
// satisfies it.
type Store interface {
	Insert(ctx context.Context, l *entity.LoginLog) error
	List(ctx context.Context, q entity.ListQuery) ([]entity.LoginLog, error)
	Count(ctx context.Context, q entity.ListQuery) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Clear(ctx context.Context) error
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

const listCacheTTL = 5 * time.Minute

// DefaultRetentionDays bounds how long login records are kept by the
// periodic purge.
const DefaultRetentionDays = 30

// RetentionFromEnv reads LOGIN_LOG_RETENTION_DAYS, falling back to the
// default.
func RetentionFromEnv() int {
	if v := os.Getenv("LOGIN_LOG_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultRetentionDays
}

// Service wraps the login log store with caching and the retention purge.
type Service struct {
	store         Store
	cache         *cache.Client
	logger        *zap.SugaredLogger
	retentionDays int
}

func NewService(store Store, c *cache.Client, retentionDays int, logger *zap.SugaredLogger) *Service {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &Service{store: store, cache: c, logger: logger, retentionDays: retentionDays}
}

// Record appends a login attempt. Recording is best effort: a failure is
// logged and must never fail the login itself, so callers ignore the error.
func (s *Service) Record(ctx context.Context, l *entity.LoginLog) {
	if err := s.store.Insert(ctx, l); err != nil {
		s.logger.Warnw("record login log failed", "userName", l.UserName, "err", err)
		return
	}
	s.invalidate(ctx)
}

type listResult struct {
	Rows  []entity.LoginLog `json:"rows"`
	Total int64             `json:"total"`
}

// List returns a filtered page plus total, cached for five minutes.
func (s *Service) List(ctx context.Context, q entity.ListQuery) ([]entity.LoginLog, int64, error) {
	key := listCacheKey(q)
	res, err := cache.Remember(ctx, s.cache, key, listCacheTTL, func(ctx context.Context) (listResult, error) {
		rows, err := s.store.List(ctx, q)
		if err != nil {
			return listResult{}, err
		}
		total, err := s.store.Count(ctx, q)
		if err != nil {
			return listResult{}, err
		}
		return listResult{Rows: rows, Total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return res.Rows, res.Total, nil
}

func listCacheKey(q entity.ListQuery) string {
	begin, end := "", ""
	if q.BeginTime != nil {
		begin = q.BeginTime.Format(time.RFC3339)
	}
	if q.EndTime != nil {
		end = q.EndTime.Format(time.RFC3339)
	}
	return cache.HashKey(cache.PrefixLoginLog,
		q.UserName, q.IPAddr, q.Status, begin, end,
		fmt.Sprint(q.Limit), fmt.Sprint(q.Offset))
}

// Clear truncates the log.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// PurgeExpired removes records past the retention window.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	n, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.invalidate(ctx)
	}
	return n, nil
}

// StartPurgeLoop runs PurgeExpired once at startup and then daily until the
// context is cancelled.
func (s *Service) StartPurgeLoop(ctx context.Context) {
	go func() {
		run := func() {
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				s.logger.Warnw("login log purge failed", "err", err)
				return
			}
			if n > 0 {
				s.logger.Infow("login log purged", "removed", n, "retentionDays", s.retentionDays)
			}
		}
		run()
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run()
			}
		}
	}()
}

// CountSince forwards to the store (used by the stats overview).
func (s *Service) CountSince(ctx context.Context, since time.Time) (int64, error) {
	return s.store.CountSince(ctx, since)
}

func (s *Service) invalidate(ctx context.Context) {
	if _, err := s.cache.DeleteByPrefix(ctx, cache.PrefixLoginLog); err != nil && !errors.Is(err, cache.ErrUnavailable) {
		s.logger.Warnw("login log cache invalidation failed", "err", err)
	}
}
