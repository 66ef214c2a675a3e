package monitor

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/opsarch/admin-core/pkg/cache"
)

// CacheOverview is the monitor snapshot: raw INFO fields, the key count and
// the per-command call counters.
type CacheOverview struct {
	Available    bool              `json:"available"`
	Info         map[string]string `json:"info"`
	DBSize       int64             `json:"dbSize"`
	CommandStats []CommandStat     `json:"commandStats"`
}

// CommandStat is one entry of the commandstats INFO section.
type CommandStat struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// KeyValue is a single cache entry with its remaining lifetime.
type KeyValue struct {
	Key   string `json:"cacheKey"`
	Value string `json:"cacheValue"`
	TTL   int64  `json:"ttlSeconds"`
}

// CacheService answers the cache monitoring endpoints. Every read degrades
// to zero values when Redis is down instead of erroring.
type CacheService struct {
	cache  *cache.Client
	logger *zap.SugaredLogger
}

func NewCacheService(c *cache.Client, logger *zap.SugaredLogger) *CacheService {
	return &CacheService{cache: c, logger: logger}
}

// Overview collects the INFO dump, the key count and the command stats.
func (s *CacheService) Overview(ctx context.Context) (*CacheOverview, error) {
	out := &CacheOverview{
		Info:         map[string]string{},
		CommandStats: []CommandStat{},
	}
	raw, err := s.cache.Info(ctx)
	if err != nil {
		if errors.Is(err, cache.ErrUnavailable) {
			return out, nil
		}
		return nil, err
	}
	out.Available = true
	out.Info = parseInfo(raw)

	if n, err := s.cache.DBSize(ctx); err == nil {
		out.DBSize = n
	}
	if stats, err := s.cache.Info(ctx, "commandstats"); err == nil {
		out.CommandStats = parseCommandStats(stats)
	}
	return out, nil
}

// Names returns the key-prefix catalogue.
func (s *CacheService) Names() []cache.CacheName {
	return cache.Catalogue()
}

// KeysByName lists the keys stored under one catalogue prefix.
func (s *CacheService) KeysByName(ctx context.Context, name string) ([]string, error) {
	keys, err := s.cache.Keys(ctx, name)
	if err != nil {
		if errors.Is(err, cache.ErrUnavailable) {
			return []string{}, nil
		}
		return nil, err
	}
	return keys, nil
}

// GetValue fetches one entry with its remaining TTL.
func (s *CacheService) GetValue(ctx context.Context, key string) (*KeyValue, error) {
	v, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	kv := &KeyValue{Key: key, Value: v, TTL: -1}
	if ttl, err := s.cache.TTL(ctx, key); err == nil && ttl > 0 {
		kv.TTL = int64(ttl / time.Second)
	}
	return kv, nil
}

// ClearByName drops every key under one catalogue prefix.
func (s *CacheService) ClearByName(ctx context.Context, name string) (int, error) {
	return s.cache.DeleteByPrefix(ctx, name)
}

// ClearKey drops a single entry.
func (s *CacheService) ClearKey(ctx context.Context, key string) error {
	return s.cache.Delete(ctx, key)
}

// ClearAll drops every key under every catalogue prefix. Keys outside the
// catalogue are left alone so a shared Redis is safe.
func (s *CacheService) ClearAll(ctx context.Context) (int, error) {
	total := 0
	for _, name := range cache.Catalogue() {
		n, err := s.cache.DeleteByPrefix(ctx, name.Name)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// parseInfo flattens a redis INFO dump into key/value pairs, skipping the
// section headers.
func parseInfo(raw string) map[string]string {
	out := map[string]string{}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}

// parseCommandStats extracts the call count per command from the
// commandstats section, e.g. "cmdstat_get:calls=21,usec=175,...".
func parseCommandStats(raw string) []CommandStat {
	stats := []CommandStat{}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "cmdstat_") {
			continue
		}
		name, rest, ok := strings.Cut(strings.TrimPrefix(line, "cmdstat_"), ":")
		if !ok {
			continue
		}
		calls := ""
		for _, field := range strings.Split(rest, ",") {
			if v, found := strings.CutPrefix(field, "calls="); found {
				calls = v
				break
			}
		}
		stats = append(stats, CommandStat{Name: name, Value: calls})
	}
	return stats
}
