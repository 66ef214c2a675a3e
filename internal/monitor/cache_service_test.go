package monitor

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/opsarch/admin-core/pkg/cache"
)

const sampleInfo = `# Server
redis_version:7.2.4
redis_mode:standalone
os:Linux 6.1.0 x86_64

# Memory
used_memory:1024000
used_memory_human:1000.00K
`

const sampleCommandStats = `# Commandstats
cmdstat_get:calls=21,usec=175,usec_per_call=8.33
cmdstat_set:calls=12,usec=140,usec_per_call=11.67
cmdstat_ping:calls=3,usec=9,usec_per_call=3.00
`

func TestParseInfo(t *testing.T) {
	t.Parallel()

	got := parseInfo(sampleInfo)
	if got["redis_version"] != "7.2.4" {
		t.Fatalf("redis_version = %q", got["redis_version"])
	}
	if got["used_memory_human"] != "1000.00K" {
		t.Fatalf("used_memory_human = %q", got["used_memory_human"])
	}
	if _, ok := got["# Server"]; ok {
		t.Fatal("section header leaked into the parsed map")
	}
}

func TestParseCommandStats(t *testing.T) {
	t.Parallel()

	stats := parseCommandStats(sampleCommandStats)
	if len(stats) != 3 {
		t.Fatalf("expected 3 stats, got %d", len(stats))
	}
	if stats[0].Name != "get" || stats[0].Value != "21" {
		t.Fatalf("first stat mismatch: %+v", stats[0])
	}
	if stats[1].Name != "set" || stats[1].Value != "12" {
		t.Fatalf("second stat mismatch: %+v", stats[1])
	}
}

func TestParseCommandStatsEmpty(t *testing.T) {
	t.Parallel()

	if stats := parseCommandStats(""); len(stats) != 0 {
		t.Fatalf("expected no stats, got %v", stats)
	}
}

func downCache() *cache.Client {
	return cache.New(cache.Config{
		Addr:           "127.0.0.1:1",
		Timeout:        100 * time.Millisecond,
		RedialInterval: time.Hour,
	}, zap.NewNop().Sugar())
}

func TestOverviewDegraded(t *testing.T) {
	t.Parallel()

	svc := NewCacheService(downCache(), zap.NewNop().Sugar())
	out, err := svc.Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview error: %v", err)
	}
	if out.Available {
		t.Fatal("expected unavailable overview")
	}
	if out.DBSize != 0 || len(out.Info) != 0 || len(out.CommandStats) != 0 {
		t.Fatalf("expected zero defaults, got %+v", out)
	}
}

func TestKeysByNameDegraded(t *testing.T) {
	t.Parallel()

	svc := NewCacheService(downCache(), zap.NewNop().Sugar())
	keys, err := svc.KeysByName(context.Background(), cache.PrefixAccessToken)
	if err != nil {
		t.Fatalf("KeysByName error: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("expected empty keys, got %v", keys)
	}
}

func TestCollectServerInfo(t *testing.T) {
	t.Parallel()

	info := CollectServerInfo()
	if info.GoVersion == "" {
		t.Fatal("expected a Go version")
	}
	if info.NumCPU < 1 {
		t.Fatalf("NumCPU = %d", info.NumCPU)
	}
	if info.PID == 0 {
		t.Fatal("expected a pid")
	}
}
