package cache

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T) (*CacheService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := NewCacheServiceWithClient(client, zap.NewNop())
	t.Cleanup(func() { _ = svc.Close() })
	return svc, mr
}

func TestCacheServiceSetGet(t *testing.T) {
	svc, _ := newTestCache(t)
	ctx := context.Background()

	type payload struct {
		Name string `json:"name"`
	}
	if err := svc.Set(ctx, "k", payload{Name: "小红"}, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got payload
	if err := svc.Get(ctx, "k", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "小红" {
		t.Fatalf("unexpected value %+v", got)
	}

	var missing payload
	if err := svc.Get(ctx, "missing", &missing); err != nil {
		t.Fatalf("missing key should not be an error, got %v", err)
	}
	if missing.Name != "" {
		t.Fatalf("missing key should leave dest untouched, got %+v", missing)
	}
}

func TestDeliveryLedger(t *testing.T) {
	svc, mr := newTestCache(t)
	ledger := NewDeliveryLedger(svc, 0, zap.NewNop())
	ctx := context.Background()

	delivered, err := ledger.WasDelivered(ctx, "2024-03-14", "pushplus", "小红:friend-1")
	if err != nil || delivered {
		t.Fatalf("expected fresh ledger to be empty, delivered=%v err=%v", delivered, err)
	}

	if err := ledger.MarkDelivered(ctx, "2024-03-14", "pushplus", "小红:friend-1"); err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}

	key := "greeting:delivered:2024-03-14:pushplus:小红:friend-1"
	if !mr.Exists(key) {
		t.Fatalf("expected key %s to exist, keys=%v", key, mr.Keys())
	}
	if ttl := mr.TTL(key); ttl != 36*time.Hour {
		t.Fatalf("expected 36h TTL, got %s", ttl)
	}
	stored, err := mr.Get(key)
	if err != nil || !strings.Contains(stored, `"delivered_at"`) {
		t.Fatalf("expected a delivery record, got %q err=%v", stored, err)
	}

	delivered, err = ledger.WasDelivered(ctx, "2024-03-14", "pushplus", "小红:friend-1")
	if err != nil || !delivered {
		t.Fatalf("expected delivery to be recorded, delivered=%v err=%v", delivered, err)
	}

	other, _ := ledger.WasDelivered(ctx, "2024-03-14", "wechat_template", "小红:friend-1")
	nextDay, _ := ledger.WasDelivered(ctx, "2024-03-15", "pushplus", "小红:friend-1")
	if other || nextDay {
		t.Fatalf("ledger entries must be scoped by channel and day")
	}

	mr.FastForward(37 * time.Hour)
	delivered, _ = ledger.WasDelivered(ctx, "2024-03-14", "pushplus", "小红:friend-1")
	if delivered {
		t.Fatalf("expected ledger entry to expire")
	}
}

func TestDeliveryLedgerUnavailableRedis(t *testing.T) {
	svc, mr := newTestCache(t)
	ledger := NewDeliveryLedger(svc, time.Hour, zap.NewNop())
	mr.Close()

	if _, err := ledger.WasDelivered(context.Background(), "2024-03-14", "pushplus", "x"); err == nil {
		t.Fatalf("expected error when redis is gone")
	}
}

func TestDeliveryLedgerRejectsForeignValue(t *testing.T) {
	svc, mr := newTestCache(t)
	ledger := NewDeliveryLedger(svc, time.Hour, zap.NewNop())
	if err := mr.Set(LedgerKey("2024-03-14", "pushplus", "x"), "not-json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := ledger.WasDelivered(context.Background(), "2024-03-14", "pushplus", "x"); err == nil {
		t.Fatalf("expected an error for an unreadable record")
	}
}

func TestNewCacheServiceFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	host := mr.Host()
	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	mr.Close()

	_, err = NewCacheService(context.Background(), CacheConfig{Host: host, Port: port}, zap.NewNop())
	if err == nil {
		t.Fatalf("expected connection error")
	}
}
