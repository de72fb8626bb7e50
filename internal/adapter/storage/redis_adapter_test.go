package storage

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/HijosDelDiablo/food-orders/internal/port"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestDecrementStock_Reserved(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "stock:test-product")
	adapter.SetStock(ctx, "test-product", 10)

	reply, err := adapter.DecrementStock(ctx, "test-product", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != port.StockReserved {
		t.Errorf("expected StockReserved, got %v", reply)
	}

	stock, _ := client.Get(ctx, "stock:test-product").Int()
	if stock != 7 {
		t.Errorf("expected stock 7, got %d", stock)
	}
}

func TestDecrementStock_Insufficient(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "stock:test-product")
	adapter.SetStock(ctx, "test-product", 5)

	reply, err := adapter.DecrementStock(ctx, "test-product", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != port.StockInsufficient {
		t.Errorf("expected StockInsufficient, got %v", reply)
	}

	stock, _ := client.Get(ctx, "stock:test-product").Int()
	if stock != 5 {
		t.Errorf("expected stock unchanged at 5, got %d", stock)
	}
}

func TestDecrementStock_ColdKeyIsUnknown(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "stock:nonexistent")

	reply, err := adapter.DecrementStock(ctx, "nonexistent", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != port.StockUnknown {
		t.Errorf("expected StockUnknown for cold key, got %v", reply)
	}
}

func TestDecrementStock_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	initialStock := 20
	totalRequests := 50

	client.Del(ctx, "stock:concurrent-test")
	adapter.SetStock(ctx, "concurrent-test", initialStock)

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reply, err := adapter.DecrementStock(ctx, "concurrent-test", 1)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if reply == port.StockReserved {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()

	if successCount.Load() != int32(initialStock) {
		t.Errorf("expected %d successes, got %d", initialStock, successCount.Load())
	}

	stock, _ := client.Get(ctx, "stock:concurrent-test").Int()
	if stock != 0 {
		t.Errorf("expected stock 0, got %d", stock)
	}
}

func TestIncrementStock_OnlyWarmKeys(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "stock:test-product")
	adapter.SetStock(ctx, "test-product", 5)

	if err := adapter.IncrementStock(ctx, "test-product", 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stock, _ := client.Get(ctx, "stock:test-product").Int()
	if stock != 8 {
		t.Errorf("expected stock 8, got %d", stock)
	}

	// restocking an unwarmed product must not conjure a count
	client.Del(ctx, "stock:cold-product")
	if err := adapter.IncrementStock(ctx, "cold-product", 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	exists, _ := client.Exists(ctx, "stock:cold-product").Result()
	if exists != 0 {
		t.Error("cold key must stay absent after increment")
	}
}

func TestSetIdempotency(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "test-idem-key")

	ok, err := adapter.SetIdempotency(ctx, "test-idem-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected first call to succeed")
	}

	ok, err = adapter.SetIdempotency(ctx, "test-idem-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected second call to fail")
	}
}
