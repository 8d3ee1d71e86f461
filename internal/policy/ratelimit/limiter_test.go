package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_Wait(t *testing.T) {
	// 10 requests per second = 100ms interval, burst 1.
	l := New(Config{
		DefaultRPS:   10,
		DefaultBurst: 1,
	})
	ctx := context.Background()

	// Consume initial token
	if err := l.Wait(ctx, "https://seller.example/.well-known/apple-app-site-association"); err != nil {
		t.Fatal(err)
	}

	// Next one should wait ~100ms
	start := time.Now()
	if err := l.Wait(ctx, "https://seller.example/apple-app-site-association"); err != nil {
		t.Fatal(err)
	}
	if dur := time.Since(start); dur < 80*time.Millisecond {
		t.Errorf("expected wait ~100ms, got %v", dur)
	}
}

func TestLimiter_DifferentHosts(t *testing.T) {
	l := New(Config{
		DefaultRPS:   1, // 1 RPS = 1s interval
		DefaultBurst: 1,
	})
	ctx := context.Background()

	if err := l.Wait(ctx, "https://a.com/1"); err != nil {
		t.Fatal(err)
	}

	// Host B should not be blocked by A
	start := time.Now()
	if err := l.Wait(ctx, "https://b.com/1"); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("host B blocked unexpectedly")
	}
	if got := l.Hosts(); got != 2 {
		t.Errorf("expected 2 tracked hosts, got %d", got)
	}
}

func TestLimiter_DisabledWhenRPSZero(t *testing.T) {
	l := New(Config{})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 20; i++ {
		if err := l.Wait(ctx, "https://a.com"); err != nil {
			t.Fatal(err)
		}
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("unlimited limiter should not block")
	}
}

func TestLimiter_ContextCanceled(t *testing.T) {
	l := New(Config{DefaultRPS: 0.001, DefaultBurst: 1})
	if err := l.Wait(context.Background(), "https://a.com"); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Wait(ctx, "https://a.com"); err == nil {
		t.Fatal("expected error after cancellation")
	}
}

func TestLimiter_NilIsNoop(t *testing.T) {
	var l *Limiter
	if err := l.Wait(context.Background(), "https://a.com"); err != nil {
		t.Fatalf("nil limiter should not fail: %v", err)
	}
}

func TestLimiter_HostsShareBucketAcrossCaseAndPath(t *testing.T) {
	l := New(Config{DefaultRPS: 1, DefaultBurst: 1})
	ctx := context.Background()

	for _, raw := range []string{
		"https://Seller.Example/.well-known/apple-app-site-association",
		"https://seller.example/apple-app-site-association",
	} {
		shortCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		_ = l.Wait(shortCtx, raw)
		cancel()
	}
	if got := l.Hosts(); got != 1 {
		t.Errorf("expected 1 tracked host, got %d", got)
	}
}
