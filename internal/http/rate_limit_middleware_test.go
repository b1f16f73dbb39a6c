package httpx

import (
	"io"
	"testing"
	"time"

	"log/slog"
)

func TestSelectRateLimiterFallsBackToMemory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rl := SelectRateLimiter("   ", "", 0, logger)
	defer rl.Close()
	if _, ok := rl.(*memoryRateLimiter); !ok {
		t.Fatalf("expected memory limiter without a redis address, got %T", rl)
	}
}

func TestMemoryRateLimiterWindow(t *testing.T) {
	rl := NewMemoryRateLimiter()
	defer rl.Close()

	for i := 0; i < 3; i++ {
		if d := rl.Allow("k", 3, time.Minute); !d.allowed {
			t.Fatalf("request %d should pass", i+1)
		}
	}
	if d := rl.Allow("k", 3, time.Minute); d.allowed {
		t.Fatalf("fourth request should be limited")
	}
	if d := rl.Allow("other", 3, time.Minute); !d.allowed {
		t.Fatalf("keys are limited independently")
	}
}

func TestMemoryRateLimiterCloseIdempotent(t *testing.T) {
	rl := NewMemoryRateLimiter()
	rl.Close()
	rl.Close()
}
