package middleware

import (
	"testing"
	"time"
)

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewIPRateLimiter(1, time.Minute, 2, time.Minute)

	if !limiter.Allow("10.0.0.1") {
		t.Fatalf("expected first request allowed")
	}
	if !limiter.Allow("10.0.0.1") {
		t.Fatalf("expected burst capacity to admit second request")
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatalf("expected third request blocked")
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	limiter := NewIPRateLimiter(1, time.Minute, 1, time.Minute)

	if !limiter.Allow("10.0.0.1") {
		t.Fatalf("expected first key allowed")
	}
	if !limiter.Allow("10.0.0.2") {
		t.Fatalf("expected second key unaffected by first")
	}
}

func TestRateLimiterEmptyKey(t *testing.T) {
	limiter := NewIPRateLimiter(1, time.Minute, 1, time.Minute)

	if !limiter.Allow("") {
		t.Fatalf("expected empty key coalesced and allowed once")
	}
	if limiter.Allow("") {
		t.Fatalf("expected repeated empty key blocked")
	}
}
