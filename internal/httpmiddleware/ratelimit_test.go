package httpmiddleware

import (
	"context"
	"testing"
)

func TestTokenBucketExhausts(t *testing.T) {
	l := NewSimpleTokenBucket(3, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !l.Allow(ctx, "1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow(ctx, "1.2.3.4") {
		t.Fatal("expected limiter to block after capacity")
	}

	// Other keys have their own bucket.
	if !l.Allow(ctx, "5.6.7.8") {
		t.Fatal("separate key should not be limited")
	}
}

func TestTokenBucketDefaultCapacity(t *testing.T) {
	l := NewSimpleTokenBucket(0, 10)
	if l.capacity != 10 {
		t.Fatalf("expected capacity fallback to rate, got %d", l.capacity)
	}
}
