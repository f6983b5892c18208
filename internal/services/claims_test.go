package services

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"crm/internal/core"
)

func TestMemoryClaims(t *testing.T) {
	ctx := context.Background()
	claims := NewMemoryClaims()

	release, err := claims.Claim(ctx, []int64{1, 2})
	if err != nil {
		t.Fatal(err)
	}

	_, err = claims.Claim(ctx, []int64{3, 2})
	var ce *core.ConflictError
	if !errors.As(err, &ce) || len(ce.EntryIDs) != 1 || ce.EntryIDs[0] != 2 {
		t.Fatalf("expected conflict on entry 2, got %v", err)
	}

	// A rejected claim must not hold entry 3.
	r3, err := claims.Claim(ctx, []int64{3})
	if err != nil {
		t.Fatalf("claim 3: %v", err)
	}
	r3()

	release()
	release()
	if _, err := claims.Claim(ctx, []int64{1, 2}); err != nil {
		t.Fatalf("claim after release: %v", err)
	}
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisClaims(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	claims := NewRedisClaims(client, time.Minute)
	other := NewRedisClaims(client, time.Minute)

	release, err := claims.Claim(ctx, []int64{10, 11})
	if err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL("crm:billing:claim:10"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}

	_, err = other.Claim(ctx, []int64{12, 11, 10})
	var ce *core.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if len(ce.EntryIDs) != 2 || ce.EntryIDs[0] != 10 || ce.EntryIDs[1] != 11 {
		t.Errorf("busy ids = %v", ce.EntryIDs)
	}
	if mr.Exists("crm:billing:claim:12") {
		t.Error("partially acquired claim was not released")
	}

	release()
	if mr.Exists("crm:billing:claim:10") || mr.Exists("crm:billing:claim:11") {
		t.Fatal("claims not released")
	}
	if _, err := other.Claim(ctx, []int64{10}); err != nil {
		t.Fatalf("claim after release: %v", err)
	}
}

func TestRedisClaims_ReleaseKeepsForeignToken(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	claims := NewRedisClaims(client, time.Second)

	release, err := claims.Claim(ctx, []int64{5})
	if err != nil {
		t.Fatal(err)
	}
	// The claim expired and another holder took it over.
	mr.FastForward(2 * time.Second)
	if err := mr.Set("crm:billing:claim:5", "someone-else"); err != nil {
		t.Fatal(err)
	}

	release()
	got, err := mr.Get("crm:billing:claim:5")
	if err != nil || got != "someone-else" {
		t.Fatalf("foreign claim removed: %q, %v", got, err)
	}
}

func TestRedisClaims_Unavailable(t *testing.T) {
	mr, client := newTestRedis(t)
	mr.Close()

	_, err := NewRedisClaims(client, time.Minute).Claim(context.Background(), []int64{1})
	var se *core.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %v", err)
	}
}
