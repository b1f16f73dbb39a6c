package kv

import (
	"context"
	"errors"
	"testing"

	"github.com/campuslink/api/internal/notify"
)

func TestMemoryRoundTrip(t *testing.T) {
	store := NewMemory(nil)
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNoKey) {
		t.Fatalf("expected ErrNoKey, got %v", err)
	}
	if err := store.Set(ctx, "users", []byte(`[]`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, err := store.Get(ctx, "users")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(value) != "[]" {
		t.Fatalf("unexpected value: %q", value)
	}
	if err := store.Delete(ctx, "users"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "users"); !errors.Is(err, ErrNoKey) {
		t.Fatalf("expected ErrNoKey after delete, got %v", err)
	}
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	store := NewMemory(nil)
	ctx := context.Background()
	if err := store.Set(ctx, "k", []byte("abc")); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	value[0] = 'z'
	again, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(again) != "abc" {
		t.Fatalf("stored value mutated through returned slice: %q", again)
	}
}

func TestMemoryPublishesChanges(t *testing.T) {
	hub := notify.NewHub()
	store := NewMemory(hub)
	ctx := context.Background()

	var payloads [][]byte
	sub := notify.SubscriberFunc(func(payload []byte) error {
		payloads = append(payloads, payload)
		return nil
	})
	hub.Register("posts", sub)
	defer hub.Unregister("posts", sub)

	if err := store.Set(ctx, "posts", []byte(`[1]`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "users", []byte(`[]`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Delete(ctx, "posts"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if len(payloads) != 2 {
		t.Fatalf("expected set and delete signals for posts only, got %d", len(payloads))
	}
	if string(payloads[0]) != "[1]" {
		t.Fatalf("unexpected set payload: %q", payloads[0])
	}
	if payloads[1] != nil {
		t.Fatalf("expected nil payload on delete, got %q", payloads[1])
	}
}
