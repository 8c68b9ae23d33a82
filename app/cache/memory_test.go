package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	if _, ok, err := store.Get(ctx, "missing"); err != nil || ok {
		t.Errorf("Expected miss for unset key, got ok=%v err=%v", ok, err)
	}

	if err := store.Set(ctx, "key", "value", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, ok, err := store.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok || val != "value" {
		t.Errorf("Expected hit with 'value', got ok=%v val=%q", ok, val)
	}
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	if err := store.Set(ctx, "key", "value", time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, ok, _ := store.Get(ctx, "key"); ok {
		t.Error("Expected key to expire")
	}
}

func TestMemorySetNX(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	ok, err := store.SetNX(ctx, "lock", "a", 0)
	if err != nil || !ok {
		t.Fatalf("Expected first SetNX to win, got ok=%v err=%v", ok, err)
	}

	ok, err = store.SetNX(ctx, "lock", "b", 0)
	if err != nil || ok {
		t.Errorf("Expected second SetNX to lose, got ok=%v err=%v", ok, err)
	}

	val, _, _ := store.Get(ctx, "lock")
	if val != "a" {
		t.Errorf("Expected first writer's value to survive, got %q", val)
	}
}

func TestMemoryUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	err := store.Update(ctx, "key", func(current string, exists bool) (string, error) {
		if exists {
			t.Error("Expected exists=false on first update")
		}
		return "v1", nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	err = store.Update(ctx, "key", func(current string, exists bool) (string, error) {
		if !exists || current != "v1" {
			t.Errorf("Expected current snapshot 'v1', got exists=%v current=%q", exists, current)
		}
		return current + "+v2", nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	val, _, _ := store.Get(ctx, "key")
	if val != "v1+v2" {
		t.Errorf("Expected 'v1+v2', got %q", val)
	}
}

func TestMemoryUpdateError(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	wantErr := errors.New("no change")

	err := store.Update(ctx, "key", func(current string, exists bool) (string, error) {
		return "", wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("Expected fn error to propagate, got: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "key"); ok {
		t.Error("Expected no write after fn error")
	}
}

func TestMemorySets(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	if err := store.SAdd(ctx, "set", "a", "b", "a"); err != nil {
		t.Fatalf("SAdd failed: %v", err)
	}

	members, err := store.SMembers(ctx, "set")
	if err != nil {
		t.Fatalf("SMembers failed: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("Expected 2 distinct members, got %d", len(members))
	}
}
