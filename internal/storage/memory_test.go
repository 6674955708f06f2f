package storage

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreContract(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	exerciseStore(t, store)
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	if err := store.SaveRun(context.Background(), testRun("r", time.Now())); err == nil {
		t.Fatal("expected not initialized error")
	}
	if err := store.SaveFitnessHistory(context.Background(), "r", []float64{1}); err == nil {
		t.Fatal("expected not initialized error")
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := store.SaveRun(ctx, testRun("r", time.Now())); err != nil {
		t.Fatalf("save run: %v", err)
	}
	run, _, err := store.GetRun(ctx, "r")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	run.Architecture[0] = 1

	again, _, err := store.GetRun(ctx, "r")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if again.Architecture[0] != 25 {
		t.Fatalf("stored architecture aliased: %v", again.Architecture)
	}
}
