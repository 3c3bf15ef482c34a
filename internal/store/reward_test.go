package store

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/atomickids/internal/model"
)

func TestRewardCatalog(t *testing.T) {
	rs := NewRewardStore(setupTestDB(t))
	ctx := context.Background()

	for _, r := range []struct {
		name string
		req  int
	}{{"Dragon", 14}, {"Cat", 1}, {"Owl", 7}, {"Fox", 3}} {
		if _, err := rs.Upsert(ctx, r.name, r.req, ""); err != nil {
			t.Fatalf("upsert %s: %v", r.name, err)
		}
	}

	catalog, err := rs.List(ctx)
	if err != nil {
		t.Fatalf("list rewards: %v", err)
	}
	want := []int{1, 3, 7, 14}
	if len(catalog) != len(want) {
		t.Fatalf("len = %d, want %d", len(catalog), len(want))
	}
	for i, req := range want {
		if catalog[i].StreakRequirement != req {
			t.Errorf("catalog[%d].StreakRequirement = %d, want %d", i, catalog[i].StreakRequirement, req)
		}
	}

	// Upsert by name keeps the id.
	owl, err := rs.Upsert(ctx, "Owl", 5, "owl.png")
	if err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if owl.ID != catalog[2].ID {
		t.Errorf("id = %d, want %d", owl.ID, catalog[2].ID)
	}
	if owl.StreakRequirement != 5 || owl.ImageURL != "owl.png" {
		t.Errorf("owl = %+v", owl)
	}
}

func TestRewardUnlock(t *testing.T) {
	db := setupTestDB(t)
	cs, rs := NewChildStore(db), NewRewardStore(db)
	ctx := context.Background()
	child := mustChild(t, cs, 1, "Ivy")

	fox, err := rs.Upsert(ctx, "Fox", 3, "")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	cat, err := rs.Upsert(ctx, "Cat", 1, "")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	first := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	res, err := rs.Unlock(ctx, child, fox.ID, first)
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if res != model.UnlockCreated {
		t.Errorf("result = %q, want %q", res, model.UnlockCreated)
	}

	res, err = rs.Unlock(ctx, child, fox.ID, first.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("unlock again: %v", err)
	}
	if res != model.UnlockAlreadyExists {
		t.Errorf("result = %q, want %q", res, model.UnlockAlreadyExists)
	}

	if _, err := rs.Unlock(ctx, child, cat.ID, first); err != nil {
		t.Fatalf("unlock cat: %v", err)
	}

	ids, err := rs.ListUnlockedIDs(ctx, child)
	if err != nil {
		t.Fatalf("list unlocked ids: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("len = %d, want 2", len(ids))
	}

	unlocks, err := rs.ListUnlocked(ctx, child)
	if err != nil {
		t.Fatalf("list unlocked: %v", err)
	}
	if len(unlocks) != 2 {
		t.Fatalf("len = %d, want 2", len(unlocks))
	}
	if unlocks[0].Reward.Name != "Cat" {
		t.Errorf("first unlock = %q, want Cat", unlocks[0].Reward.Name)
	}
	if !unlocks[1].UnlockedAt.Equal(first) {
		t.Errorf("fox unlocked_at = %v, want %v (first grant kept)", unlocks[1].UnlockedAt, first)
	}
}
