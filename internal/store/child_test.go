package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestChildCRUD(t *testing.T) {
	cs := NewChildStore(setupTestDB(t))
	ctx := context.Background()

	// Create
	child, err := cs.Create(ctx, 1, "Mia")
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	if child.Name != "Mia" {
		t.Errorf("name = %q, want %q", child.Name, "Mia")
	}
	if child.Streak != 0 {
		t.Errorf("streak = %d, want 0", child.Streak)
	}
	if child.LastCompletedAt != nil {
		t.Errorf("last_completed_at = %v, want nil", child.LastCompletedAt)
	}

	// Other accounts cannot see it
	got, err := cs.GetByID(ctx, 2, child.ID)
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	if got != nil {
		t.Error("expected nil for foreign account")
	}

	// Update
	updated, err := cs.Update(ctx, 1, child.ID, "Mia Rose")
	if err != nil {
		t.Fatalf("update child: %v", err)
	}
	if updated.Name != "Mia Rose" {
		t.Errorf("name = %q, want %q", updated.Name, "Mia Rose")
	}

	// Delete
	if err := cs.Delete(ctx, 1, child.ID); err != nil {
		t.Fatalf("delete child: %v", err)
	}
	got, err = cs.GetByID(ctx, 1, child.ID)
	if err != nil {
		t.Fatalf("get deleted child: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestChildAppendAndSortOrder(t *testing.T) {
	cs := NewChildStore(setupTestDB(t))
	ctx := context.Background()

	a := mustChild(t, cs, 1, "A")
	b := mustChild(t, cs, 1, "B")
	c := mustChild(t, cs, 1, "C")
	mustChild(t, cs, 2, "Other")

	children, err := cs.List(ctx, 1)
	if err != nil {
		t.Fatalf("list children: %v", err)
	}
	if len(children) != 3 {
		t.Fatalf("len = %d, want 3", len(children))
	}
	for i, c := range children {
		if c.SortOrder != i {
			t.Errorf("children[%d].SortOrder = %d, want %d", i, c.SortOrder, i)
		}
	}

	if err := cs.UpdateSortOrder(ctx, 1, []int64{c, a, b}); err != nil {
		t.Fatalf("update sort order: %v", err)
	}
	children, err = cs.List(ctx, 1)
	if err != nil {
		t.Fatalf("list children: %v", err)
	}
	want := []int64{c, a, b}
	for i, id := range want {
		if children[i].ID != id {
			t.Errorf("children[%d].ID = %d, want %d", i, children[i].ID, id)
		}
	}
}

func TestChildDeleteCascadesTasks(t *testing.T) {
	db := setupTestDB(t)
	cs, ts := NewChildStore(db), NewTaskStore(db)
	ctx := context.Background()

	id := mustChild(t, cs, 1, "Leo")
	mustTask(t, ts, 1, &id, "Brush teeth")
	mustTask(t, ts, 1, &id, "Make bed")
	mustTask(t, ts, 1, nil, "Unassigned")

	if err := cs.Delete(ctx, 1, id); err != nil {
		t.Fatalf("delete child: %v", err)
	}
	tasks, err := ts.List(ctx, 1, nil)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("len = %d, want 1", len(tasks))
	}
	if tasks[0].Title != "Unassigned" {
		t.Errorf("title = %q, want %q", tasks[0].Title, "Unassigned")
	}
}

func TestChildUpdateStreak(t *testing.T) {
	cs := NewChildStore(setupTestDB(t))
	ctx := context.Background()
	id := mustChild(t, cs, 1, "Ava")

	loc, err := time.LoadLocation("Australia/Sydney")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	at := time.Date(2024, 3, 10, 8, 0, 0, 0, loc)

	if err := cs.UpdateStreak(ctx, id, 3, &at); err != nil {
		t.Fatalf("update streak: %v", err)
	}
	got, err := cs.GetByID(ctx, 1, id)
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	if got.Streak != 3 {
		t.Errorf("streak = %d, want 3", got.Streak)
	}
	if got.LastCompletedAt == nil || !got.LastCompletedAt.Equal(at) {
		t.Errorf("last_completed_at = %v, want %v", got.LastCompletedAt, at)
	}

	if err := cs.UpdateStreak(ctx, id, 0, nil); err != nil {
		t.Fatalf("reset streak: %v", err)
	}
	got, err = cs.GetByID(ctx, 1, id)
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	if got.Streak != 0 || got.LastCompletedAt != nil {
		t.Errorf("streak = %d, last_completed_at = %v, want 0, nil", got.Streak, got.LastCompletedAt)
	}

	if err := cs.UpdateStreak(ctx, id, -1, nil); err == nil {
		t.Error("expected negative streak to be rejected")
	}
}

func TestSelectCharacter(t *testing.T) {
	db := setupTestDB(t)
	cs, rs := NewChildStore(db), NewRewardStore(db)
	ctx := context.Background()

	id := mustChild(t, cs, 1, "Zoe")
	fox, err := rs.Upsert(ctx, "Fox", 1, "")
	if err != nil {
		t.Fatalf("upsert reward: %v", err)
	}

	if _, err := cs.SelectCharacter(ctx, 1, id, &fox.ID); !errors.Is(err, ErrRewardLocked) {
		t.Fatalf("select locked: err = %v, want ErrRewardLocked", err)
	}

	if _, err := rs.Unlock(ctx, id, fox.ID, time.Now()); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	child, err := cs.SelectCharacter(ctx, 1, id, &fox.ID)
	if err != nil {
		t.Fatalf("select character: %v", err)
	}
	if child.SelectedCharacterID == nil || *child.SelectedCharacterID != fox.ID {
		t.Errorf("selected_character_id = %v, want %d", child.SelectedCharacterID, fox.ID)
	}

	child, err = cs.SelectCharacter(ctx, 1, id, nil)
	if err != nil {
		t.Fatalf("clear character: %v", err)
	}
	if child.SelectedCharacterID != nil {
		t.Errorf("selected_character_id = %v, want nil", *child.SelectedCharacterID)
	}

	child, err = cs.SelectCharacter(ctx, 2, id, nil)
	if err != nil {
		t.Fatalf("select foreign child: %v", err)
	}
	if child != nil {
		t.Error("expected nil for foreign account")
	}
}
