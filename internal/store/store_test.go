package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dukerupert/atomickids/internal/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustChild(t *testing.T, cs *ChildStore, accountID int64, name string) int64 {
	t.Helper()
	c, err := cs.Create(context.Background(), accountID, name)
	if err != nil {
		t.Fatalf("create child %q: %v", name, err)
	}
	return c.ID
}

func mustTask(t *testing.T, ts *TaskStore, accountID int64, childID *int64, title string) int64 {
	t.Helper()
	task, err := ts.Create(context.Background(), accountID, childID, title, "")
	if err != nil {
		t.Fatalf("create task %q: %v", title, err)
	}
	return task.ID
}
