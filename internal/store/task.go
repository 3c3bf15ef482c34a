package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/atomickids/internal/model"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var childID sql.NullInt64
	var completed int
	var completedAt sql.NullTime

	err := scanner.Scan(&t.ID, &t.AccountID, &childID, &t.Title, &completed, &completedAt,
		&t.SortOrder, &t.Icon, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if childID.Valid {
		t.ChildID = &childID.Int64
	}
	t.Completed = completed != 0
	if completedAt.Valid {
		at := completedAt.Time.UTC()
		t.CompletedAt = &at
	}
	return &t, nil
}

const taskCols = `id, account_id, child_id, title, completed, completed_at, sort_order, icon, created_at, updated_at`

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// Create appends a task at the end of the account's ordering.
func (s *TaskStore) Create(ctx context.Context, accountID int64, childID *int64, title, icon string) (*model.Task, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (account_id, child_id, title, icon, sort_order)
		 VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(sort_order), -1) + 1 FROM tasks WHERE account_id = ?))`,
		accountID, nullInt64(childID), title, icon, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, accountID, id)
}

func (s *TaskStore) GetByID(ctx context.Context, accountID, id int64) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id = ? AND account_id = ?`, id, accountID)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// List returns the account's tasks in display order, optionally only those
// assigned to one child.
func (s *TaskStore) List(ctx context.Context, accountID int64, childID *int64) ([]model.Task, error) {
	query := `SELECT ` + taskCols + ` FROM tasks WHERE account_id = ?`
	args := []any{accountID}
	if childID != nil {
		query += ` AND child_id = ?`
		args = append(args, *childID)
	}
	query += ` ORDER BY sort_order ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

func collectTasks(rows *sql.Rows) ([]model.Task, error) {
	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (s *TaskStore) Update(ctx context.Context, accountID, id int64, childID *int64, title, icon string) (*model.Task, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET child_id = ?, title = ?, icon = ? WHERE id = ? AND account_id = ?`,
		nullInt64(childID), title, icon, id, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return s.GetByID(ctx, accountID, id)
}

func (s *TaskStore) Delete(ctx context.Context, accountID, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND account_id = ?`, id, accountID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func (s *TaskStore) UpdateSortOrder(ctx context.Context, accountID int64, ids []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "UPDATE tasks SET sort_order = ? WHERE id = ? AND account_id = ?")
	if err != nil {
		return fmt.Errorf("prepare stmt: %w", err)
	}
	defer stmt.Close()

	for i, id := range ids {
		if _, err := stmt.ExecContext(ctx, i, id, accountID); err != nil {
			return fmt.Errorf("update sort order for id %d: %w", id, err)
		}
	}

	return tx.Commit()
}

// SetCompletion sets the completion pair of one task. completedAt should be
// nil exactly when completed is false.
func (s *TaskStore) SetCompletion(ctx context.Context, id int64, completed bool, completedAt *time.Time) error {
	var c int
	if completed {
		c = 1
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET completed = ?, completed_at = ? WHERE id = ?`,
		c, nullTime(completedAt), id,
	)
	if err != nil {
		return fmt.Errorf("set task completion: %w", err)
	}
	return nil
}

// ResetAllCompleted clears completion on every completed task of every
// account and returns the number of tasks cleared.
func (s *TaskStore) ResetAllCompleted(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET completed = 0, completed_at = NULL WHERE completed = 1`,
	)
	if err != nil {
		return 0, fmt.Errorf("reset completed tasks: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
