package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/atomickids/internal/model"
)

// ErrRewardLocked is returned when a child selects a character it has not
// unlocked.
var ErrRewardLocked = errors.New("reward not unlocked")

type ChildStore struct {
	db *sql.DB
}

func NewChildStore(db *sql.DB) *ChildStore {
	return &ChildStore{db: db}
}

func scanChild(scanner interface{ Scan(...any) error }) (*model.Child, error) {
	var c model.Child
	var lastCompleted sql.NullTime
	var character sql.NullInt64

	err := scanner.Scan(&c.ID, &c.AccountID, &c.Name, &c.Streak, &lastCompleted,
		&character, &c.SortOrder, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if lastCompleted.Valid {
		t := lastCompleted.Time.UTC()
		c.LastCompletedAt = &t
	}
	if character.Valid {
		c.SelectedCharacterID = &character.Int64
	}
	return &c, nil
}

const childCols = `id, account_id, name, streak, last_completed_at, selected_character_id, sort_order, created_at, updated_at`

// Create appends a child at the end of the account's ordering.
func (s *ChildStore) Create(ctx context.Context, accountID int64, name string) (*model.Child, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO children (account_id, name, sort_order)
		 VALUES (?, ?, (SELECT COALESCE(MAX(sort_order), -1) + 1 FROM children WHERE account_id = ?))`,
		accountID, name, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert child: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, accountID, id)
}

func (s *ChildStore) GetByID(ctx context.Context, accountID, id int64) (*model.Child, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+childCols+` FROM children WHERE id = ? AND account_id = ?`, id, accountID)
	c, err := scanChild(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get child: %w", err)
	}
	return c, nil
}

// List returns the account's children in display order.
func (s *ChildStore) List(ctx context.Context, accountID int64) ([]model.Child, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+childCols+` FROM children WHERE account_id = ? ORDER BY sort_order ASC, id ASC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var children []model.Child
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		children = append(children, *c)
	}
	return children, rows.Err()
}

func (s *ChildStore) Update(ctx context.Context, accountID, id int64, name string) (*model.Child, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE children SET name = ? WHERE id = ? AND account_id = ?`,
		name, id, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("update child: %w", err)
	}
	return s.GetByID(ctx, accountID, id)
}

// Delete removes a child; its tasks and unlocks go with it.
func (s *ChildStore) Delete(ctx context.Context, accountID, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM children WHERE id = ? AND account_id = ?`, id, accountID)
	if err != nil {
		return fmt.Errorf("delete child: %w", err)
	}
	return nil
}

func (s *ChildStore) UpdateSortOrder(ctx context.Context, accountID int64, ids []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "UPDATE children SET sort_order = ? WHERE id = ? AND account_id = ?")
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

// SelectCharacter sets the child's displayed character. A nil rewardID clears
// it; any other reward must already be unlocked by the child.
func (s *ChildStore) SelectCharacter(ctx context.Context, accountID, childID int64, rewardID *int64) (*model.Child, error) {
	c, err := s.GetByID(ctx, accountID, childID)
	if err != nil || c == nil {
		return nil, err
	}

	var character sql.NullInt64
	if rewardID != nil {
		var n int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM child_rewards WHERE child_id = ? AND reward_id = ?`,
			childID, *rewardID,
		).Scan(&n)
		if err != nil {
			return nil, fmt.Errorf("check unlock: %w", err)
		}
		if n == 0 {
			return nil, ErrRewardLocked
		}
		character = sql.NullInt64{Int64: *rewardID, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE children SET selected_character_id = ? WHERE id = ? AND account_id = ?`,
		character, childID, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("select character: %w", err)
	}
	return s.GetByID(ctx, accountID, childID)
}

// UpdateStreak writes the streak pair of one child, whatever its account.
func (s *ChildStore) UpdateStreak(ctx context.Context, childID int64, streak int, lastCompletedAt *time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE children SET streak = ?, last_completed_at = ? WHERE id = ?`,
		streak, nullTime(lastCompletedAt), childID,
	)
	if err != nil {
		return fmt.Errorf("update streak: %w", err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
