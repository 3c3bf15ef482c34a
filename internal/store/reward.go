package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/atomickids/internal/model"
)

type RewardStore struct {
	db *sql.DB
}

func NewRewardStore(db *sql.DB) *RewardStore {
	return &RewardStore{db: db}
}

// --- Catalog methods ---

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	err := scanner.Scan(&r.ID, &r.Name, &r.StreakRequirement, &r.ImageURL, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const rewardCols = `id, name, streak_requirement, image_url, created_at`

// Upsert creates the named reward or updates its requirement and image.
func (s *RewardStore) Upsert(ctx context.Context, name string, streakRequirement int, imageURL string) (*model.Reward, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rewards (name, streak_requirement, image_url) VALUES (?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET streak_requirement = excluded.streak_requirement, image_url = excluded.image_url`,
		name, streakRequirement, imageURL,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert reward: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+rewardCols+` FROM rewards WHERE name = ?`, name)
	r, err := scanReward(row)
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

func (s *RewardStore) GetByID(ctx context.Context, id int64) (*model.Reward, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

// List returns the catalog, lowest streak requirement first.
func (s *RewardStore) List(ctx context.Context) ([]model.Reward, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+rewardCols+` FROM rewards ORDER BY streak_requirement ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

// --- Unlock methods ---

func (s *RewardStore) ListUnlockedIDs(ctx context.Context, childID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT reward_id FROM child_rewards WHERE child_id = ? ORDER BY reward_id`,
		childID,
	)
	if err != nil {
		return nil, fmt.Errorf("list unlocked reward ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan reward id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListUnlocked returns a child's unlocks with their rewards, in catalog order.
func (s *RewardStore) ListUnlocked(ctx context.Context, childID int64) ([]model.ChildReward, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cr.child_id, cr.reward_id, cr.unlocked_at,
		        r.id, r.name, r.streak_requirement, r.image_url, r.created_at
		 FROM child_rewards cr
		 JOIN rewards r ON r.id = cr.reward_id
		 WHERE cr.child_id = ?
		 ORDER BY r.streak_requirement ASC, r.id ASC`,
		childID,
	)
	if err != nil {
		return nil, fmt.Errorf("list unlocked rewards: %w", err)
	}
	defer rows.Close()

	var unlocks []model.ChildReward
	for rows.Next() {
		var cr model.ChildReward
		var r model.Reward
		if err := rows.Scan(&cr.ChildID, &cr.RewardID, &cr.UnlockedAt,
			&r.ID, &r.Name, &r.StreakRequirement, &r.ImageURL, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan unlocked reward: %w", err)
		}
		cr.UnlockedAt = cr.UnlockedAt.UTC()
		cr.Reward = &r
		unlocks = append(unlocks, cr)
	}
	return unlocks, rows.Err()
}

// Unlock grants a reward to a child. An existing grant is left untouched and
// reported as UnlockAlreadyExists.
func (s *RewardStore) Unlock(ctx context.Context, childID, rewardID int64, unlockedAt time.Time) (model.UnlockResult, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO child_rewards (child_id, reward_id, unlocked_at) VALUES (?, ?, ?)
		 ON CONFLICT (child_id, reward_id) DO NOTHING`,
		childID, rewardID, unlockedAt.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert child reward: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return model.UnlockAlreadyExists, nil
	}
	return model.UnlockCreated, nil
}
