// Package pgstore is the PostgreSQL persistence gateway for the streak
// engine, for deployments whose children and tasks live in Postgres.
package pgstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dukerupert/atomickids/internal/model"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Open connects a pool to databaseURL, checks it and applies migrations.
func Open(ctx context.Context, databaseURL string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return pool, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Gateway implements the streak engine's persistence over a pgx pool.
type Gateway struct {
	pool *pgxpool.Pool
}

func NewGateway(pool *pgxpool.Pool) *Gateway {
	return &Gateway{pool: pool}
}

const childCols = `id, account_id, name, streak, last_completed_at, selected_character_id, sort_order, created_at, updated_at`

const taskCols = `id, account_id, child_id, title, completed, completed_at, sort_order, icon, created_at, updated_at`

const rewardCols = `id, name, streak_requirement, image_url, created_at`

func scanChild(row pgx.Row) (*model.Child, error) {
	var c model.Child
	err := row.Scan(&c.ID, &c.AccountID, &c.Name, &c.Streak, &c.LastCompletedAt,
		&c.SelectedCharacterID, &c.SortOrder, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanTask(row pgx.Row) (*model.Task, error) {
	var t model.Task
	err := row.Scan(&t.ID, &t.AccountID, &t.ChildID, &t.Title, &t.Completed, &t.CompletedAt,
		&t.SortOrder, &t.Icon, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanReward(row pgx.Row) (*model.Reward, error) {
	var r model.Reward
	if err := row.Scan(&r.ID, &r.Name, &r.StreakRequirement, &r.ImageURL, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListChildrenWithTasks reads the snapshot inside one repeatable-read
// transaction.
func (g *Gateway) ListChildrenWithTasks(ctx context.Context) ([]model.ChildWithTasks, error) {
	tx, err := g.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `SELECT `+childCols+` FROM children ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	var out []model.ChildWithTasks
	index := map[int64]int{}
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan child: %w", err)
		}
		index[c.ID] = len(out)
		out = append(out, model.ChildWithTasks{Child: *c, Tasks: []model.Task{}})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}

	rows, err = tx.Query(ctx, `SELECT `+taskCols+` FROM tasks WHERE child_id IS NOT NULL ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if i, ok := index[*t.ChildID]; ok {
			out[i].Tasks = append(out[i].Tasks, *t)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return out, nil
}

func (g *Gateway) GetChildWithTasks(ctx context.Context, childID int64) (*model.ChildWithTasks, error) {
	c, err := scanChild(g.pool.QueryRow(ctx, `SELECT `+childCols+` FROM children WHERE id = $1`, childID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get child: %w", err)
	}

	rows, err := g.pool.Query(ctx, `SELECT `+taskCols+` FROM tasks WHERE child_id = $1 ORDER BY sort_order, id`, childID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	cwt := &model.ChildWithTasks{Child: *c, Tasks: []model.Task{}}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		cwt.Tasks = append(cwt.Tasks, *t)
	}
	return cwt, rows.Err()
}

func (g *Gateway) UpdateChildStreak(ctx context.Context, childID int64, streak int, lastCompletedAt *time.Time) error {
	_, err := g.pool.Exec(ctx,
		`UPDATE children SET streak = $2, last_completed_at = $3, updated_at = NOW() WHERE id = $1`,
		childID, streak, lastCompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update streak: %w", err)
	}
	return nil
}

func (g *Gateway) ListUnlockedRewardIDs(ctx context.Context, childID int64) ([]int64, error) {
	rows, err := g.pool.Query(ctx, `SELECT reward_id FROM child_rewards WHERE child_id = $1 ORDER BY reward_id`, childID)
	if err != nil {
		return nil, fmt.Errorf("list unlocked reward ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("list unlocked reward ids: %w", err)
	}
	return ids, nil
}

func (g *Gateway) UnlockReward(ctx context.Context, childID, rewardID int64, unlockedAt time.Time) (model.UnlockResult, error) {
	tag, err := g.pool.Exec(ctx,
		`INSERT INTO child_rewards (child_id, reward_id, unlocked_at) VALUES ($1, $2, $3)
		 ON CONFLICT (child_id, reward_id) DO NOTHING`,
		childID, rewardID, unlockedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert child reward: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.UnlockAlreadyExists, nil
	}
	return model.UnlockCreated, nil
}

func (g *Gateway) ResetAllCompletedTasks(ctx context.Context) (int64, error) {
	tag, err := g.pool.Exec(ctx,
		`UPDATE tasks SET completed = FALSE, completed_at = NULL, updated_at = NOW() WHERE completed`,
	)
	if err != nil {
		return 0, fmt.Errorf("reset completed tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (g *Gateway) ListRewardCatalog(ctx context.Context) ([]model.Reward, error) {
	rows, err := g.pool.Query(ctx, `SELECT `+rewardCols+` FROM rewards ORDER BY streak_requirement, id`)
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

// UpsertReward creates the named reward or updates its requirement and image.
func (g *Gateway) UpsertReward(ctx context.Context, name string, streakRequirement int, imageURL string) (*model.Reward, error) {
	r, err := scanReward(g.pool.QueryRow(ctx,
		`INSERT INTO rewards (name, streak_requirement, image_url) VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE SET streak_requirement = EXCLUDED.streak_requirement, image_url = EXCLUDED.image_url
		 RETURNING `+rewardCols,
		name, streakRequirement, imageURL,
	))
	if err != nil {
		return nil, fmt.Errorf("upsert reward: %w", err)
	}
	return r, nil
}

func (g *Gateway) GetTask(ctx context.Context, accountID, taskID int64) (*model.Task, error) {
	t, err := scanTask(g.pool.QueryRow(ctx,
		`SELECT `+taskCols+` FROM tasks WHERE id = $1 AND account_id = $2`, taskID, accountID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (g *Gateway) SetTaskCompletion(ctx context.Context, taskID int64, completed bool, completedAt *time.Time) error {
	_, err := g.pool.Exec(ctx,
		`UPDATE tasks SET completed = $2, completed_at = $3, updated_at = NOW() WHERE id = $1`,
		taskID, completed, completedAt,
	)
	if err != nil {
		return fmt.Errorf("set task completion: %w", err)
	}
	return nil
}
