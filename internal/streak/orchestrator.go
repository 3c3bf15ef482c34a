package streak

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/atomickids/internal/model"
)

const defaultConcurrency = 4

// Orchestrator drives the daily reset: load a snapshot, judge every child,
// persist streak and unlock changes, then sweep task completion. It holds no
// state between runs.
type Orchestrator struct {
	gw          Gateway
	boundary    *Boundary
	policy      Policy
	concurrency int
	now         func() time.Time
	logger      *slog.Logger
}

type Option func(*Orchestrator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithPolicy(p Policy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// WithConcurrency bounds how many children are persisted at once.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func NewOrchestrator(gw Gateway, b *Boundary, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gw:          gw,
		boundary:    b,
		policy:      DefaultPolicy(),
		concurrency: defaultConcurrency,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type childPlan struct {
	child   model.ChildWithTasks
	outcome Outcome
}

// creditInstant is the "now" handed to the evaluator for a run at now.
func (o *Orchestrator) creditInstant(now time.Time) time.Time {
	if o.policy.Close == ClosePreviousDay {
		return o.boundary.EndOfPreviousDay(now)
	}
	return now
}

// Run executes one daily reset. The returned summary is always non-nil. The
// error is non-nil only when the run failed as a whole (load or sweep);
// per-child failures are listed in the summary.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	now := o.now()
	asOf := o.creditInstant(now)
	sum := &Summary{
		RunID:     uuid.NewString(),
		Day:       o.boundary.Today(asOf).String(),
		State:     StateLoading,
		StartedAt: now,
		Advanced:  []int64{},
		Reset:     []int64{},
		Unlocks:   []Unlock{},
		Failures:  []ChildFailure{},
	}
	logger := o.logger.With("run_id", sum.RunID, "day", sum.Day)
	logger.Info("daily reset started")

	defer func() {
		runsTotal.WithLabelValues(string(sum.State)).Inc()
		runDuration.Observe(sum.FinishedAt.Sub(sum.StartedAt).Seconds())
	}()

	children, catalog, err := o.load(ctx)
	if err != nil {
		return o.fail(logger, sum, &JobError{Kind: ErrLoadFailure, Err: err})
	}

	sum.State = StateEvaluating
	sum.ChildrenEvaluated = len(children)
	plans := o.evaluateAll(children, asOf, sum)

	sum.State = StatePersisting
	o.persistAll(ctx, logger, plans, catalog, sum)

	sum.State = StateResetting
	n, err := o.gw.ResetAllCompletedTasks(ctx)
	if err != nil {
		return o.fail(logger, sum, &JobError{Kind: ErrResetSweepFailure, Err: err})
	}
	sum.TasksReset = n
	tasksResetTotal.Add(float64(n))

	sum.State = StateDone
	sum.FinishedAt = o.now()
	sum.Message = "Tasks and streaks reset successfully"
	if len(sum.Failures) > 0 {
		sum.Message = fmt.Sprintf("Tasks reset; %d children failed to update", len(sum.Failures))
	}
	lastSuccess.Set(float64(sum.FinishedAt.Unix()))

	logger.Info("daily reset finished",
		"children", sum.ChildrenEvaluated,
		"advanced", len(sum.Advanced),
		"reset", len(sum.Reset),
		"unlocks", len(sum.Unlocks),
		"failures", len(sum.Failures),
		"tasks_reset", sum.TasksReset,
		"duration", sum.FinishedAt.Sub(sum.StartedAt),
	)
	return sum, nil
}

// Plan loads and evaluates without writing anything.
func (o *Orchestrator) Plan(ctx context.Context) ([]Planned, error) {
	asOf := o.creditInstant(o.now())

	children, catalog, err := o.load(ctx)
	if err != nil {
		return nil, &JobError{Kind: ErrLoadFailure, Err: err}
	}

	planned := make([]Planned, 0, len(children))
	for _, c := range children {
		p := Planned{ChildID: c.ID, Name: c.Name, Tasks: len(c.Tasks)}
		out, err := Evaluate(inputFor(c, PassDailyReset), asOf, o.boundary, o.policy)
		if err != nil {
			p.Error = err.Error()
			planned = append(planned, p)
			continue
		}
		p.Outcome = out
		if out.Advanced {
			ids, err := o.gw.ListUnlockedRewardIDs(ctx, c.ID)
			if err != nil {
				p.Error = fmt.Sprintf("list unlocked rewards: %v", err)
			} else {
				p.Unlocks = ResolveUnlocks(out.NextStreak, catalog, idSet(ids))
			}
		}
		planned = append(planned, p)
	}
	return planned, nil
}

func (o *Orchestrator) load(ctx context.Context) ([]model.ChildWithTasks, []model.Reward, error) {
	children, err := o.gw.ListChildrenWithTasks(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list children: %w", err)
	}
	catalog, err := o.gw.ListRewardCatalog(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list reward catalog: %w", err)
	}
	return children, catalog, nil
}

func (o *Orchestrator) evaluateAll(children []model.ChildWithTasks, asOf time.Time, sum *Summary) []childPlan {
	plans := make([]childPlan, 0, len(children))
	for _, c := range children {
		out, err := Evaluate(inputFor(c, PassDailyReset), asOf, o.boundary, o.policy)
		if err != nil {
			o.recordFailure(sum, StateEvaluating, &JobError{Kind: ErrEvaluationFailure, ChildID: c.ID, Err: err})
			continue
		}
		transitionsTotal.WithLabelValues(PassDailyReset.String(), string(out.Transition)).Inc()
		plans = append(plans, childPlan{child: c, outcome: out})
	}
	return plans
}

func (o *Orchestrator) persistAll(ctx context.Context, logger *slog.Logger, plans []childPlan, catalog []model.Reward, sum *Summary) {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for _, p := range plans {
		if !p.outcome.Changed {
			continue
		}
		g.Go(func() error {
			unlocks, err := o.persistChild(gctx, p, catalog)

			mu.Lock()
			defer mu.Unlock()
			sum.Unlocks = append(sum.Unlocks, unlocks...)
			if err != nil {
				jerr := &JobError{Kind: ErrPersistenceFailure, ChildID: p.child.ID, Err: err}
				logger.Warn("child update failed", "child_id", p.child.ID, "error", err)
				o.recordFailure(sum, StatePersisting, jerr)
				return nil
			}
			if p.outcome.Advanced {
				sum.Advanced = append(sum.Advanced, p.child.ID)
			} else {
				sum.Reset = append(sum.Reset, p.child.ID)
			}
			return nil
		})
	}
	g.Wait()

	slices.Sort(sum.Advanced)
	slices.Sort(sum.Reset)
	slices.SortFunc(sum.Unlocks, func(a, b Unlock) int {
		if a.ChildID != b.ChildID {
			return cmpInt64(a.ChildID, b.ChildID)
		}
		return cmpInt64(a.RewardID, b.RewardID)
	})
	slices.SortFunc(sum.Failures, func(a, b ChildFailure) int {
		return cmpInt64(a.ChildID, b.ChildID)
	})
}

// persistChild writes unlocks before the streak row so that a failed streak
// write is repaired by the next run: the child is evaluated again and the
// unlocks come back as AlreadyExists.
func (o *Orchestrator) persistChild(ctx context.Context, p childPlan, catalog []model.Reward) ([]Unlock, error) {
	var unlocks []Unlock
	if p.outcome.Advanced {
		var err error
		unlocks, err = unlockRewards(ctx, o.gw, p.child.ID, p.outcome.NextStreak, catalog, *p.outcome.NextLastCompletedAt)
		if err != nil {
			return unlocks, err
		}
	}
	if err := o.gw.UpdateChildStreak(ctx, p.child.ID, p.outcome.NextStreak, p.outcome.NextLastCompletedAt); err != nil {
		return unlocks, fmt.Errorf("update streak: %w", err)
	}
	return unlocks, nil
}

func (o *Orchestrator) recordFailure(sum *Summary, phase State, err *JobError) {
	childFailuresTotal.WithLabelValues(string(phase)).Inc()
	sum.Failures = append(sum.Failures, ChildFailure{
		ChildID: err.ChildID,
		Phase:   phase,
		Error:   err.Error(),
	})
}

func (o *Orchestrator) fail(logger *slog.Logger, sum *Summary, err *JobError) (*Summary, error) {
	sum.FailedPhase = sum.State
	sum.State = StateFailed
	sum.FinishedAt = o.now()
	sum.Error = err.Error()
	logger.Error("daily reset failed", "phase", sum.FailedPhase, "error", err)
	return sum, err
}

// unlockRewards resolves and writes the unlocks a child earns at streak.
func unlockRewards(ctx context.Context, gw Gateway, childID int64, streak int, catalog []model.Reward, at time.Time) ([]Unlock, error) {
	ids, err := gw.ListUnlockedRewardIDs(ctx, childID)
	if err != nil {
		return nil, fmt.Errorf("list unlocked rewards: %w", err)
	}

	var out []Unlock
	for _, r := range ResolveUnlocks(streak, catalog, idSet(ids)) {
		res, err := gw.UnlockReward(ctx, childID, r.ID, at)
		if err != nil {
			return out, fmt.Errorf("unlock reward %d: %w", r.ID, err)
		}
		unlocksTotal.WithLabelValues(string(res)).Inc()
		out = append(out, Unlock{ChildID: childID, RewardID: r.ID, Result: res})
	}
	return out, nil
}

func inputFor(c model.ChildWithTasks, pass Pass) Input {
	flags := make([]bool, len(c.Tasks))
	for i, t := range c.Tasks {
		flags[i] = t.Completed
	}
	return Input{
		Streak:          c.Streak,
		LastCompletedAt: c.LastCompletedAt,
		Completed:       flags,
		Pass:            pass,
	}
}

func idSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
