package streak

import (
	"net/http"
	"time"

	"github.com/dukerupert/atomickids/internal/model"
)

// State is a step of the daily reset state machine.
type State string

const (
	StateLoading    State = "LOADING"
	StateEvaluating State = "EVALUATING"
	StatePersisting State = "PERSISTING"
	StateResetting  State = "RESETTING"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

type ChildFailure struct {
	ChildID int64  `json:"child_id"`
	Phase   State  `json:"phase"`
	Error   string `json:"error"`
}

type Unlock struct {
	ChildID  int64              `json:"child_id"`
	RewardID int64              `json:"reward_id"`
	Result   model.UnlockResult `json:"result"`
}

// Summary is the result of one run, shaped for the caller that triggered it.
type Summary struct {
	RunID             string         `json:"run_id"`
	Day               string         `json:"day"`
	State             State          `json:"state"`
	FailedPhase       State          `json:"failed_phase,omitempty"`
	StartedAt         time.Time      `json:"started_at"`
	FinishedAt        time.Time      `json:"finished_at"`
	ChildrenEvaluated int            `json:"children_evaluated"`
	Advanced          []int64        `json:"advanced"`
	Reset             []int64        `json:"reset"`
	Unlocks           []Unlock       `json:"unlocks"`
	Failures          []ChildFailure `json:"failures"`
	TasksReset        int64          `json:"tasks_reset"`
	Message           string         `json:"message,omitempty"`
	Error             string         `json:"error,omitempty"`
}

// StatusCode maps the summary onto an HTTP status for schedulers: 200 for a
// clean run, 207 when some children failed but the sweep ran, 500 otherwise.
func (s *Summary) StatusCode() int {
	switch {
	case s.State != StateDone:
		return http.StatusInternalServerError
	case len(s.Failures) > 0:
		return http.StatusMultiStatus
	default:
		return http.StatusOK
	}
}

// Planned is one child's would-be outcome in a dry run.
type Planned struct {
	ChildID int64          `json:"child_id"`
	Name    string         `json:"name"`
	Tasks   int            `json:"tasks"`
	Outcome Outcome        `json:"outcome"`
	Unlocks []model.Reward `json:"unlocks,omitempty"`
	Error   string         `json:"error,omitempty"`
}
