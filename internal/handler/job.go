package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/atomickids/internal/jobs"
	"github.com/dukerupert/atomickids/internal/streak"
)

// Trigger starts a daily reset run unless one is already in flight.
type Trigger interface {
	Trigger(ctx context.Context) (*streak.Summary, error)
}

// Planner computes what a run would do without writing anything.
type Planner interface {
	Plan(ctx context.Context) ([]streak.Planned, error)
}

type JobHandler struct {
	trigger Trigger
	planner Planner
	logger  *slog.Logger
}

func NewJobHandler(t Trigger, p Planner, logger *slog.Logger) *JobHandler {
	return &JobHandler{trigger: t, planner: p, logger: logger}
}

// DailyReset runs the reset now and answers with the run summary. The status
// code follows the summary so external schedulers can alert on it.
func (h *JobHandler) DailyReset(w http.ResponseWriter, r *http.Request) {
	sum, err := h.trigger.Trigger(r.Context())
	if errors.Is(err, jobs.ErrRunInProgress) {
		writeError(w, http.StatusConflict, "daily reset already running")
		return
	}
	if sum == nil {
		h.logger.Error("daily reset", "error", err)
		writeError(w, http.StatusInternalServerError, "daily reset failed")
		return
	}
	writeJSON(w, sum.StatusCode(), sum)
}

func (h *JobHandler) Preview(w http.ResponseWriter, r *http.Request) {
	plan, err := h.planner.Plan(r.Context())
	if err != nil {
		h.logger.Error("preview daily reset", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to preview daily reset")
		return
	}
	if plan == nil {
		plan = []streak.Planned{}
	}
	writeJSON(w, http.StatusOK, plan)
}
