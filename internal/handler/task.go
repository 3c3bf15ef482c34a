package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/atomickids/internal/auth"
	"github.com/dukerupert/atomickids/internal/model"
	"github.com/dukerupert/atomickids/internal/store"
	"github.com/dukerupert/atomickids/internal/streak"
	"github.com/dukerupert/atomickids/internal/websocket"
)

type TaskHandler struct {
	tasks     *store.TaskStore
	children  *store.ChildStore
	completer *streak.Completer
	hub       *websocket.Hub
	logger    *slog.Logger
	now       func() time.Time
}

func NewTaskHandler(ts *store.TaskStore, cs *store.ChildStore, completer *streak.Completer, hub *websocket.Hub, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: ts, children: cs, completer: completer, hub: hub, logger: logger, now: time.Now}
}

func (h *TaskHandler) publish(r *http.Request, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Publish(auth.AccountID(r.Context()), msg)
	}
}

type taskRequest struct {
	ChildID *int64 `json:"child_id"`
	Title   string `json:"title"`
	Icon    string `json:"icon"`
}

// decodeTask validates a task body and checks that the target child belongs
// to the caller's account.
func (h *TaskHandler) decodeTask(r *http.Request) (taskRequest, int, string) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, http.StatusBadRequest, "invalid JSON"
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return req, http.StatusBadRequest, "title is required"
	}
	if req.ChildID != nil {
		child, err := h.children.GetByID(r.Context(), auth.AccountID(r.Context()), *req.ChildID)
		if err != nil {
			h.logger.Error("get child", "id", *req.ChildID, "error", err)
			return req, http.StatusInternalServerError, "failed to get child"
		}
		if child == nil {
			return req, http.StatusBadRequest, "child not found"
		}
	}
	return req, 0, ""
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	var childID *int64
	if v := r.URL.Query().Get("child_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid child_id")
			return
		}
		childID = &id
	}

	tasks, err := h.tasks.List(r.Context(), auth.AccountID(r.Context()), childID)
	if err != nil {
		h.logger.Error("list tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, status, msg := h.decodeTask(r)
	if msg != "" {
		writeError(w, status, msg)
		return
	}

	task, err := h.tasks.Create(r.Context(), auth.AccountID(r.Context()), req.ChildID, req.Title, req.Icon)
	if err != nil {
		h.logger.Error("create task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	h.publish(r, websocket.NewMessage("task", "created", task.ID, nil))
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	req, status, msg := h.decodeTask(r)
	if msg != "" {
		writeError(w, status, msg)
		return
	}

	task, err := h.tasks.Update(r.Context(), auth.AccountID(r.Context()), id, req.ChildID, req.Title, req.Icon)
	if err != nil {
		h.logger.Error("update task", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update task")
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	h.publish(r, websocket.NewMessage("task", "updated", id, nil))
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	account := auth.AccountID(r.Context())

	existing, err := h.tasks.GetByID(r.Context(), account, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	if err := h.tasks.Delete(r.Context(), account, id); err != nil {
		h.logger.Error("delete task", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete task")
		return
	}

	h.publish(r, websocket.NewMessage("task", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) UpdateSortOrder(w http.ResponseWriter, r *http.Request) {
	var req sortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids are required")
		return
	}

	if err := h.tasks.UpdateSortOrder(r.Context(), auth.AccountID(r.Context()), req.IDs); err != nil {
		h.logger.Error("sort tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update sort order")
		return
	}

	h.publish(r, websocket.NewMessage("task", "reordered", 0, nil))
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.setCompleted(w, r, true)
}

func (h *TaskHandler) Uncomplete(w http.ResponseWriter, r *http.Request) {
	h.setCompleted(w, r, false)
}

func (h *TaskHandler) setCompleted(w http.ResponseWriter, r *http.Request, completed bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	res, err := h.completer.SetTaskCompleted(r.Context(), auth.AccountID(r.Context()), id, completed, h.now())
	if errors.Is(err, streak.ErrTaskNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		h.logger.Error("set task completed", "id", id, "completed", completed, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update task")
		return
	}

	action := "completed"
	if !completed {
		action = "uncompleted"
	}
	h.publish(r, websocket.NewMessage("task", action, id, nil))
	if res.Outcome != nil && res.Outcome.Changed {
		h.publish(r, websocket.NewMessage("child", "streak_updated", res.Child.ID, map[string]any{
			"streak":     res.Outcome.NextStreak,
			"transition": res.Outcome.Transition,
		}))
	}
	for _, u := range res.Unlocks {
		if u.Result != model.UnlockCreated {
			continue
		}
		h.publish(r, websocket.NewMessage("reward", "unlocked", u.RewardID, map[string]any{
			"child_id": u.ChildID,
		}))
	}
	writeJSON(w, http.StatusOK, res)
}
