package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/atomickids/internal/auth"
	"github.com/dukerupert/atomickids/internal/model"
	"github.com/dukerupert/atomickids/internal/store"
	"github.com/dukerupert/atomickids/internal/websocket"
)

type ChildHandler struct {
	children *store.ChildStore
	tasks    *store.TaskStore
	rewards  *store.RewardStore
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewChildHandler(cs *store.ChildStore, ts *store.TaskStore, rs *store.RewardStore, hub *websocket.Hub, logger *slog.Logger) *ChildHandler {
	return &ChildHandler{children: cs, tasks: ts, rewards: rs, hub: hub, logger: logger}
}

func (h *ChildHandler) publish(r *http.Request, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Publish(auth.AccountID(r.Context()), msg)
	}
}

type childRequest struct {
	Name string `json:"name"`
}

func decodeChild(r *http.Request) (childRequest, string) {
	var req childRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, "invalid JSON"
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return req, "name is required"
	}
	return req, ""
}

// List returns the account's children, each with its assigned tasks.
func (h *ChildHandler) List(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountID(r.Context())
	children, err := h.children.List(r.Context(), account)
	if err != nil {
		h.logger.Error("list children", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list children")
		return
	}
	tasks, err := h.tasks.List(r.Context(), account, nil)
	if err != nil {
		h.logger.Error("list tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	out := make([]model.ChildWithTasks, 0, len(children))
	index := make(map[int64]int, len(children))
	for _, c := range children {
		index[c.ID] = len(out)
		out = append(out, model.ChildWithTasks{Child: c, Tasks: []model.Task{}})
	}
	for _, t := range tasks {
		if t.ChildID == nil {
			continue
		}
		if i, ok := index[*t.ChildID]; ok {
			out[i].Tasks = append(out[i].Tasks, t)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ChildHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, msg := decodeChild(r)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	child, err := h.children.Create(r.Context(), auth.AccountID(r.Context()), req.Name)
	if err != nil {
		h.logger.Error("create child", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create child")
		return
	}

	h.publish(r, websocket.NewMessage("child", "created", child.ID, nil))
	writeJSON(w, http.StatusCreated, child)
}

func (h *ChildHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	req, msg := decodeChild(r)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	child, err := h.children.Update(r.Context(), auth.AccountID(r.Context()), id, req.Name)
	if err != nil {
		h.logger.Error("update child", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update child")
		return
	}
	if child == nil {
		writeError(w, http.StatusNotFound, "child not found")
		return
	}

	h.publish(r, websocket.NewMessage("child", "updated", id, nil))
	writeJSON(w, http.StatusOK, child)
}

// Delete removes a child together with its tasks and unlocks.
func (h *ChildHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	account := auth.AccountID(r.Context())

	existing, err := h.children.GetByID(r.Context(), account, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get child")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "child not found")
		return
	}

	if err := h.children.Delete(r.Context(), account, id); err != nil {
		h.logger.Error("delete child", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete child")
		return
	}

	h.publish(r, websocket.NewMessage("child", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChildHandler) UpdateSortOrder(w http.ResponseWriter, r *http.Request) {
	var req sortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids are required")
		return
	}

	if err := h.children.UpdateSortOrder(r.Context(), auth.AccountID(r.Context()), req.IDs); err != nil {
		h.logger.Error("sort children", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update sort order")
		return
	}

	h.publish(r, websocket.NewMessage("child", "reordered", 0, nil))
	w.WriteHeader(http.StatusNoContent)
}

// SelectCharacter sets or clears the character a child shows. Only unlocked
// rewards can be selected.
func (h *ChildHandler) SelectCharacter(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req struct {
		RewardID *int64 `json:"reward_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	child, err := h.children.SelectCharacter(r.Context(), auth.AccountID(r.Context()), id, req.RewardID)
	if errors.Is(err, store.ErrRewardLocked) {
		writeError(w, http.StatusConflict, "reward not unlocked")
		return
	}
	if err != nil {
		h.logger.Error("select character", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to select character")
		return
	}
	if child == nil {
		writeError(w, http.StatusNotFound, "child not found")
		return
	}

	h.publish(r, websocket.NewMessage("child", "updated", id, nil))
	writeJSON(w, http.StatusOK, child)
}

// Rewards lists what a child has unlocked.
func (h *ChildHandler) Rewards(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	child, err := h.children.GetByID(r.Context(), auth.AccountID(r.Context()), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get child")
		return
	}
	if child == nil {
		writeError(w, http.StatusNotFound, "child not found")
		return
	}

	unlocks, err := h.rewards.ListUnlocked(r.Context(), id)
	if err != nil {
		h.logger.Error("list unlocks", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list rewards")
		return
	}
	if unlocks == nil {
		unlocks = []model.ChildReward{}
	}
	writeJSON(w, http.StatusOK, unlocks)
}
