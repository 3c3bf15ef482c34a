package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/atomickids/internal/model"
	"github.com/dukerupert/atomickids/internal/store"
)

type RewardHandler struct {
	store  *store.RewardStore
	logger *slog.Logger
}

func NewRewardHandler(s *store.RewardStore, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{store: s, logger: logger}
}

// List returns the catalog, lowest streak requirement first.
func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("list rewards", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list rewards")
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}
