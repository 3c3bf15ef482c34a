package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/atomickids/internal/streak"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "Australia/Sydney", cfg.Timezone)
	assert.Equal(t, "0 0 * * *", cfg.ResetSchedule)
	assert.True(t, cfg.ResetEnabled)
	assert.Equal(t, 4, cfg.ResetConcurrency)
	assert.Equal(t, streak.DefaultPolicy(), cfg.Policy())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ATOMICKIDS_TIMEZONE", "UTC")
	t.Setenv("ATOMICKIDS_EMPTY_TASKS", "preserve")
	t.Setenv("ATOMICKIDS_UNCOMPLETE", "Revoke")
	t.Setenv("ATOMICKIDS_RESET_CLOSES", "current")
	t.Setenv("ATOMICKIDS_RESET_SCHEDULE", "55 23 * * *")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, streak.Policy{
		EmptyTasks: streak.EmptyTasksPreserve,
		Uncomplete: streak.UncompleteRevoke,
		Close:      streak.CloseCurrentDay,
	}, cfg.Policy())
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string][2]string{
		"timezone":    {"ATOMICKIDS_TIMEZONE", "Nowhere/Special"},
		"schedule":    {"ATOMICKIDS_RESET_SCHEDULE", "every day"},
		"policy":      {"ATOMICKIDS_EMPTY_TASKS", "sometimes"},
		"concurrency": {"ATOMICKIDS_RESET_CONCURRENCY", "0"},
		"log format":  {"ATOMICKIDS_LOG_FORMAT", "xml"},
		"bad int":     {"ATOMICKIDS_RESET_CONCURRENCY", "four"},
	}
	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
