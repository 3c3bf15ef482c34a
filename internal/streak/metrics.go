package streak

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atomickids_daily_reset_runs_total",
		Help: "Daily reset runs by final state",
	}, []string{"state"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "atomickids_daily_reset_duration_seconds",
		Help:    "Daily reset run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atomickids_streak_transitions_total",
		Help: "Streak transitions by pass and transition",
	}, []string{"pass", "transition"})

	unlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atomickids_reward_unlocks_total",
		Help: "Reward unlock writes by result",
	}, []string{"result"})

	childFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atomickids_daily_reset_child_failures_total",
		Help: "Per-child failures by phase",
	}, []string{"phase"})

	tasksResetTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atomickids_tasks_reset_total",
		Help: "Tasks cleared by the reset sweep",
	})

	lastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "atomickids_daily_reset_last_success_timestamp_seconds",
		Help: "Unix time of the last run that reached DONE",
	})
)
