package model

import "time"

type Child struct {
	ID                  int64      `json:"id"`
	AccountID           int64      `json:"account_id"`
	Name                string     `json:"name"`
	Streak              int        `json:"streak"`
	LastCompletedAt     *time.Time `json:"last_completed_at"`
	SelectedCharacterID *int64     `json:"selected_character_id"`
	SortOrder           int        `json:"sort_order"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// ChildWithTasks is one row of the daily snapshot: a child and every task
// currently assigned to it.
type ChildWithTasks struct {
	Child
	Tasks []Task `json:"tasks"`
}
