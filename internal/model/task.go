package model

import "time"

type Task struct {
	ID          int64      `json:"id"`
	AccountID   int64      `json:"account_id"`
	ChildID     *int64     `json:"child_id"`
	Title       string     `json:"title"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
	SortOrder   int        `json:"sort_order"`
	Icon        string     `json:"icon"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
