package model

import "time"

// Reward is a character in the unlock catalog.
type Reward struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	StreakRequirement int       `json:"streak_requirement"`
	ImageURL          string    `json:"image_url"`
	CreatedAt         time.Time `json:"created_at"`
}

// ChildReward records that a child has permanently unlocked a reward.
type ChildReward struct {
	ChildID    int64     `json:"child_id"`
	RewardID   int64     `json:"reward_id"`
	UnlockedAt time.Time `json:"unlocked_at"`
	Reward     *Reward   `json:"reward,omitempty"`
}

// UnlockResult tags the outcome of an unlock write.
type UnlockResult string

const (
	UnlockCreated       UnlockResult = "created"
	UnlockAlreadyExists UnlockResult = "already_exists"
)
