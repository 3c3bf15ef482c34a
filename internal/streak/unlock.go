package streak

import "github.com/dukerupert/atomickids/internal/model"

// ResolveUnlocks returns every catalog reward whose requirement is met by
// newStreak and that the child has not unlocked yet, in catalog order. It
// never returns anything to revoke.
func ResolveUnlocks(newStreak int, catalog []model.Reward, unlocked map[int64]bool) []model.Reward {
	var out []model.Reward
	for _, r := range catalog {
		if r.StreakRequirement > newStreak {
			continue
		}
		if unlocked[r.ID] {
			continue
		}
		out = append(out, r)
	}
	return out
}
