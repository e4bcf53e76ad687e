package types

import (
	"cmp"
	"slices"
)

// TierRank orders subscription roles for the roster, lowest first.
func TierRank(role string) int {
	switch role {
	case RoleRoyal:
		return 1
	case RoleVIP:
		return 2
	case RolePremium:
		return 3
	default:
		return 4
	}
}

func boolRank(b bool) int {
	if b {
		return 0
	}
	return 1
}

// SortRoster orders online users: admins, then creators, then by tier
// rank, then alphabetically by username.
func SortRoster(users []OnlineUser) {
	slices.SortStableFunc(users, func(a, b OnlineUser) int {
		return cmp.Or(
			cmp.Compare(boolRank(a.IsAdmin), boolRank(b.IsAdmin)),
			cmp.Compare(boolRank(a.IsCreator), boolRank(b.IsCreator)),
			cmp.Compare(TierRank(a.Role), TierRank(b.Role)),
			cmp.Compare(a.Username, b.Username),
		)
	})
}
