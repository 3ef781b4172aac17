package constants

// Rank is a player permission level.
type Rank int

const (
	RankGuest         Rank = 0
	RankAdministrator Rank = 1
)

// String returns the rank name for logging.
func (r Rank) String() string {
	switch r {
	case RankGuest:
		return "guest"
	case RankAdministrator:
		return "administrator"
	default:
		return "unknown"
	}
}

// HasPermission reports whether a player of rank r may use a feature
// gated at required. Guest-level features are open to everyone; any
// other level requires an exact rank match.
func HasPermission(r, required Rank) bool {
	if required == RankGuest {
		return true
	}
	return r == required
}
