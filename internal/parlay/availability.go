package parlay

// ExclusionReasonCode explains why candidate legs were filtered out server-side.
type ExclusionReasonCode string

const (
	ReasonOutsideWeek         ExclusionReasonCode = "OUTSIDE_WEEK"
	ReasonNoOdds              ExclusionReasonCode = "NO_ODDS"
	ReasonPlayerPropsDisabled ExclusionReasonCode = "PLAYER_PROPS_DISABLED"
	ReasonGameStarted         ExclusionReasonCode = "GAME_STARTED"
	ReasonLowConfidence       ExclusionReasonCode = "LOW_CONFIDENCE"
	ReasonNotEnoughGames      ExclusionReasonCode = "NOT_ENOUGH_GAMES"
	ReasonSportMixConflict    ExclusionReasonCode = "SPORT_MIX_CONFLICT"
)

// ExclusionReason is one ranked entry of top_exclusion_reasons.
type ExclusionReason struct {
	Reason ExclusionReasonCode `json:"reason"`
	Count  *int                `json:"count,omitempty"`
}

// CandidateAvailability is the advisory count of eligible legs for one sport.
// Nil counts mean unknown (probe failed), which is different from zero.
type CandidateAvailability struct {
	Sport               Sport             `json:"sport"`
	Week                *int              `json:"week,omitempty"`
	Count               *int              `json:"count"`
	StrongEdgeCount     *int              `json:"strong_edge_count,omitempty"`
	UniqueGames         *int              `json:"unique_games,omitempty"`
	TopExclusionReasons []ExclusionReason `json:"top_exclusion_reasons,omitempty"`
}

// Known reports whether the count is known.
func (a CandidateAvailability) Known() bool { return a.Count != nil }

// Empty reports a known count of zero; unknown is never empty.
func (a CandidateAvailability) Empty() bool { return a.Count != nil && *a.Count == 0 }

// Unknown returns the availability record used after a transport failure.
func Unknown(sport Sport, week *int) CandidateAvailability {
	return CandidateAvailability{Sport: sport, Week: week}
}

// PrimaryReason returns the first ranked exclusion reason, or "".
func PrimaryReason(reasons []ExclusionReason) ExclusionReasonCode {
	if len(reasons) == 0 {
		return ""
	}
	return reasons[0].Reason
}

// IntPtr is a small helper for optional counts.
func IntPtr(v int) *int { return &v }
