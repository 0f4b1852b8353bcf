package parlay

// Week is one selectable NFL week.
type Week struct {
	Week        int    `json:"week"`
	Label       string `json:"label"`
	IsCurrent   bool   `json:"is_current"`
	IsAvailable bool   `json:"is_available"`
}

// WeekList is the nflWeeks payload.
type WeekList struct {
	CurrentWeek *int   `json:"current_week"`
	Weeks       []Week `json:"weeks"`
}

// Available reports whether the given week can be used as a filter.
func (l WeekList) Available(week int) bool {
	for _, w := range l.Weeks {
		if w.Week == week {
			return w.IsAvailable
		}
	}
	return false
}

// CandidateQuery is one candidateLegsCount read.
type CandidateQuery struct {
	Sport              Sport
	Week               *int
	LegCountHint       int
	IncludePlayerProps bool
	Mode               Mode
}
