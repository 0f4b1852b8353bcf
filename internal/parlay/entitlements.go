package parlay

const (
	// DefaultMaxLegs is the leg cap assumed before an entitlement snapshot arrives.
	DefaultMaxLegs = 5
	// MaxLegsCeiling bounds any leg count regardless of plan.
	MaxLegsCeiling = 20
)

// Entitlements is a read-only snapshot of the caller's feature permissions.
type Entitlements struct {
	IsAuthenticated    bool `json:"is_authenticated"`
	MaxLegs            int  `json:"max_legs"`
	MixSportsAllowed   bool `json:"mix_sports_allowed"`
	PlayerPropsAllowed bool `json:"player_props_allowed"`
}

// RestrictiveEntitlements is what the system assumes when no snapshot is present:
// single sport, no player props, default leg cap.
func RestrictiveEntitlements() Entitlements {
	return Entitlements{MaxLegs: DefaultMaxLegs}
}

// Normalize clamps MaxLegs into [1, MaxLegsCeiling], falling back to the default cap.
func (e Entitlements) Normalize() Entitlements {
	if e.MaxLegs <= 0 {
		e.MaxLegs = DefaultMaxLegs
	}
	if e.MaxLegs > MaxLegsCeiling {
		e.MaxLegs = MaxLegsCeiling
	}
	return e
}
