package parlay

import (
	"fmt"
	"sort"
	"strings"
)

// QuickStart names a preset configuration offered to first-time users.
type QuickStart string

const (
	QuickStartSafe       QuickStart = "safe"
	QuickStartBalanced   QuickStart = "balanced"
	QuickStartDegen      QuickStart = "degen"
	QuickStartConfidence QuickStart = "confidence"
	QuickStartMultiSport QuickStart = "multi-sport"
)

// ApplyQuickStart returns a new configuration derived from base. base is never
// modified. Sports are kept from base except for multi-sport, which needs two.
func ApplyQuickStart(base RequestConfig, name string) (RequestConfig, error) {
	out := base.Clone()
	if len(out.Sports) == 0 {
		out.Sports = []Sport{SportNFL}
	}
	switch QuickStart(strings.ToLower(strings.TrimSpace(name))) {
	case QuickStartSafe, "conservative":
		out.Mode = ModeSingle
		out.Risk = RiskConservative
		out.LegCount = 3
		out.IncludePlayerProps = false
	case QuickStartBalanced:
		out.Mode = ModeSingle
		out.Risk = RiskBalanced
		out.LegCount = 4
	case QuickStartDegen:
		out.Mode = ModeSingle
		out.Risk = RiskDegen
		out.LegCount = 5
	case QuickStartConfidence, "triple":
		out.Mode = ModeTriple
		out.TripleVariant = TripleConfidence
		out.LegCount = TripleLegCount
	case QuickStartMultiSport, "multi":
		out.Mode = ModeSingle
		out.Risk = RiskBalanced
		out.LegCount = 4
		if len(out.Sports) < 2 {
			second := SportNBA
			if out.Sports[0] == SportNBA {
				second = SportNFL
			}
			out.Sports = append(out.Sports[:1], second)
		}
		out.MixSports = true
	default:
		return base, fmt.Errorf("unknown quick start %q (supported: %s)", name, strings.Join(QuickStartNames(), "|"))
	}
	if len(out.Sports) < 2 {
		out.MixSports = false
	}
	return out, nil
}

// QuickStartNames lists the supported presets.
func QuickStartNames() []string {
	names := []string{
		string(QuickStartSafe),
		string(QuickStartBalanced),
		string(QuickStartDegen),
		string(QuickStartConfidence),
		string(QuickStartMultiSport),
	}
	sort.Strings(names)
	return names
}
