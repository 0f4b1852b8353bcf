package parlay

import "strings"

// PaywallCode is the server's error_code on a paywall payload.
type PaywallCode string

const (
	CodeFreeLimitReached  PaywallCode = "FREE_LIMIT_REACHED"
	CodePremiumRequired   PaywallCode = "PREMIUM_REQUIRED"
	CodePayPerUseRequired PaywallCode = "PAY_PER_USE_REQUIRED"
	CodeLoginRequired     PaywallCode = "LOGIN_REQUIRED"
)

// PaywallReason is why the client shows a paywall prompt.
type PaywallReason string

const (
	ReasonFreeLimit          PaywallReason = "free_limit"
	ReasonPremiumRequired    PaywallReason = "premium_required"
	ReasonPayPerUse          PaywallReason = "pay_per_use"
	ReasonLoginRequired      PaywallReason = "login_required"
	ReasonFeaturePremiumOnly PaywallReason = "feature_premium_only"
)

var codeToReason = map[PaywallCode]PaywallReason{
	CodeFreeLimitReached:  ReasonFreeLimit,
	CodePremiumRequired:   ReasonPremiumRequired,
	CodePayPerUseRequired: ReasonPayPerUse,
	CodeLoginRequired:     ReasonLoginRequired,
}

// ParsePaywallCode accepts an error_code value; ok is false for anything outside
// the four paywall codes.
func ParsePaywallCode(raw string) (PaywallCode, bool) {
	c := PaywallCode(strings.ToUpper(strings.TrimSpace(raw)))
	_, ok := codeToReason[c]
	return c, ok
}

// ReasonForCode maps a paywall code to its reason, 1:1.
func ReasonForCode(c PaywallCode) (PaywallReason, bool) {
	r, ok := codeToReason[c]
	return r, ok
}

// CodeForReason is the inverse of ReasonForCode. The pre-flight only reason
// feature_premium_only has no server code.
func CodeForReason(r PaywallReason) (PaywallCode, bool) {
	for c, rr := range codeToReason {
		if rr == r {
			return c, true
		}
	}
	return "", false
}

// PaywallCodes lists the four server paywall codes in a stable order.
func PaywallCodes() []PaywallCode {
	return []PaywallCode{CodeFreeLimitReached, CodePremiumRequired, CodePayPerUseRequired, CodeLoginRequired}
}
