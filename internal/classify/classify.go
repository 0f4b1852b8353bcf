// Package classify turns the result of a generation call into a
// parlay.Outcome. It is the only place that looks at HTTP statuses and raw
// error bodies; everything downstream works on the closed Outcome union.
package classify

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/GoPolymarket/parlay-builder/internal/backend"
	"github.com/GoPolymarket/parlay-builder/internal/parlay"
)

const (
	CodeNoPicks            = "no_picks"
	CodeServiceUnavailable = "service_unavailable"

	noPicksMessage     = "No picks were returned for these settings. Try again or adjust your selection."
	unavailableMessage = "No eligible games are available right now. Try again in a few minutes or pick a different sport."
	maxFallbackLen     = 300
)

// legacy suggestion error codes
const (
	legacyLoginRequired          = "login_required"
	legacyPremiumRequired        = "premium_required"
	legacyCreditsRequired        = "credits_required"
	legacyInsufficientCandidates = "insufficient_candidates"
)

// Classify maps one generation response or error onto an Outcome. cfg is the
// configuration the request was issued with; it decides whether a short Triple
// result counts as a downgrade. First matching rule wins.
func Classify(cfg parlay.RequestConfig, resp *backend.SuggestResponse, err error) parlay.Outcome {
	if err != nil {
		return classifyError(err)
	}
	if resp == nil {
		return parlay.UnknownError{Message: "the server returned an empty response"}
	}
	return classifyBody(cfg, resp)
}

func classifyError(err error) parlay.Outcome {
	var apiErr *backend.APIError
	if !errors.As(err, &apiErr) {
		if isTimeoutText(err.Error()) {
			return parlay.Timeout{Message: parlay.TimeoutMessage}
		}
		return parlay.UnknownError{Message: err.Error()}
	}

	env := parseEnvelope(apiErr.Body)

	// 1. transport timeouts
	if isTimeout(apiErr, env) {
		return parlay.Timeout{Message: parlay.TimeoutMessage}
	}

	// 2. structured paywall payload
	if code, ok := parlay.ParsePaywallCode(env.ErrorCode); ok {
		return paywall(code, env)
	}

	// 3. structured insufficient-candidates payload
	if env.hasCounts() && (apiErr.Status == http.StatusConflict || len(env.TopExclusionReasons) > 0 || env.DebugID != "") {
		return insufficient(env)
	}

	// 4. legacy suggestion error codes
	if code := strings.ToLower(strings.TrimSpace(firstNonEmpty(env.Code, env.ErrorCode))); code != "" {
		switch code {
		case legacyLoginRequired:
			return paywall(parlay.CodeLoginRequired, env)
		case legacyPremiumRequired:
			return paywall(parlay.CodePremiumRequired, env)
		case legacyCreditsRequired:
			return paywall(parlay.CodePayPerUseRequired, env)
		case legacyInsufficientCandidates:
			return insufficient(env)
		}
		return parlay.ValidationError{
			Code:    code,
			Message: firstNonEmpty(env.validationMessage(), env.text(), "The request was rejected."),
			Hint:    env.Hint,
		}
	}

	// 5. momentarily out of eligible games
	if apiErr.Status == http.StatusServiceUnavailable {
		return parlay.ValidationError{Code: CodeServiceUnavailable, Message: unavailableMessage, Hint: env.Hint}
	}

	// 8. anything else
	return parlay.UnknownError{Message: bestMessage(apiErr, env)}
}

func classifyBody(cfg parlay.RequestConfig, resp *backend.SuggestResponse) parlay.Outcome {
	// 6. a "successful" body without picks is a failure
	if len(resp.Legs) == 0 || (resp.NumLegs != nil && *resp.NumLegs <= 0) {
		return parlay.ValidationError{Code: CodeNoPicks, Message: noPicksMessage}
	}

	// 7. success
	legs := resp.ParlayLegs()
	out := parlay.Success{
		Legs:          legs,
		Metrics:       resp.ParlayMetrics(),
		FallbackUsed:  resp.FallbackUsed || resp.FallbackStage != "",
		FallbackStage: resp.FallbackStage,
	}
	if cfg.Mode == parlay.ModeTriple {
		summary := resp.DowngradeSummary
		short := len(legs) < parlay.TripleLegCount
		if summary != nil && summary.Delivered > 0 && summary.Requested > 0 && summary.Delivered < summary.Requested {
			short = true
		}
		if resp.Downgraded || short {
			out.Downgraded = true
			out.DowngradeSummary = downgradeSummary(summary, len(legs))
		}
	}
	return out
}

func downgradeSummary(s *backend.DowngradeSummaryPayload, delivered int) *parlay.DowngradeSummary {
	out := &parlay.DowngradeSummary{Requested: parlay.TripleLegCount, Delivered: delivered}
	if s == nil {
		return out
	}
	if s.Requested > 0 {
		out.Requested = s.Requested
	}
	if s.Delivered > 0 {
		out.Delivered = s.Delivered
	}
	out.HaveStrong = s.HaveStrong
	out.Reason = s.Reason
	return out
}

func paywall(code parlay.PaywallCode, env envelope) parlay.PaywallRequired {
	return parlay.PaywallRequired{
		Code:           code,
		Message:        firstNonEmpty(env.text(), defaultPaywallMessage(code)),
		Pricing:        env.pricing(),
		RemainingToday: env.RemainingToday,
		Feature:        env.Feature,
		UpgradeURL:     env.UpgradeURL,
	}
}

func defaultPaywallMessage(code parlay.PaywallCode) string {
	switch code {
	case parlay.CodeFreeLimitReached:
		return "You've used today's free parlays."
	case parlay.CodePremiumRequired:
		return "This feature is part of Premium."
	case parlay.CodePayPerUseRequired:
		return "This parlay requires a one-time purchase."
	case parlay.CodeLoginRequired:
		return "Sign in to generate parlays."
	}
	return ""
}

func insufficient(env envelope) parlay.InsufficientCandidates {
	out := parlay.InsufficientCandidates{
		TopExclusionReasons: []parlay.ExclusionReason(env.TopExclusionReasons),
		DebugID:             env.DebugID,
		Hint:                env.Hint,
	}
	if env.Needed != nil {
		out.Needed = *env.Needed
	}
	if env.Have != nil {
		out.Have = *env.Have
	}
	out.Message = env.text()
	if out.Message == "" {
		out.Message = fmt.Sprintf("Not enough eligible picks for these settings: needed %d, found %d.", out.Needed, out.Have)
	}
	return out
}

func isTimeout(apiErr *backend.APIError, env envelope) bool {
	switch apiErr.Code {
	case backend.CodeTimeout, backend.CodeConnAborted:
		return true
	}
	if errors.Is(apiErr, backend.ErrTimeout) {
		return true
	}
	if apiErr.Status == http.StatusRequestTimeout || apiErr.Status == http.StatusGatewayTimeout {
		return true
	}
	if apiErr.Status == 0 && apiErr.Err != nil && isTimeoutText(apiErr.Err.Error()) {
		return true
	}
	return isTimeoutText(env.text())
}

func isTimeoutText(s string) bool {
	return strings.Contains(strings.ToLower(s), "timeout")
}

// bestMessage prefers a FastAPI validation array, then nested detail/message
// text, then a serialized fallback of whatever came back.
func bestMessage(apiErr *backend.APIError, env envelope) string {
	if msg := env.validationMessage(); msg != "" {
		return msg
	}
	if msg := env.text(); msg != "" {
		return msg
	}
	if body := strings.TrimSpace(string(apiErr.Body)); body != "" {
		if len(body) > maxFallbackLen {
			body = body[:maxFallbackLen] + "..."
		}
		if apiErr.Status > 0 {
			return fmt.Sprintf("HTTP %d: %s", apiErr.Status, body)
		}
		return body
	}
	if apiErr.Err != nil {
		return apiErr.Err.Error()
	}
	if apiErr.Status > 0 {
		return fmt.Sprintf("HTTP %d", apiErr.Status)
	}
	return apiErr.Error()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
