package classify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/GoPolymarket/parlay-builder/internal/parlay"
)

// envelope is the union of every error body shape the API is known to send:
// paywall bodies, insufficient-candidates bodies, legacy {code, meta} bodies
// and FastAPI {detail: ...} wrappers around any of them.
type envelope struct {
	ErrorCode           string           `json:"error_code"`
	Code                string           `json:"code"`
	Message             string           `json:"message"`
	Hint                string           `json:"hint"`
	Needed              *int             `json:"needed"`
	Have                *int             `json:"have"`
	TopExclusionReasons reasonList       `json:"top_exclusion_reasons"`
	DebugID             string           `json:"debug_id"`
	RemainingToday      *int             `json:"remaining_today"`
	Feature             string           `json:"feature"`
	UpgradeURL          string           `json:"upgrade_url"`
	SinglePrice         *decimal.Decimal `json:"single_price"`
	MultiPrice          *decimal.Decimal `json:"multi_price"`
	Meta                json.RawMessage  `json:"meta"`
	Detail              json.RawMessage  `json:"detail"`

	detailText  string
	validations []validationItem
}

type validationItem struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

// reasonList accepts both [{"reason": "X", "count": 1}] and ["X"].
type reasonList []parlay.ExclusionReason

func (l *reasonList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(reasonList, 0, len(raw))
	for _, item := range raw {
		var code string
		if err := json.Unmarshal(item, &code); err == nil {
			out = append(out, parlay.ExclusionReason{Reason: parlay.ExclusionReasonCode(code)})
			continue
		}
		var r parlay.ExclusionReason
		if err := json.Unmarshal(item, &r); err != nil {
			continue
		}
		if r.Reason != "" {
			out = append(out, r)
		}
	}
	*l = out
	return nil
}

// parseEnvelope decodes body leniently. Undecodable bodies yield an empty
// envelope rather than an error. A bare top-level array is read as a FastAPI
// validation list.
func parseEnvelope(body []byte) envelope {
	var env envelope
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return env
	}
	switch body[0] {
	case '[':
		if err := json.Unmarshal(body, &env.validations); err != nil {
			return envelope{}
		}
		return env
	case '{':
	default:
		return env
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return envelope{}
	}

	if len(env.Detail) > 0 {
		switch env.Detail[0] {
		case '{':
			var inner envelope
			if err := json.Unmarshal(env.Detail, &inner); err == nil {
				env = merge(inner, env)
			}
		case '[':
			_ = json.Unmarshal(env.Detail, &env.validations)
		case '"':
			_ = json.Unmarshal(env.Detail, &env.detailText)
		}
	}
	if len(env.Meta) > 0 && env.Meta[0] == '{' {
		var meta envelope
		if err := json.Unmarshal(env.Meta, &meta); err == nil {
			env = merge(env, meta)
		}
	}
	return env
}

// merge fills the zero fields of primary from secondary.
func merge(primary, secondary envelope) envelope {
	if primary.ErrorCode == "" {
		primary.ErrorCode = secondary.ErrorCode
	}
	if primary.Code == "" {
		primary.Code = secondary.Code
	}
	if primary.Message == "" {
		primary.Message = secondary.Message
	}
	if primary.Hint == "" {
		primary.Hint = secondary.Hint
	}
	if primary.Needed == nil {
		primary.Needed = secondary.Needed
	}
	if primary.Have == nil {
		primary.Have = secondary.Have
	}
	if len(primary.TopExclusionReasons) == 0 {
		primary.TopExclusionReasons = secondary.TopExclusionReasons
	}
	if primary.DebugID == "" {
		primary.DebugID = secondary.DebugID
	}
	if primary.RemainingToday == nil {
		primary.RemainingToday = secondary.RemainingToday
	}
	if primary.Feature == "" {
		primary.Feature = secondary.Feature
	}
	if primary.UpgradeURL == "" {
		primary.UpgradeURL = secondary.UpgradeURL
	}
	if primary.SinglePrice == nil {
		primary.SinglePrice = secondary.SinglePrice
	}
	if primary.MultiPrice == nil {
		primary.MultiPrice = secondary.MultiPrice
	}
	if len(primary.Meta) == 0 {
		primary.Meta = secondary.Meta
	}
	if primary.detailText == "" {
		primary.detailText = secondary.detailText
	}
	if len(primary.validations) == 0 {
		primary.validations = secondary.validations
	}
	return primary
}

func (e envelope) pricing() *parlay.Pricing {
	if e.SinglePrice == nil && e.MultiPrice == nil {
		return nil
	}
	return &parlay.Pricing{Single: e.SinglePrice, Multi: e.MultiPrice}
}

func (e envelope) hasCounts() bool {
	return e.Needed != nil && e.Have != nil
}

// validationMessage renders a FastAPI validation array as "loc: msg; ...".
func (e envelope) validationMessage() string {
	if len(e.validations) == 0 {
		return ""
	}
	parts := make([]string, 0, len(e.validations))
	for _, v := range e.validations {
		loc := make([]string, 0, len(v.Loc))
		for _, p := range v.Loc {
			if s := fmt.Sprint(p); s != "body" {
				loc = append(loc, s)
			}
		}
		if len(loc) == 0 {
			parts = append(parts, v.Msg)
			continue
		}
		parts = append(parts, strings.Join(loc, ".")+": "+v.Msg)
	}
	return strings.Join(parts, "; ")
}

// text is the nested detail/message text, innermost first.
func (e envelope) text() string {
	if e.detailText != "" {
		return e.detailText
	}
	return e.Message
}
