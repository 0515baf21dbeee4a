package style

import (
	"toneroute/internal/rules"
	"toneroute/internal/textutil"
)

// OverrideRule forces Context when Match reports true for the folded text.
type OverrideRule struct {
	Name    string
	Context rules.ContextID
	Match   func(folded string) bool
}

// OverrideChain builds the ordered override rules of a lexicon. Earlier rules win.
func OverrideChain(lex rules.Lexicon) []OverrideRule {
	chain := make([]OverrideRule, 0, len(lex.Overrides))
	for _, o := range lex.Overrides {
		keywords := append([]string(nil), o.Keywords...)
		emojis := append([]string(nil), o.Emojis...)
		chain = append(chain, OverrideRule{
			Name:    o.Name,
			Context: o.Context,
			Match: func(folded string) bool {
				return textutil.ContainsAny(folded, keywords) || textutil.ContainsAny(folded, emojis)
			},
		})
	}
	return chain
}

// ApplyOverrides returns the context of the first matching rule, or current when none match.
func ApplyOverrides(chain []OverrideRule, folded string, current rules.ContextID) (rules.ContextID, string) {
	for _, rule := range chain {
		if rule.Match(folded) {
			return rule.Context, rule.Name
		}
	}
	return current, ""
}
