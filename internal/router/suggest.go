package router

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"toneroute/internal/rules"
	"toneroute/internal/textutil"
)

// DefaultSuggestions is the number of contexts Suggest returns when n <= 0.
const DefaultSuggestions = 3

// Per-match weights for Suggest.
const (
	suggestKeywordStep = 0.3
	suggestEmojiStep   = 0.2
)

// ContextSuggestion is one candidate register with its evidence.
type ContextSuggestion struct {
	Context         rules.ContextID `json:"context"`
	Score           float64         `json:"score"`
	MatchedKeywords []string        `json:"matched_keywords"`
	Description     string          `json:"description"`
}

// Suggest ranks every context with keyword or emoji evidence in message and
// returns the best n.
func (r *Router) Suggest(message string, n int) ([]ContextSuggestion, error) {
	if !utf8.ValidString(message) {
		return nil, fmt.Errorf("suggest: %w", ErrInvalidMessage)
	}
	if n <= 0 {
		n = DefaultSuggestions
	}
	out := []ContextSuggestion{}
	if strings.TrimSpace(message) == "" {
		return out, nil
	}

	folded := r.table.Folder().Fold(message)
	for _, def := range r.table.Definitions() {
		keywords := textutil.MatchedKeywords(folded, def.Keywords)
		emojis := textutil.CountContained(folded, def.Emojis)
		score := suggestKeywordStep*float64(len(keywords)) + suggestEmojiStep*float64(emojis)
		if score <= 0 {
			continue
		}
		if len(keywords) > 3 {
			keywords = keywords[:3]
		}
		if keywords == nil {
			keywords = []string{}
		}
		out = append(out, ContextSuggestion{
			Context:         def.ID,
			Score:           score,
			MatchedKeywords: keywords,
			Description:     def.Description,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}
