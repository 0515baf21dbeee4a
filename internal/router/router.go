// Package router scores every context in the rule table against a message and its
// signals and picks the primary register, near-tie secondaries and response hints.
package router

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"toneroute/internal/logging"
	"toneroute/internal/rules"
	"toneroute/internal/signals"
	"toneroute/internal/textutil"
)

// ErrInvalidMessage is returned for messages that are not valid UTF-8.
var ErrInvalidMessage = errors.New("message is not valid UTF-8")

// Reasoning fragments, joined with "; " in this order.
const (
	ReasonKeyword = "keyword match found"
	ReasonHistory = "matches recent dialog context"
	ReasonTime    = "fits current time-of-day preference"
	ReasonGeneral = "determined by general features"
)

// Response types.
const (
	ResponseAnswer   = "answer"
	ResponseReaction = "reaction"
)

// Request is one routing query. Everything but Message is optional.
type Request struct {
	Message     string
	History     []string
	Preferences *signals.Preferences
	Time        *signals.TimeInfo
}

// Score is one context's additive score.
type Score struct {
	Context rules.ContextID `json:"context"`
	Score   float64         `json:"score"`
}

// Suggestions parameterize response generation.
type Suggestions struct {
	Tone         string   `json:"tone"`
	Length       string   `json:"length"`
	EmojiLimit   int      `json:"emoji_limit"`
	KeyPhrases   []string `json:"key_phrases"`
	Avoid        []string `json:"avoid"`
	ResponseType string   `json:"response_type,omitempty"`
}

// Route is the routing decision.
type Route struct {
	PrimaryContext    rules.ContextID   `json:"primary_context"`
	SecondaryContexts []rules.ContextID `json:"secondary_contexts"`
	Confidence        float64           `json:"confidence"`
	Reasoning         string            `json:"reasoning"`
	Suggestions       Suggestions       `json:"suggestions"`
	Scores            []Score           `json:"scores"`
	Signals           signals.Bundle    `json:"signals"`
}

// Router is safe for concurrent use.
type Router struct {
	table     *rules.Table
	extractor *signals.Extractor
}

// NewRouter binds a router to table.
func NewRouter(table *rules.Table) (*Router, error) {
	if table == nil {
		return nil, fmt.Errorf("router: %w", rules.ErrNilTable)
	}
	ex, err := signals.NewExtractor(table)
	if err != nil {
		return nil, err
	}
	return &Router{table: table, extractor: ex}, nil
}

// Route scores req.Message and returns the decision.
func (r *Router) Route(req Request) (Route, error) {
	if !utf8.ValidString(req.Message) {
		return Route{}, fmt.Errorf("route: %w", ErrInvalidMessage)
	}
	timer := logging.StartTimer(logging.CategoryRouting, "Route")
	defer timer.Stop()

	bundle := r.extractor.Extract(signals.Input{
		Message:     req.Message,
		History:     req.History,
		Preferences: req.Preferences,
		Time:        req.Time,
	})

	defs := r.table.Definitions()
	if len(defs) == 0 {
		return r.fallback(bundle), nil
	}

	sc := r.table.Scoring()
	scores := make([]Score, len(defs))
	for i, def := range defs {
		scores[i] = Score{Context: def.ID, Score: scoreContext(sc, def, bundle)}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})

	top := scores[0]
	primary, _ := r.table.Definition(top.Context)

	var secondary []rules.ContextID
	for i := 1; i < len(scores) && i <= sc.MaxSecondary; i++ {
		if top.Score-scores[i].Score < sc.SecondaryMargin {
			secondary = append(secondary, scores[i].Context)
		}
	}

	route := Route{
		PrimaryContext:    top.Context,
		SecondaryContexts: secondary,
		Confidence:        textutil.Clamp01(top.Score / sc.WeightSum()),
		Reasoning:         reasoning(primary, bundle),
		Suggestions:       suggestions(primary, bundle),
		Scores:            scores,
		Signals:           bundle,
	}
	if route.SecondaryContexts == nil {
		route.SecondaryContexts = []rules.ContextID{}
	}

	logging.RoutingDebug("routed to %s (score=%.3f confidence=%.2f secondary=%v)",
		route.PrimaryContext, top.Score, route.Confidence, route.SecondaryContexts)
	logging.Audit(logging.AuditEvent{
		Type: logging.AuditRouteDecided,
		Fields: map[string]interface{}{
			"primary":    string(route.PrimaryContext),
			"confidence": route.Confidence,
			"secondary":  len(route.SecondaryContexts),
		},
	})
	return route, nil
}

// scoreContext returns the additive score of def.
func scoreContext(sc rules.Scoring, def rules.Definition, b signals.Bundle) float64 {
	kw := textutil.CountContained(b.Message.Folded, def.Keywords)
	avoid := textutil.CountContained(b.Message.Folded, def.AvoidKeywords)

	keywordScore := min(sc.KeywordStep*float64(kw), 1)
	avoidScore := min(sc.AvoidStep*float64(avoid), 1)

	score := sc.KeywordWeight*keywordScore - sc.AvoidWeight*avoidScore
	if b.History.Present && b.History.RecentContext == def.ID {
		score += sc.HistoryWeight * sc.HistoryBoost
	}
	if b.Time.Present && def.PrefersPeriod(b.Time.Period) {
		score += sc.TimeWeight * sc.TimeBoost
	}
	if b.Preferences.Favors(def.ID) {
		score += sc.PreferenceWeight * sc.PreferenceBoost
	}
	return score
}

// reasoning explains the route. The keyword phrase follows the quick-detect
// signal, so it appears whenever any context keyword is present, even one
// belonging to a context other than the primary.
func reasoning(primary rules.Definition, b signals.Bundle) string {
	var parts []string
	if b.Message.HasKeyword {
		parts = append(parts, ReasonKeyword)
	}
	if b.History.Present && b.History.RecentContext == primary.ID {
		parts = append(parts, ReasonHistory)
	}
	if b.Time.Present && primary.PrefersPeriod(b.Time.Period) {
		parts = append(parts, ReasonTime)
	}
	if len(parts) == 0 {
		return ReasonGeneral
	}
	return strings.Join(parts, "; ")
}

func suggestions(def rules.Definition, b signals.Bundle) Suggestions {
	s := Suggestions{
		Tone:       def.Tone,
		Length:     string(def.TypicalLength),
		EmojiLimit: def.EmojiLimit,
		KeyPhrases: head(def.KeyPhrases, 4),
		Avoid:      head(def.AvoidKeywords, 3),
	}
	if b.Message.HasExclamation && (def.ID == rules.Friendly || def.ID == rules.Creative) {
		s.Tone = "enthusiastic_" + s.Tone
	}
	if b.Time.Present && b.Time.Period == rules.Night && def.ID != rules.Professional {
		s.Tone = "more_relaxed"
	}
	switch {
	case b.Message.HasQuestion:
		s.ResponseType = ResponseAnswer
	case b.Message.HasExclamation:
		s.ResponseType = ResponseReaction
	}
	return s
}

func (r *Router) fallback(b signals.Bundle) Route {
	sc := r.table.Scoring()
	logging.RoutingDebug("empty rule table, falling back to %s", sc.FallbackContext)
	return Route{
		PrimaryContext:    sc.FallbackContext,
		SecondaryContexts: []rules.ContextID{},
		Confidence:        sc.FallbackConfidence,
		Reasoning:         ReasonGeneral,
		Suggestions: Suggestions{
			Tone:       "neutral",
			Length:     string(rules.Medium),
			EmojiLimit: 1,
			KeyPhrases: []string{},
			Avoid:      []string{},
		},
		Scores:  []Score{},
		Signals: b,
	}
}

func head(s []string, n int) []string {
	if len(s) > n {
		s = s[:n]
	}
	return append([]string{}, s...)
}
