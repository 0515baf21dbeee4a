// Package rules holds the communication-context rule table: per-context keyword sets,
// time preferences, response defaults, the directed compatibility graph, the style
// lexicon and the scoring weights. A Table is immutable once built and safe to share
// between goroutines.
package rules

// ContextID names one of the five communication registers.
type ContextID string

const (
	Professional ContextID = "professional"
	Family       ContextID = "family"
	Romantic     ContextID = "romantic"
	Friendly     ContextID = "friendly"
	Creative     ContextID = "creative"

	// Unknown is reported for blank input.
	Unknown ContextID = "unknown"
)

// KnownContexts lists every valid context id in canonical order.
var KnownContexts = []ContextID{Professional, Family, Romantic, Friendly, Creative}

// Valid reports whether c is one of the five registers.
func (c ContextID) Valid() bool {
	for _, k := range KnownContexts {
		if c == k {
			return true
		}
	}
	return false
}

func (c ContextID) String() string { return string(c) }

// Period is a time-of-day bucket.
type Period string

const (
	Morning   Period = "morning"   // [6, 12)
	Afternoon Period = "afternoon" // [12, 18)
	Evening   Period = "evening"   // [18, 23)
	Night     Period = "night"     // [23, 6)
)

// Time-preference tags that never match a period but are accepted in rule files.
const (
	prefWeekend  = "weekend"
	prefFlexible = "flexible"
)

// LengthClass buckets message length.
type LengthClass string

const (
	Short  LengthClass = "short"
	Medium LengthClass = "medium"
	Long   LengthClass = "long"
)

// Valid reports whether l is a known length class.
func (l LengthClass) Valid() bool {
	return l == Short || l == Medium || l == Long
}

// Definition is the static configuration of one context.
type Definition struct {
	ID             ContextID   `yaml:"id"`
	Description    string      `yaml:"description"`
	Keywords       []string    `yaml:"keywords"`
	AvoidKeywords  []string    `yaml:"avoid_keywords"`
	Emojis         []string    `yaml:"emojis"`
	TimePreference []string    `yaml:"time_preference"`
	TypicalLength  LengthClass `yaml:"typical_length"`
	EmojiLimit     int         `yaml:"emoji_limit"`
	Compatible     []ContextID `yaml:"compatible"`
	Tone           string      `yaml:"tone"`
	KeyPhrases     []string    `yaml:"key_phrases"`
}

// PrefersPeriod reports whether p is in the definition's time preferences.
func (d Definition) PrefersPeriod(p Period) bool {
	for _, tp := range d.TimePreference {
		if tp == string(p) {
			return true
		}
	}
	return false
}

func (d Definition) clone() Definition {
	d.Keywords = cloneStrings(d.Keywords)
	d.AvoidKeywords = cloneStrings(d.AvoidKeywords)
	d.Emojis = cloneStrings(d.Emojis)
	d.TimePreference = cloneStrings(d.TimePreference)
	d.KeyPhrases = cloneStrings(d.KeyPhrases)
	if d.Compatible != nil {
		d.Compatible = append([]ContextID(nil), d.Compatible...)
	}
	return d
}

// Scoring holds the router weights and windows.
type Scoring struct {
	KeywordWeight    float64 `yaml:"keyword_weight"`
	HistoryWeight    float64 `yaml:"history_weight"`
	TimeWeight       float64 `yaml:"time_weight"`
	PreferenceWeight float64 `yaml:"preference_weight"`

	KeywordStep float64 `yaml:"keyword_step"` // per matched keyword, capped at 1
	AvoidStep   float64 `yaml:"avoid_step"`   // per matched avoid keyword, capped at 1
	AvoidWeight float64 `yaml:"avoid_weight"`

	HistoryBoost    float64 `yaml:"history_boost"`
	TimeBoost       float64 `yaml:"time_boost"`
	PreferenceBoost float64 `yaml:"preference_boost"`

	SecondaryMargin float64 `yaml:"secondary_margin"`
	MaxSecondary    int     `yaml:"max_secondary"`

	HistoryWindow    int `yaml:"history_window"`
	TransitionWindow int `yaml:"transition_window"`

	FallbackContext    ContextID `yaml:"fallback_context"`
	FallbackConfidence float64   `yaml:"fallback_confidence"`
}

// DefaultScoring returns the stock weights.
func DefaultScoring() Scoring {
	return Scoring{
		KeywordWeight:      0.4,
		HistoryWeight:      0.3,
		TimeWeight:         0.1,
		PreferenceWeight:   0.2,
		KeywordStep:        0.3,
		AvoidStep:          0.2,
		AvoidWeight:        0.2,
		HistoryBoost:       0.3,
		TimeBoost:          0.2,
		PreferenceBoost:    0.3,
		SecondaryMargin:    0.1,
		MaxSecondary:       1,
		HistoryWindow:      5,
		TransitionWindow:   3,
		FallbackContext:    Friendly,
		FallbackConfidence: 0.5,
	}
}

// WeightSum is the confidence normalizer.
func (s Scoring) WeightSum() float64 {
	return s.KeywordWeight + s.HistoryWeight + s.TimeWeight + s.PreferenceWeight
}

// StylePattern lists the words that vote for a context in style analysis.
type StylePattern struct {
	Context        ContextID `yaml:"context"`
	FormalityWords []string  `yaml:"formality_words"`
	EmotionalWords []string  `yaml:"emotional_words"`
	HumorWords     []string  `yaml:"humor_words"`
}

// Override forces a context when any keyword or emoji is present.
type Override struct {
	Name     string    `yaml:"name"`
	Context  ContextID `yaml:"context"`
	Keywords []string  `yaml:"keywords"`
	Emojis   []string  `yaml:"emojis"`
}

// ResponseStyle is the base suggested style for a context.
type ResponseStyle struct {
	Context    ContextID   `yaml:"context"`
	Tone       string      `yaml:"tone"`
	EmojiLimit int         `yaml:"emoji_limit"`
	Length     LengthClass `yaml:"length"`
	KeyPhrases []string    `yaml:"key_phrases"`
}

// Lexicon is the style analyzer's vocabulary.
type Lexicon struct {
	Confidence      float64         `yaml:"confidence"`
	Patterns        []StylePattern  `yaml:"patterns"`
	FormalWords     []string        `yaml:"formal_words"`
	EmotionalWords  []string        `yaml:"emotional_words"`
	EmotionalEmojis []string        `yaml:"emotional_emojis"`
	HumorIndicators []string        `yaml:"humor_indicators"`
	StopWords       []string        `yaml:"stop_words"`
	Overrides       []Override      `yaml:"overrides"`
	Responses       []ResponseStyle `yaml:"responses"`
}

func (l Lexicon) clone() Lexicon {
	out := l
	out.Patterns = make([]StylePattern, len(l.Patterns))
	for i, p := range l.Patterns {
		out.Patterns[i] = StylePattern{
			Context:        p.Context,
			FormalityWords: cloneStrings(p.FormalityWords),
			EmotionalWords: cloneStrings(p.EmotionalWords),
			HumorWords:     cloneStrings(p.HumorWords),
		}
	}
	out.FormalWords = cloneStrings(l.FormalWords)
	out.EmotionalWords = cloneStrings(l.EmotionalWords)
	out.EmotionalEmojis = cloneStrings(l.EmotionalEmojis)
	out.HumorIndicators = cloneStrings(l.HumorIndicators)
	out.StopWords = cloneStrings(l.StopWords)
	out.Overrides = make([]Override, len(l.Overrides))
	for i, o := range l.Overrides {
		out.Overrides[i] = Override{
			Name:     o.Name,
			Context:  o.Context,
			Keywords: cloneStrings(o.Keywords),
			Emojis:   cloneStrings(o.Emojis),
		}
	}
	out.Responses = make([]ResponseStyle, len(l.Responses))
	for i, r := range l.Responses {
		r.KeyPhrases = cloneStrings(r.KeyPhrases)
		out.Responses[i] = r
	}
	return out
}

// Document is the on-disk shape of a rule table.
type Document struct {
	Version  int          `yaml:"version"`
	Language string       `yaml:"language"`
	Scoring  Scoring      `yaml:"scoring"`
	Contexts []Definition `yaml:"contexts"`
	Style    Lexicon      `yaml:"style"`
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
