// Package style derives a numeric style profile from a message and picks the
// register its vocabulary points to.
package style

import (
	"fmt"
	"strings"

	"toneroute/internal/logging"
	"toneroute/internal/rules"
	"toneroute/internal/textutil"
)

// Per-match weights for context detection.
const (
	formalityStep = 0.3
	emotionalStep = 0.2
	humorStep     = 0.2
)

// Characteristics is the numeric style profile of one message.
type Characteristics struct {
	Formality            float64           `json:"formality"`
	Emotionality         float64           `json:"emotionality"`
	HumorLevel           float64           `json:"humor_level"`
	EmojiFrequency       float64           `json:"emoji_frequency"`
	LengthClass          rules.LengthClass `json:"length_class"`
	ContainsQuestions    bool              `json:"contains_questions"`
	ContainsExclamations bool              `json:"contains_exclamations"`
	WordCount            int               `json:"word_count"`
}

// SuggestedStyle is the response style for the detected context.
type SuggestedStyle struct {
	Tone       string            `json:"tone"`
	EmojiLimit int               `json:"emoji_limit"`
	Length     rules.LengthClass `json:"length"`
	KeyPhrases []string          `json:"key_phrases"`
}

// Analysis is the result of Analyze.
type Analysis struct {
	DetectedContext rules.ContextID `json:"detected_context"`
	Confidence      float64         `json:"confidence"`
	Characteristics Characteristics `json:"characteristics"`
	Suggested       *SuggestedStyle `json:"suggested_style"`
	Override        string          `json:"override,omitempty"`
}

// Analyzer is safe for concurrent use.
type Analyzer struct {
	table     *rules.Table
	lexicon   rules.Lexicon
	overrides []OverrideRule
	formal    map[string]struct{}
	emotional map[string]struct{}
}

// NewAnalyzer binds an analyzer to table.
func NewAnalyzer(table *rules.Table) (*Analyzer, error) {
	if table == nil {
		return nil, fmt.Errorf("style: %w", rules.ErrNilTable)
	}
	lex := table.Lexicon()
	return &Analyzer{
		table:     table,
		lexicon:   lex,
		overrides: OverrideChain(lex),
		formal:    wordSet(lex.FormalWords),
		emotional: wordSet(lex.EmotionalWords),
	}, nil
}

// Analyze profiles text. A known context defined in the table skips vocabulary
// scoring; the override chain always runs. Blank text yields the unknown context.
func (a *Analyzer) Analyze(text string, known rules.ContextID) Analysis {
	if strings.TrimSpace(text) == "" {
		return Analysis{DetectedContext: rules.Unknown}
	}

	folded := a.table.Folder().Fold(text)
	ch := a.characteristics(text, folded)

	detected := known
	if !a.table.Has(known) {
		detected = a.detect(folded)
	}
	detected, override := ApplyOverrides(a.overrides, folded, detected)

	res := Analysis{
		DetectedContext: detected,
		Confidence:      a.lexicon.Confidence,
		Characteristics: ch,
		Suggested:       a.suggest(detected, ch),
		Override:        override,
	}

	logging.StyleDebug("analyzed %d words: context=%s formality=%.2f emotionality=%.2f humor=%.2f",
		ch.WordCount, detected, ch.Formality, ch.Emotionality, ch.HumorLevel)
	logging.Audit(logging.AuditEvent{
		Type: logging.AuditStyleAnalyzed,
		Fields: map[string]interface{}{
			"context":  string(detected),
			"override": override,
			"words":    ch.WordCount,
		},
	})
	return res
}

// detect scores every lexicon pattern; the first maximum in table order wins and
// an all-zero score falls back to friendly.
func (a *Analyzer) detect(folded string) rules.ContextID {
	scores := make(map[rules.ContextID]float64, len(a.lexicon.Patterns))
	for _, p := range a.lexicon.Patterns {
		scores[p.Context] += formalityStep*float64(textutil.CountContained(folded, p.FormalityWords)) +
			emotionalStep*float64(textutil.CountContained(folded, p.EmotionalWords)) +
			humorStep*float64(textutil.CountContained(folded, p.HumorWords))
	}

	best, bestScore := rules.Friendly, 0.0
	for _, id := range a.table.Contexts() {
		if s := scores[id]; s > bestScore {
			best, bestScore = id, s
		}
	}
	return best
}

func (a *Analyzer) characteristics(text, folded string) Characteristics {
	words := textutil.Words(folded)
	formal, emotional := 0, 0
	for _, w := range words {
		tok := textutil.TrimToken(w)
		if _, ok := a.formal[tok]; ok {
			formal++
		}
		if _, ok := a.emotional[tok]; ok {
			emotional++
		}
	}

	ch := Characteristics{
		ContainsQuestions:    strings.Contains(text, "?"),
		ContainsExclamations: strings.Contains(text, "!"),
		WordCount:            len(words),
		LengthClass:          LengthClassOf(len(words)),
	}
	if len(words) > 0 {
		n := float64(len(words))
		ch.Formality = textutil.Clamp01(3 * float64(formal) / n)

		emojiTerm := 0.1 * float64(textutil.CountContained(folded, a.lexicon.EmotionalEmojis))
		exclamTerm := min(0.05*float64(strings.Count(text, "!")), 0.3)
		ch.Emotionality = textutil.Clamp01(2*float64(emotional)/n + emojiTerm + exclamTerm)
	}
	ch.HumorLevel = textutil.Clamp01(0.2 * float64(textutil.CountContained(folded, a.lexicon.HumorIndicators)))
	if runes := textutil.RuneLen(text); runes > 0 {
		ch.EmojiFrequency = textutil.Clamp01(100 * float64(textutil.CountEmojis(text)) / float64(runes))
	}
	return ch
}

func (a *Analyzer) suggest(id rules.ContextID, ch Characteristics) *SuggestedStyle {
	s := &SuggestedStyle{Tone: "neutral", EmojiLimit: 1, Length: rules.Medium, KeyPhrases: []string{}}
	if base, ok := a.table.Response(id); ok {
		s.Tone = base.Tone
		s.EmojiLimit = base.EmojiLimit
		s.KeyPhrases = append(s.KeyPhrases, base.KeyPhrases...)
		if base.Length != "" {
			s.Length = base.Length
		}
	}

	switch {
	case ch.Emotionality > 0.7:
		s.Tone = "emotional"
	case ch.Formality > 0.7:
		s.Tone = "very_formal"
	}
	if ch.EmojiFrequency > 0.5 {
		s.EmojiLimit = min(s.EmojiLimit+2, 5)
	}
	return s
}

// LengthClassOf buckets a word count.
func LengthClassOf(words int) rules.LengthClass {
	switch {
	case words < 5:
		return rules.Short
	case words < 20:
		return rules.Medium
	default:
		return rules.Long
	}
}

func wordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
