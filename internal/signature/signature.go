// Package signature summarizes a corpus of messages written in one register:
// averaged style characteristics, frequent words and phrases, and a label.
package signature

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"toneroute/internal/config"
	"toneroute/internal/logging"
	"toneroute/internal/rules"
	"toneroute/internal/style"
	"toneroute/internal/textutil"
)

// UnknownLabel labels an empty corpus.
const UnknownLabel = "unknown style"

// Defaults applied when a SignatureConfig field is left at zero.
const (
	DefaultTopWords   = 10
	DefaultTopPhrases = 10
)

// SlowThreshold is the corpus duration above which a warning is logged.
const SlowThreshold = 5 * time.Second

// Averages are corpus means of per-message characteristics.
type Averages struct {
	Formality       float64 `json:"formality"`
	Emotionality    float64 `json:"emotionality"`
	HumorLevel      float64 `json:"humor_level"`
	EmojiFrequency  float64 `json:"emoji_frequency"`
	WordCount       float64 `json:"word_count"`
	QuestionRate    float64 `json:"question_rate"`
	ExclamationRate float64 `json:"exclamation_rate"`
}

// Frequency is a counted word or phrase.
type Frequency struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

// Signature is the aggregated style of a corpus.
type Signature struct {
	Context       rules.ContextID `json:"context"`
	Averages      Averages        `json:"averages"`
	CommonWords   []Frequency     `json:"common_words"`
	CommonPhrases []Frequency     `json:"common_phrases"`
	MessageCount  int             `json:"message_count"`
	Label         string          `json:"label"`
}

// Aggregator is safe for concurrent use.
type Aggregator struct {
	table    *rules.Table
	analyzer *style.Analyzer
	stop     map[string]struct{}
	cfg      config.SignatureConfig
}

// NewAggregator binds an aggregator to table.
func NewAggregator(table *rules.Table, cfg config.SignatureConfig) (*Aggregator, error) {
	if table == nil {
		return nil, fmt.Errorf("signature: %w", rules.ErrNilTable)
	}
	analyzer, err := style.NewAnalyzer(table)
	if err != nil {
		return nil, err
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MinPhraseCount < 1 {
		cfg.MinPhraseCount = 1
	}
	if cfg.TopWords < 1 {
		cfg.TopWords = DefaultTopWords
	}
	if cfg.TopPhrases < 1 {
		cfg.TopPhrases = DefaultTopPhrases
	}
	stop := make(map[string]struct{})
	for _, w := range table.Lexicon().StopWords {
		stop[w] = struct{}{}
	}
	return &Aggregator{table: table, analyzer: analyzer, stop: stop, cfg: cfg}, nil
}

// Signature analyzes every message in parallel and reduces the results in
// corpus order. Only cancellation of ctx produces an error.
func (a *Aggregator) Signature(ctx context.Context, messages []string, id rules.ContextID) (Signature, error) {
	if len(messages) == 0 {
		return Signature{
			Context:       id,
			CommonWords:   []Frequency{},
			CommonPhrases: []Frequency{},
			Label:         UnknownLabel,
		}, nil
	}
	timer := logging.StartTimer(logging.CategorySignature, "Signature")
	defer timer.StopWithThreshold(SlowThreshold)

	results := make([]style.Analysis, len(messages))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(a.cfg.Workers)
	for i, msg := range messages {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			results[i] = a.analyzer.Analyze(msg, id)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Signature{}, fmt.Errorf("signature aborted: %w", err)
	}

	sig := Signature{
		Context:       id,
		Averages:      average(results),
		CommonWords:   a.commonWords(messages),
		CommonPhrases: a.commonPhrases(messages),
		MessageCount:  len(messages),
	}
	sig.Label = Label(sig.Averages)

	logging.SignatureDebug("signature for %s over %d messages: %s", id, len(messages), sig.Label)
	logging.Audit(logging.AuditEvent{
		Type: logging.AuditSignatureBuilt,
		Fields: map[string]interface{}{
			"context":  string(id),
			"messages": len(messages),
			"label":    sig.Label,
		},
	})
	return sig, nil
}

func average(results []style.Analysis) Averages {
	var avg Averages
	for _, r := range results {
		ch := r.Characteristics
		avg.Formality += ch.Formality
		avg.Emotionality += ch.Emotionality
		avg.HumorLevel += ch.HumorLevel
		avg.EmojiFrequency += ch.EmojiFrequency
		avg.WordCount += float64(ch.WordCount)
		if ch.ContainsQuestions {
			avg.QuestionRate++
		}
		if ch.ContainsExclamations {
			avg.ExclamationRate++
		}
	}
	n := float64(len(results))
	avg.Formality /= n
	avg.Emotionality /= n
	avg.HumorLevel /= n
	avg.EmojiFrequency /= n
	avg.WordCount /= n
	avg.QuestionRate /= n
	avg.ExclamationRate /= n
	return avg
}

// commonWords counts letter tokens of at least 3 runes, skipping stop words.
func (a *Aggregator) commonWords(messages []string) []Frequency {
	c := newCounter()
	folder := a.table.Folder()
	for _, msg := range messages {
		for _, tok := range textutil.LetterTokens(folder.Fold(msg), 3) {
			if _, stop := a.stop[tok]; stop {
				continue
			}
			c.add(tok)
		}
	}
	return c.top(a.cfg.TopWords, 1)
}

// commonPhrases counts adjacent whitespace-token pairs longer than 5 runes.
func (a *Aggregator) commonPhrases(messages []string) []Frequency {
	c := newCounter()
	folder := a.table.Folder()
	for _, msg := range messages {
		words := textutil.Words(folder.Fold(msg))
		for i := 0; i+1 < len(words); i++ {
			phrase := words[i] + " " + words[i+1]
			if textutil.RuneLen(phrase) > 5 {
				c.add(phrase)
			}
		}
	}
	return c.top(a.cfg.TopPhrases, a.cfg.MinPhraseCount)
}

type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(s string) {
	if _, seen := c.counts[s]; !seen {
		c.order = append(c.order, s)
	}
	c.counts[s]++
}

// top returns up to n entries with at least minCount occurrences, by count
// descending with ties in first-seen order.
func (c *counter) top(n, minCount int) []Frequency {
	out := make([]Frequency, 0, len(c.order))
	for _, s := range c.order {
		if c.counts[s] >= minCount {
			out = append(out, Frequency{Text: s, Count: c.counts[s]})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Bands of the label, weakest first.
var (
	formalityBands    = []string{"informal", "moderately formal", "formal"}
	emotionalityBands = []string{"reserved", "moderately emotional", "emotional"}
	lengthBands       = []string{"concise", "moderate length", "elaborate"}
)

// Band maps v onto 0, 1 or 2 using the exclusive thresholds mid and high.
func Band(v, mid, high float64) int {
	switch {
	case v > high:
		return 2
	case v > mid:
		return 1
	default:
		return 0
	}
}

// Label renders the descriptive label of averaged characteristics.
func Label(avg Averages) string {
	return strings.Join([]string{
		formalityBands[Band(avg.Formality, 0.3, 0.7)],
		emotionalityBands[Band(avg.Emotionality, 0.3, 0.7)],
		lengthBands[Band(avg.WordCount, 5, 15)],
	}, ", ")
}
