// Package signals extracts per-call features from the four input sources a
// routing decision considers: the message, recent dialog history, the clock and
// user preferences. Every extractor is total: absent inputs produce zero signals.
package signals

import (
	"fmt"
	"strings"

	"toneroute/internal/logging"
	"toneroute/internal/rules"
	"toneroute/internal/textutil"
)

// MessageSignals are features of the message text itself.
type MessageSignals struct {
	WordCount      int  `json:"word_count"`
	HasQuestion    bool `json:"has_question"`
	HasExclamation bool `json:"has_exclamation"`
	EmojiCount     int  `json:"emoji_count"`

	// Quick detection: the first keyword found walking the table in order.
	// Independent of the scored route and may disagree with it.
	HasKeyword      bool            `json:"has_keyword"`
	DetectedKeyword string          `json:"detected_keyword,omitempty"`
	DetectedContext rules.ContextID `json:"detected_context,omitempty"`

	// Folded is the case-folded message used for keyword containment.
	Folded string `json:"-"`
}

// HistorySignals summarize the most recent dialog entries.
type HistorySignals struct {
	Present       bool            `json:"present"`
	RecentContext rules.ContextID `json:"recent_context,omitempty"`
	Frequency     float64         `json:"frequency"`
	Scanned       int             `json:"scanned"`
}

// TimeInfo is the optional clock input.
type TimeInfo struct {
	Hour      int  `json:"hour" yaml:"hour"`
	Weekday   *int `json:"weekday,omitempty" yaml:"weekday,omitempty"` // 0 = Monday
	IsHoliday bool `json:"is_holiday" yaml:"is_holiday"`
}

// Weekday is a convenience for building a TimeInfo weekday pointer.
func Weekday(d int) *int { return &d }

// TimeSignals are derived from TimeInfo.
type TimeSignals struct {
	Present    bool         `json:"present"`
	Hour       int          `json:"hour"`
	Period     rules.Period `json:"period,omitempty"`
	Weekend    bool         `json:"weekend"`
	Adjustment string       `json:"adjustment,omitempty"`
}

// Time adjustments.
const (
	AdjustMoreCasual = "more_casual"
	AdjustFestive    = "festive"
)

// Preferences are the optional per-user routing preferences.
type Preferences struct {
	Favored []rules.ContextID `json:"favored,omitempty" yaml:"favored"`
	Avoided []rules.ContextID `json:"avoided,omitempty" yaml:"avoided"`
	Style   string            `json:"style,omitempty" yaml:"style"`
}

// Favors reports whether id is a favored context.
func (p Preferences) Favors(id rules.ContextID) bool {
	for _, f := range p.Favored {
		if f == id {
			return true
		}
	}
	return false
}

// Bundle aggregates every signal for one call.
type Bundle struct {
	Message     MessageSignals `json:"message"`
	History     HistorySignals `json:"history"`
	Time        TimeSignals    `json:"time"`
	Preferences Preferences    `json:"preferences"`
}

// Input is everything an extractor may look at.
type Input struct {
	Message     string
	History     []string
	Preferences *Preferences
	Time        *TimeInfo
}

// Extractor derives signals against one rule table.
type Extractor struct {
	table *rules.Table
}

// NewExtractor returns an extractor bound to table.
func NewExtractor(table *rules.Table) (*Extractor, error) {
	if table == nil {
		return nil, fmt.Errorf("signals: %w", rules.ErrNilTable)
	}
	return &Extractor{table: table}, nil
}

// Extract runs every extractor over in.
func (e *Extractor) Extract(in Input) Bundle {
	return Bundle{
		Message:     e.Message(in.Message),
		History:     e.History(in.History),
		Time:        TimeOf(in.Time),
		Preferences: PreferencesOf(in.Preferences),
	}
}

// Message extracts text features and the quick keyword detection.
func (e *Extractor) Message(text string) MessageSignals {
	folded := e.table.Folder().Fold(text)
	ms := MessageSignals{
		WordCount:      len(textutil.Words(text)),
		HasQuestion:    strings.Contains(text, "?"),
		HasExclamation: strings.Contains(text, "!"),
		EmojiCount:     textutil.CountEmojis(text),
		Folded:         folded,
	}
	for _, def := range e.table.Definitions() {
		if kw, ok := textutil.FirstContained(folded, def.Keywords); ok {
			ms.HasKeyword = true
			ms.DetectedKeyword = kw
			ms.DetectedContext = def.ID
			break
		}
	}
	return ms
}

// History finds the context mentioned most often in the last entries.
// Each entry counts at most once per context; ties go to the context seen first.
func (e *Extractor) History(entries []string) HistorySignals {
	window := e.table.Scoring().HistoryWindow
	if len(entries) > window {
		entries = entries[len(entries)-window:]
	}
	if len(entries) == 0 {
		return HistorySignals{}
	}

	defs := e.table.Definitions()
	counts := make(map[rules.ContextID]int, len(defs))
	var order []rules.ContextID
	folder := e.table.Folder()
	for _, entry := range entries {
		folded := folder.Fold(entry)
		for _, def := range defs {
			if !textutil.ContainsAny(folded, def.Keywords) {
				continue
			}
			if counts[def.ID] == 0 {
				order = append(order, def.ID)
			}
			counts[def.ID]++
		}
	}

	hs := HistorySignals{Scanned: len(entries)}
	best := 0
	for _, id := range order {
		if counts[id] > best {
			best = counts[id]
			hs.RecentContext = id
		}
	}
	if best > 0 {
		hs.Present = true
		hs.Frequency = float64(best) / float64(len(entries))
	}
	return hs
}

// PeriodOf buckets an hour in [0, 24).
func PeriodOf(hour int) rules.Period {
	switch {
	case hour >= 6 && hour < 12:
		return rules.Morning
	case hour >= 12 && hour < 18:
		return rules.Afternoon
	case hour >= 18 && hour < 23:
		return rules.Evening
	default:
		return rules.Night
	}
}

// TimeOf derives time signals. A nil input or an hour outside [0, 23] yields none.
func TimeOf(ti *TimeInfo) TimeSignals {
	if ti == nil {
		return TimeSignals{}
	}
	if ti.Hour < 0 || ti.Hour > 23 {
		logging.Get(logging.CategoryRouting).Warn("ignoring out-of-range hour %d", ti.Hour)
		return TimeSignals{}
	}
	ts := TimeSignals{Present: true, Hour: ti.Hour, Period: PeriodOf(ti.Hour)}
	if ti.Weekday != nil && *ti.Weekday >= 5 && *ti.Weekday <= 6 {
		ts.Weekend = true
		ts.Adjustment = AdjustMoreCasual
	}
	if ti.IsHoliday {
		ts.Adjustment = AdjustFestive
	}
	return ts
}

// PreferencesOf passes preferences through, copying the slices.
func PreferencesOf(p *Preferences) Preferences {
	if p == nil {
		return Preferences{}
	}
	return Preferences{
		Favored: append([]rules.ContextID(nil), p.Favored...),
		Avoided: append([]rules.ContextID(nil), p.Avoided...),
		Style:   p.Style,
	}
}
