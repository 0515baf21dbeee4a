package rules

import (
	"fmt"
	"strings"
)

type IssueLevel string

const (
	IssueError   IssueLevel = "error"
	IssueWarning IssueLevel = "warning"
)

// Issue is one problem found in a rule document.
type Issue struct {
	Level   IssueLevel
	Path    string
	Field   string
	Message string
}

func (i Issue) String() string {
	if i.Field == "" {
		return fmt.Sprintf("[%s] %s: %s", i.Level, i.Path, i.Message)
	}
	return fmt.Sprintf("[%s] %s (%s): %s", i.Level, i.Path, i.Field, i.Message)
}

// ValidationError aggregates every issue found while validating a rule document.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return "rule table validation failed"
	}
	var first string
	for _, it := range e.Issues {
		if it.Level == IssueError {
			first = it.String()
			break
		}
	}
	return fmt.Sprintf("rule table validation failed with %d issue(s): %s", len(e.Issues), first)
}

func (e *ValidationError) HasErrors() bool {
	if e == nil {
		return false
	}
	for _, it := range e.Issues {
		if it.Level == IssueError {
			return true
		}
	}
	return false
}

var validTimePreferences = map[string]struct{}{
	string(Morning):   {},
	string(Afternoon): {},
	string(Evening):   {},
	string(Night):     {},
	prefWeekend:       {},
	prefFlexible:      {},
}

// Validate checks a rule document. Errors make the document unusable;
// warnings are informational.
func Validate(doc *Document) *ValidationError {
	issues := []Issue{}
	if doc == nil {
		issues = append(issues, Issue{Level: IssueError, Path: "document", Message: "document is nil"})
		return &ValidationError{Issues: issues}
	}

	if doc.Version <= 0 {
		issues = append(issues, Issue{Level: IssueError, Path: "document", Field: "version", Message: "must be >= 1"})
	}

	seen := map[ContextID]struct{}{}
	for i, def := range doc.Contexts {
		path := fmt.Sprintf("contexts[%d]", i)
		if strings.TrimSpace(string(def.ID)) == "" {
			issues = append(issues, Issue{Level: IssueError, Path: path, Field: "id", Message: "is required"})
			continue
		}
		path = fmt.Sprintf("contexts[%s]", def.ID)
		if !def.ID.Valid() {
			issues = append(issues, Issue{Level: IssueError, Path: path, Field: "id", Message: "unknown context id"})
		}
		if _, dup := seen[def.ID]; dup {
			issues = append(issues, Issue{Level: IssueError, Path: path, Field: "id", Message: "duplicate context id"})
		}
		seen[def.ID] = struct{}{}

		if countNonBlank(def.Keywords) == 0 {
			issues = append(issues, Issue{Level: IssueError, Path: path, Field: "keywords", Message: "keyword set must not be empty"})
		}
		if def.EmojiLimit < 0 {
			issues = append(issues, Issue{Level: IssueError, Path: path, Field: "emoji_limit", Message: "must be >= 0"})
		}
		if !def.TypicalLength.Valid() {
			issues = append(issues, Issue{Level: IssueError, Path: path, Field: "typical_length", Message: "must be short, medium or long"})
		}
		if len(def.KeyPhrases) > 4 {
			issues = append(issues, Issue{Level: IssueWarning, Path: path, Field: "key_phrases", Message: "only the first 4 phrases are suggested"})
		}
		if strings.TrimSpace(def.Tone) == "" {
			issues = append(issues, Issue{Level: IssueWarning, Path: path, Field: "tone", Message: "empty tone falls back to neutral"})
		}
		for j, tp := range def.TimePreference {
			if _, ok := validTimePreferences[tp]; !ok {
				issues = append(issues, Issue{Level: IssueWarning, Path: path, Field: fmt.Sprintf("time_preference[%d]", j), Message: "never matches a time-of-day period"})
			}
		}
		for j, peer := range def.Compatible {
			field := fmt.Sprintf("compatible[%d]", j)
			switch {
			case !peer.Valid():
				issues = append(issues, Issue{Level: IssueError, Path: path, Field: field, Message: "unknown context id"})
			case peer == def.ID:
				issues = append(issues, Issue{Level: IssueWarning, Path: path, Field: field, Message: "self edge is redundant"})
			}
		}
	}
	for _, id := range KnownContexts {
		if _, ok := seen[id]; !ok {
			issues = append(issues, Issue{Level: IssueWarning, Path: "contexts", Field: string(id), Message: "context not defined"})
		}
	}

	validateScoring(doc.Scoring, &issues)
	validateLexicon(doc.Style, &issues)

	return &ValidationError{Issues: issues}
}

func validateScoring(s Scoring, issues *[]Issue) {
	const path = "scoring"
	if s.WeightSum() <= 0 {
		*issues = append(*issues, Issue{Level: IssueError, Path: path, Message: "weights must sum to a positive value"})
	}
	if s.SecondaryMargin < 0 {
		*issues = append(*issues, Issue{Level: IssueError, Path: path, Field: "secondary_margin", Message: "must be >= 0"})
	}
	if s.MaxSecondary < 0 || s.MaxSecondary > 2 {
		*issues = append(*issues, Issue{Level: IssueError, Path: path, Field: "max_secondary", Message: "must be between 0 and 2"})
	}
	if s.HistoryWindow < 1 {
		*issues = append(*issues, Issue{Level: IssueError, Path: path, Field: "history_window", Message: "must be >= 1"})
	}
	if s.TransitionWindow < 1 {
		*issues = append(*issues, Issue{Level: IssueError, Path: path, Field: "transition_window", Message: "must be >= 1"})
	}
	if !s.FallbackContext.Valid() {
		*issues = append(*issues, Issue{Level: IssueError, Path: path, Field: "fallback_context", Message: "unknown context id"})
	}
	if s.FallbackConfidence < 0 || s.FallbackConfidence > 1 {
		*issues = append(*issues, Issue{Level: IssueError, Path: path, Field: "fallback_confidence", Message: "must be within [0, 1]"})
	}
}

func validateLexicon(l Lexicon, issues *[]Issue) {
	if l.Confidence < 0 || l.Confidence > 1 {
		*issues = append(*issues, Issue{Level: IssueError, Path: "style", Field: "confidence", Message: "must be within [0, 1]"})
	}
	for i, p := range l.Patterns {
		if !p.Context.Valid() {
			*issues = append(*issues, Issue{Level: IssueError, Path: fmt.Sprintf("style.patterns[%d]", i), Field: "context", Message: "unknown context id"})
		}
	}
	for i, o := range l.Overrides {
		path := fmt.Sprintf("style.overrides[%d]", i)
		if !o.Context.Valid() {
			*issues = append(*issues, Issue{Level: IssueError, Path: path, Field: "context", Message: "unknown context id"})
		}
		if countNonBlank(o.Keywords)+countNonBlank(o.Emojis) == 0 {
			*issues = append(*issues, Issue{Level: IssueWarning, Path: path, Message: "override can never fire"})
		}
	}
	seen := map[ContextID]struct{}{}
	for i, r := range l.Responses {
		path := fmt.Sprintf("style.responses[%d]", i)
		if !r.Context.Valid() {
			*issues = append(*issues, Issue{Level: IssueError, Path: path, Field: "context", Message: "unknown context id"})
		}
		if _, dup := seen[r.Context]; dup {
			*issues = append(*issues, Issue{Level: IssueError, Path: path, Field: "context", Message: "duplicate response style"})
		}
		seen[r.Context] = struct{}{}
		if r.EmojiLimit < 0 {
			*issues = append(*issues, Issue{Level: IssueError, Path: path, Field: "emoji_limit", Message: "must be >= 0"})
		}
		if r.Length != "" && !r.Length.Valid() {
			*issues = append(*issues, Issue{Level: IssueError, Path: path, Field: "length", Message: "must be short, medium or long"})
		}
	}
}

func countNonBlank(s []string) int {
	n := 0
	for _, v := range s {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}
