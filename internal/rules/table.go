package rules

import (
	"errors"
	"strings"

	"toneroute/internal/textutil"
)

// ErrNilTable is returned by constructors handed a nil *Table.
var ErrNilTable = errors.New("rule table is nil")

// Table is the validated, immutable rule set. Keyword, emoji and lexicon word
// lists are stored case-folded in the table's language; accessors return copies.
type Table struct {
	language  string
	folder    textutil.Folder
	defs      []Definition
	index     map[ContextID]int
	adjacency map[ContextID]map[ContextID]struct{}
	responses map[ContextID]ResponseStyle
	scoring   Scoring
	lexicon   Lexicon
	warnings  []Issue
}

// New validates doc and freezes it into a Table. Validation errors are
// returned as *ValidationError; warnings are kept on the table.
func New(doc Document) (*Table, error) {
	verr := Validate(&doc)
	if verr.HasErrors() {
		return nil, verr
	}

	lang := doc.Language
	if lang == "" {
		lang = "und"
	}
	folder := textutil.NewFolder(lang)

	t := &Table{
		language:  lang,
		folder:    folder,
		defs:      make([]Definition, 0, len(doc.Contexts)),
		index:     make(map[ContextID]int, len(doc.Contexts)),
		adjacency: make(map[ContextID]map[ContextID]struct{}, len(doc.Contexts)),
		responses: make(map[ContextID]ResponseStyle, len(doc.Style.Responses)),
		scoring:   doc.Scoring,
		warnings:  verr.Issues,
	}

	for _, def := range doc.Contexts {
		d := def.clone()
		d.Keywords = foldNonBlank(folder, d.Keywords)
		d.AvoidKeywords = foldNonBlank(folder, d.AvoidKeywords)
		d.Emojis = foldNonBlank(folder, d.Emojis)
		if d.Tone == "" {
			d.Tone = "neutral"
		}

		edges := make(map[ContextID]struct{}, len(d.Compatible))
		for _, peer := range d.Compatible {
			edges[peer] = struct{}{}
		}
		t.adjacency[d.ID] = edges
		t.index[d.ID] = len(t.defs)
		t.defs = append(t.defs, d)
	}

	lex := doc.Style.clone()
	for i := range lex.Patterns {
		p := &lex.Patterns[i]
		p.FormalityWords = foldNonBlank(folder, p.FormalityWords)
		p.EmotionalWords = foldNonBlank(folder, p.EmotionalWords)
		p.HumorWords = foldNonBlank(folder, p.HumorWords)
	}
	lex.FormalWords = foldNonBlank(folder, lex.FormalWords)
	lex.EmotionalWords = foldNonBlank(folder, lex.EmotionalWords)
	lex.EmotionalEmojis = foldNonBlank(folder, lex.EmotionalEmojis)
	lex.HumorIndicators = foldNonBlank(folder, lex.HumorIndicators)
	lex.StopWords = foldNonBlank(folder, lex.StopWords)
	for i := range lex.Overrides {
		o := &lex.Overrides[i]
		o.Keywords = foldNonBlank(folder, o.Keywords)
		o.Emojis = foldNonBlank(folder, o.Emojis)
	}
	for _, r := range lex.Responses {
		t.responses[r.Context] = r
	}
	t.lexicon = lex

	return t, nil
}

// Language returns the BCP 47 tag the table folds with.
func (t *Table) Language() string { return t.language }

// Folder returns the case folder matching the table's stored word lists.
func (t *Table) Folder() textutil.Folder { return t.folder }

// Len returns the number of defined contexts.
func (t *Table) Len() int { return len(t.defs) }

// Contexts returns the defined context ids in table order.
func (t *Table) Contexts() []ContextID {
	out := make([]ContextID, len(t.defs))
	for i, d := range t.defs {
		out[i] = d.ID
	}
	return out
}

// Has reports whether id is defined in the table.
func (t *Table) Has(id ContextID) bool {
	_, ok := t.index[id]
	return ok
}

// Definition returns a copy of the definition for id.
func (t *Table) Definition(id ContextID) (Definition, bool) {
	i, ok := t.index[id]
	if !ok {
		return Definition{}, false
	}
	return t.defs[i].clone(), true
}

// Definitions returns copies of all definitions in table order.
func (t *Table) Definitions() []Definition {
	out := make([]Definition, len(t.defs))
	for i, d := range t.defs {
		out[i] = d.clone()
	}
	return out
}

// Describe returns the human description of id, or "" when undefined.
func (t *Table) Describe(id ContextID) string {
	if i, ok := t.index[id]; ok {
		return t.defs[i].Description
	}
	return ""
}

// Scoring returns the router weights.
func (t *Table) Scoring() Scoring { return t.scoring }

// Lexicon returns a copy of the style vocabulary.
func (t *Table) Lexicon() Lexicon { return t.lexicon.clone() }

// Response returns the base response style for id.
func (t *Table) Response(id ContextID) (ResponseStyle, bool) {
	r, ok := t.responses[id]
	if !ok {
		return ResponseStyle{}, false
	}
	r.KeyPhrases = cloneStrings(r.KeyPhrases)
	return r, true
}

// Compatible reports whether the directed edge from -> to exists.
func (t *Table) Compatible(from, to ContextID) bool {
	edges, ok := t.adjacency[from]
	if !ok {
		return false
	}
	_, ok = edges[to]
	return ok
}

// Peers returns the declared transition targets of from, in declaration order.
func (t *Table) Peers(from ContextID) []ContextID {
	i, ok := t.index[from]
	if !ok {
		return nil
	}
	return append([]ContextID(nil), t.defs[i].Compatible...)
}

// Warnings returns the non-fatal issues found when the table was built.
func (t *Table) Warnings() []Issue {
	return append([]Issue(nil), t.warnings...)
}

func foldNonBlank(f textutil.Folder, words []string) []string {
	if len(words) == 0 {
		return nil
	}
	out := make([]string, 0, len(words))
	for _, w := range words {
		fw := strings.TrimSpace(f.Fold(w))
		if fw == "" {
			continue
		}
		out = append(out, fw)
	}
	return out
}
