package rules

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultDoc(t *testing.T) Document {
	t.Helper()
	doc, err := Parse(DefaultYAML())
	require.NoError(t, err)
	return doc
}

func requireIssue(t *testing.T, err error, level IssueLevel, field string) {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected *ValidationError, got %T", err)
	for _, it := range verr.Issues {
		if it.Level == level && it.Field == field {
			return
		}
	}
	t.Fatalf("no %s issue on field %q in %v", level, field, verr.Issues)
}

func TestDefault(t *testing.T) {
	tbl, err := Default()
	require.NoError(t, err)

	assert.Equal(t, 5, tbl.Len())
	assert.Equal(t, KnownContexts, tbl.Contexts())
	assert.Empty(t, tbl.Warnings())
	assert.Equal(t, "ru", tbl.Language())
	assert.InDelta(t, 1.0, tbl.Scoring().WeightSum(), 1e-9)
	assert.Equal(t, "Деловое, формальное общение", tbl.Describe(Professional))
	assert.Equal(t, "", tbl.Describe(Unknown))

	r, ok := tbl.Response(Family)
	require.True(t, ok)
	assert.Equal(t, "warm", r.Tone)
	assert.Equal(t, 3, r.EmojiLimit)
}

func TestMustDefault_DoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() { MustDefault() })
}

func TestCompatibility_DefaultGraph(t *testing.T) {
	tbl := MustDefault()
	tests := []struct {
		from, to ContextID
		want     bool
	}{
		{Professional, Friendly, true},
		{Professional, Creative, true},
		{Professional, Family, false},
		{Family, Romantic, true},
		{Family, Professional, false},
		{Friendly, Professional, true},
		{Creative, Family, false},
		{Unknown, Friendly, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tbl.Compatible(tt.from, tt.to))
		})
	}
	assert.Equal(t, []ContextID{Professional, Family, Romantic, Creative}, tbl.Peers(Friendly))
}

func TestCompatibility_AsymmetricEdgesPreserved(t *testing.T) {
	doc := defaultDoc(t)
	for i := range doc.Contexts {
		switch doc.Contexts[i].ID {
		case Professional:
			doc.Contexts[i].Compatible = []ContextID{Creative}
		case Creative:
			doc.Contexts[i].Compatible = nil
		}
	}
	tbl, err := New(doc)
	require.NoError(t, err)

	assert.True(t, tbl.Compatible(Professional, Creative))
	assert.False(t, tbl.Compatible(Creative, Professional))
}

func TestNew_RejectsDuplicateIDs(t *testing.T) {
	doc := defaultDoc(t)
	doc.Contexts = append(doc.Contexts, doc.Contexts[0])

	_, err := New(doc)
	require.Error(t, err)
	requireIssue(t, err, IssueError, "id")
}

func TestNew_RejectsEmptyKeywords(t *testing.T) {
	doc := defaultDoc(t)
	doc.Contexts[1].Keywords = []string{"  ", ""}

	_, err := New(doc)
	requireIssue(t, err, IssueError, "keywords")
}

func TestNew_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Document)
		field  string
	}{
		{"unknown id", func(d *Document) { d.Contexts[0].ID = "gaming" }, "id"},
		{"negative emoji limit", func(d *Document) { d.Contexts[2].EmojiLimit = -1 }, "emoji_limit"},
		{"bad length", func(d *Document) { d.Contexts[0].TypicalLength = "huge" }, "typical_length"},
		{"unknown compat target", func(d *Document) { d.Contexts[0].Compatible = []ContextID{"gaming"} }, "compatible[0]"},
		{"fallback context", func(d *Document) { d.Scoring.FallbackContext = "nobody" }, "fallback_context"},
		{"max secondary", func(d *Document) { d.Scoring.MaxSecondary = 3 }, "max_secondary"},
		{"history window", func(d *Document) { d.Scoring.HistoryWindow = 0 }, "history_window"},
		{"style confidence", func(d *Document) { d.Style.Confidence = 1.5 }, "confidence"},
		{"response context", func(d *Document) { d.Style.Responses[0].Context = "nobody" }, "context"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := defaultDoc(t)
			tt.mutate(&doc)
			_, err := New(doc)
			requireIssue(t, err, IssueError, tt.field)
		})
	}
}

func TestNew_RejectsNonPositiveWeights(t *testing.T) {
	doc := defaultDoc(t)
	doc.Scoring.KeywordWeight = 0
	doc.Scoring.HistoryWeight = 0
	doc.Scoring.TimeWeight = 0
	doc.Scoring.PreferenceWeight = 0

	_, err := New(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights must sum to a positive value")
}

func TestNew_PartialTableWarns(t *testing.T) {
	doc := defaultDoc(t)
	doc.Contexts = doc.Contexts[:1]

	tbl, err := New(doc)
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())

	missing := 0
	for _, w := range tbl.Warnings() {
		assert.Equal(t, IssueWarning, w.Level)
		if w.Message == "context not defined" {
			missing++
		}
	}
	assert.Equal(t, 4, missing)
}

func TestNew_EmptyTable(t *testing.T) {
	doc := defaultDoc(t)
	doc.Contexts = nil

	tbl, err := New(doc)
	require.NoError(t, err)
	assert.Zero(t, tbl.Len())
	assert.Empty(t, tbl.Contexts())
}

func TestNew_FoldsKeywords(t *testing.T) {
	doc := defaultDoc(t)
	doc.Contexts[0].Keywords = []string{"РАБОТА", " Проект "}

	tbl, err := New(doc)
	require.NoError(t, err)
	def, ok := tbl.Definition(Professional)
	require.True(t, ok)
	assert.Equal(t, []string{"работа", "проект"}, def.Keywords)
}

func TestDefinition_ReturnsCopy(t *testing.T) {
	tbl := MustDefault()
	def, ok := tbl.Definition(Romantic)
	require.True(t, ok)
	def.Keywords[0] = "mutated"
	def.Compatible[0] = Creative

	again, _ := tbl.Definition(Romantic)
	assert.Equal(t, "люблю", again.Keywords[0])
	assert.Equal(t, Family, again.Compatible[0])

	lex := tbl.Lexicon()
	lex.FormalWords[0] = "mutated"
	assert.Equal(t, "уважаемый", tbl.Lexicon().FormalWords[0])
}

func TestLoad_KeepsDefaultScoring(t *testing.T) {
	data := []byte(`
contexts:
  - id: friendly
    keywords: [друг]
    typical_length: short
`)
	tbl, err := Load(data)
	require.NoError(t, err)
	assert.Equal(t, DefaultScoring(), tbl.Scoring())
	assert.NotEmpty(t, tbl.Warnings())

	def, _ := tbl.Definition(Friendly)
	assert.Equal(t, "neutral", def.Tone)
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	_, err := Load([]byte("contexts: []\nflavour: spicy\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse rule table")
}

func TestLoad_EmptyDocument(t *testing.T) {
	tbl, err := Load(nil)
	require.NoError(t, err)
	assert.Zero(t, tbl.Len())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, DefaultYAML(), 0644))

	tbl, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5, tbl.Len())

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestIssueString(t *testing.T) {
	it := Issue{Level: IssueError, Path: "contexts[family]", Field: "keywords", Message: "keyword set must not be empty"}
	assert.Equal(t, "[error] contexts[family] (keywords): keyword set must not be empty", it.String())

	it.Field = ""
	assert.True(t, strings.HasPrefix(it.String(), "[error] contexts[family]: "))
}

func TestValidationError_HasErrors(t *testing.T) {
	var nilErr *ValidationError
	assert.False(t, nilErr.HasErrors())

	warnOnly := &ValidationError{Issues: []Issue{{Level: IssueWarning, Path: "x", Message: "y"}}}
	assert.False(t, warnOnly.HasErrors())

	assert.True(t, Validate(nil).HasErrors())
}
