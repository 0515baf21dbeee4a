// Package textutil holds the text primitives shared by the classifiers:
// case folding for the working language, keyword containment, emoji counting
// and tokenization.
package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Folder normalizes text for case-insensitive matching in one language.
// The zero value folds with language.Und.
type Folder struct {
	tag language.Tag
}

// NewFolder returns a Folder for the BCP 47 tag. Unparseable tags fall back to Und.
func NewFolder(tag string) Folder {
	t, err := language.Parse(tag)
	if err != nil {
		t = language.Und
	}
	return Folder{tag: t}
}

// Tag returns the folding language.
func (f Folder) Tag() language.Tag {
	return f.tag
}

// Fold returns s in NFC form, lower-cased.
// A cases.Caser is stateful, so one is built per call.
func (f Folder) Fold(s string) string {
	return cases.Lower(f.tag).String(norm.NFC.String(s))
}

// FoldAll folds every entry of words.
func (f Folder) FoldAll(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = f.Fold(w)
	}
	return out
}

// CountContained counts the keywords that occur in folded at least once.
// Each keyword adds one regardless of how often it repeats.
func CountContained(folded string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if kw != "" && strings.Contains(folded, kw) {
			n++
		}
	}
	return n
}

// MatchedKeywords returns the keywords that occur in folded, in keyword order.
func MatchedKeywords(folded string, keywords []string) []string {
	var out []string
	for _, kw := range keywords {
		if kw != "" && strings.Contains(folded, kw) {
			out = append(out, kw)
		}
	}
	return out
}

// FirstContained returns the first keyword (in slice order) contained in folded.
func FirstContained(folded string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(folded, kw) {
			return kw, true
		}
	}
	return "", false
}

// ContainsAny reports whether any keyword occurs in folded.
func ContainsAny(folded string, keywords []string) bool {
	_, ok := FirstContained(folded, keywords)
	return ok
}

// emojiRanges are the pictograph blocks counted as emoji.
var emojiRanges = &unicode.RangeTable{
	R32: []unicode.Range32{
		{Lo: 0x1F1E0, Hi: 0x1F1FF, Stride: 1}, // regional indicators
		{Lo: 0x1F300, Hi: 0x1F5FF, Stride: 1}, // symbols & pictographs
		{Lo: 0x1F600, Hi: 0x1F64F, Stride: 1}, // emoticons
		{Lo: 0x1F680, Hi: 0x1F6FF, Stride: 1}, // transport & map
	},
}

// IsEmoji reports whether r falls in a counted emoji block.
func IsEmoji(r rune) bool {
	return unicode.Is(emojiRanges, r)
}

// CountEmojis counts code points in the emoji blocks.
func CountEmojis(s string) int {
	n := 0
	for _, r := range s {
		if IsEmoji(r) {
			n++
		}
	}
	return n
}

// RuneLen returns the number of code points in s.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// Words splits s on whitespace.
func Words(s string) []string {
	return strings.Fields(s)
}

// TrimToken strips leading and trailing punctuation and symbols, keeping inner hyphens.
func TrimToken(tok string) string {
	return strings.TrimFunc(tok, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}

// LetterTokens returns maximal runs of letters holding at least minLen runes.
func LetterTokens(s string, minLen int) []string {
	var out []string
	start := -1
	runes := 0
	flush := func(end int) {
		if start >= 0 && runes >= minLen {
			out = append(out, s[start:end])
		}
		start, runes = -1, 0
	}
	for i, r := range s {
		if unicode.IsLetter(r) {
			if start < 0 {
				start = i
			}
			runes++
			continue
		}
		flush(i)
	}
	flush(len(s))
	return out
}

// Clamp01 limits v to [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
