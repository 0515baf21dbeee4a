package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"toneroute/internal/router"
	"toneroute/internal/rules"
	"toneroute/internal/signature"
	"toneroute/internal/style"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FF7F"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")).Width(20)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF"))
	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FF7F"))
	badStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F5F"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func row(label string, value interface{}) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(fmt.Sprint(value)))
}

func box(w io.Writer, title string, rows ...string) error {
	body := lipgloss.JoinVertical(lipgloss.Left, append([]string{titleStyle.Render(title)}, rows...)...)
	_, err := fmt.Fprintln(w, boxStyle.Render(body))
	return err
}

func joinIDs(ids []rules.ContextID) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}

func joinOrDash(ss []string) string {
	if len(ss) == 0 {
		return "-"
	}
	return strings.Join(ss, ", ")
}

func renderRoute(w io.Writer, r router.Route) error {
	rows := []string{
		row("primary", r.PrimaryContext),
		row("secondary", joinIDs(r.SecondaryContexts)),
		row("confidence", fmt.Sprintf("%.2f", r.Confidence)),
		row("reasoning", r.Reasoning),
		row("tone", r.Suggestions.Tone),
		row("length", r.Suggestions.Length),
		row("emoji limit", r.Suggestions.EmojiLimit),
		row("key phrases", joinOrDash(r.Suggestions.KeyPhrases)),
		row("avoid", joinOrDash(r.Suggestions.Avoid)),
	}
	if r.Suggestions.ResponseType != "" {
		rows = append(rows, row("response type", r.Suggestions.ResponseType))
	}
	for _, s := range r.Scores {
		rows = append(rows, row("score "+string(s.Context), fmt.Sprintf("%+.3f", s.Score)))
	}
	return box(w, "Route", rows...)
}

func renderAnalysis(w io.Writer, a style.Analysis) error {
	ch := a.Characteristics
	rows := []string{
		row("context", a.DetectedContext),
		row("confidence", fmt.Sprintf("%.2f", a.Confidence)),
		row("formality", fmt.Sprintf("%.2f", ch.Formality)),
		row("emotionality", fmt.Sprintf("%.2f", ch.Emotionality)),
		row("humor", fmt.Sprintf("%.2f", ch.HumorLevel)),
		row("emoji frequency", fmt.Sprintf("%.2f", ch.EmojiFrequency)),
		row("length", ch.LengthClass),
		row("words", ch.WordCount),
	}
	if a.Override != "" {
		rows = append(rows, row("override", a.Override))
	}
	if s := a.Suggested; s != nil {
		rows = append(rows,
			row("suggested tone", s.Tone),
			row("emoji limit", s.EmojiLimit),
			row("key phrases", joinOrDash(s.KeyPhrases)),
		)
	}
	return box(w, "Style", rows...)
}

func renderSignature(w io.Writer, s signature.Signature) error {
	words := make([]string, len(s.CommonWords))
	for i, f := range s.CommonWords {
		words[i] = fmt.Sprintf("%s (%d)", f.Text, f.Count)
	}
	phrases := make([]string, len(s.CommonPhrases))
	for i, f := range s.CommonPhrases {
		phrases[i] = fmt.Sprintf("%s (%d)", f.Text, f.Count)
	}
	return box(w, "Signature: "+string(s.Context),
		row("label", s.Label),
		row("messages", s.MessageCount),
		row("formality", fmt.Sprintf("%.2f", s.Averages.Formality)),
		row("emotionality", fmt.Sprintf("%.2f", s.Averages.Emotionality)),
		row("humor", fmt.Sprintf("%.2f", s.Averages.HumorLevel)),
		row("avg words", fmt.Sprintf("%.1f", s.Averages.WordCount)),
		row("common words", joinOrDash(words)),
		row("common phrases", joinOrDash(phrases)),
	)
}

func renderTransition(w io.Writer, t transitionResult) error {
	verdict := okStyle.Render("allowed")
	if !t.Allowed {
		verdict = badStyle.Render("blocked")
	}
	return box(w, fmt.Sprintf("%s -> %s", t.From, t.To),
		lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render("verdict"), verdict),
		row("reason", t.Reason),
	)
}

func renderSuggestions(w io.Writer, out []router.ContextSuggestion) error {
	if len(out) == 0 {
		return box(w, "Suggestions", valueStyle.Render("no context evidence"))
	}
	rows := make([]string, 0, len(out))
	for _, s := range out {
		rows = append(rows, row(string(s.Context), fmt.Sprintf("%.2f  %s  [%s]", s.Score, s.Description, joinOrDash(s.MatchedKeywords))))
	}
	return box(w, "Suggestions", rows...)
}

func renderContexts(w io.Writer, infos []contextInfo) error {
	rows := make([]string, 0, len(infos))
	for _, c := range infos {
		rows = append(rows, row(string(c.ID), fmt.Sprintf("%s | %s | -> %s", c.Description, c.Tone, joinIDs(c.Compatible))))
	}
	return box(w, "Contexts", rows...)
}

func renderCheck(w io.Writer, c checkResult) error {
	verdict := okStyle.Render("valid")
	if !c.Valid {
		verdict = badStyle.Render("invalid")
	}
	rows := []string{
		lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render("verdict"), verdict),
		row("source", c.Source),
		row("contexts", c.Contexts),
	}
	for _, it := range c.Issues {
		rows = append(rows, valueStyle.Render(it))
	}
	return box(w, "Rule table", rows...)
}

func renderPreferences(w io.Writer, up userPreferences) error {
	if !up.Found {
		return box(w, "Preferences: "+up.User, valueStyle.Render("no stored preferences"))
	}
	style := up.Preferences.Style
	if style == "" {
		style = "-"
	}
	return box(w, "Preferences: "+up.User,
		row("favored", joinIDs(up.Preferences.Favored)),
		row("avoided", joinIDs(up.Preferences.Avoided)),
		row("style", style),
	)
}

func renderBattery(w io.Writer, r batteryReport) error {
	rows := []string{
		row("source", r.Source),
		row("passed", fmt.Sprintf("%d/%d", r.Total-r.Failed, r.Total)),
	}
	for _, res := range r.Results {
		verdict := okStyle.Render("PASS")
		detail := res.Output
		if !res.Success {
			verdict = badStyle.Render("FAIL")
			detail = res.Error
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(res.CaseID), verdict, valueStyle.Render(" "+detail)))
	}
	return box(w, "Battery", rows...)
}
