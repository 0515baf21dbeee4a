package router

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toneroute/internal/rules"
	"toneroute/internal/signals"
)

func newRouter(t *testing.T) *Router {
	t.Helper()
	r, err := NewRouter(rules.MustDefault())
	require.NoError(t, err)
	return r
}

func scoreOf(t *testing.T, route Route, id rules.ContextID) float64 {
	t.Helper()
	for _, s := range route.Scores {
		if s.Context == id {
			return s.Score
		}
	}
	t.Fatalf("no score for %s", id)
	return 0
}

func TestNewRouter_NilTable(t *testing.T) {
	_, err := NewRouter(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, rules.ErrNilTable))
}

func TestRoute_RomanticGreeting(t *testing.T) {
	r := newRouter(t)
	route, err := r.Route(Request{Message: "Привет, дорогой, очень скучаю ❤️"})
	require.NoError(t, err)

	assert.Equal(t, rules.Romantic, route.PrimaryContext)
	assert.InDelta(t, 0.12, route.Confidence, 1e-9)
	assert.Greater(t, route.Confidence, 0.0)
	assert.Less(t, route.Confidence, 1.0)
	assert.Empty(t, route.SecondaryContexts)
	assert.Equal(t, ReasonKeyword, route.Reasoning)

	want := Suggestions{
		Tone:       "tender_affectionate",
		Length:     "medium",
		EmojiLimit: 2,
		KeyPhrases: []string{"Привет, мой дорогой", "Скучаю по тебе", "Люблю тебя", "Ты у меня самый лучший"},
		Avoid:      []string{},
	}
	if diff := cmp.Diff(want, route.Suggestions); diff != "" {
		t.Fatalf("suggestions mismatch (-want +got):\n%s", diff)
	}
}

func TestRoute_Deadline(t *testing.T) {
	r := newRouter(t)
	route, err := r.Route(Request{Message: "Завтра дедлайн по отчету"})
	require.NoError(t, err)

	assert.Equal(t, rules.Professional, route.PrimaryContext)
	assert.InDelta(t, 0.24, route.Confidence, 1e-9)
	assert.Equal(t, []string{"люблю", "обнимаю", "целую"}, route.Suggestions.Avoid)
	assert.Equal(t, "formal_respectful", route.Suggestions.Tone)
}

func TestRoute_ReducesToKeywordAndAvoidTerms(t *testing.T) {
	r := newRouter(t)
	route, err := r.Route(Request{Message: "работа и люблю"})
	require.NoError(t, err)

	// professional: 0.4*0.3 - 0.2*0.2; romantic: 0.4*0.3
	assert.InDelta(t, 0.08, scoreOf(t, route, rules.Professional), 1e-9)
	assert.InDelta(t, 0.12, scoreOf(t, route, rules.Romantic), 1e-9)
	assert.InDelta(t, 0.0, scoreOf(t, route, rules.Family), 1e-9)
	assert.InDelta(t, 0.0, scoreOf(t, route, rules.Friendly), 1e-9)
	assert.InDelta(t, 0.0, scoreOf(t, route, rules.Creative), 1e-9)

	assert.Equal(t, rules.Romantic, route.PrimaryContext)
	assert.Equal(t, []rules.ContextID{rules.Professional}, route.SecondaryContexts)
}

func TestRoute_KeywordScoreCapped(t *testing.T) {
	r := newRouter(t)
	route, err := r.Route(Request{Message: "работа проект задача встреча коллега"})
	require.NoError(t, err)

	assert.Equal(t, rules.Professional, route.PrimaryContext)
	assert.InDelta(t, 0.4, route.Confidence, 1e-9)
}

func TestRoute_HistoryBoost(t *testing.T) {
	r := newRouter(t)
	route, err := r.Route(Request{Message: "привет", History: []string{"мама", "папа"}})
	require.NoError(t, err)

	assert.Equal(t, rules.Family, route.PrimaryContext)
	assert.InDelta(t, 0.09, route.Confidence, 1e-9)
	assert.Equal(t, ReasonHistory, route.Reasoning)
}

func TestRoute_KeywordReasonFollowsQuickDetect(t *testing.T) {
	r := newRouter(t)
	route, err := r.Route(Request{
		Message:     "идея",
		History:     []string{"отчет", "встреча по работе"},
		Preferences: &signals.Preferences{Favored: []rules.ContextID{rules.Professional}},
		Time:        &signals.TimeInfo{Hour: 9},
	})
	require.NoError(t, err)

	assert.Equal(t, rules.Professional, route.PrimaryContext)
	assert.True(t, route.Signals.Message.HasKeyword)
	assert.Equal(t, rules.Creative, route.Signals.Message.DetectedContext)
	assert.Equal(t, ReasonKeyword+"; "+ReasonHistory+"; "+ReasonTime, route.Reasoning)
}

func TestRoute_TimePreference(t *testing.T) {
	r := newRouter(t)
	route, err := r.Route(Request{Message: "привет", Time: &signals.TimeInfo{Hour: 20}})
	require.NoError(t, err)

	assert.Equal(t, rules.Family, route.PrimaryContext)
	assert.InDelta(t, 0.02, route.Confidence, 1e-9)
	assert.Equal(t, []rules.ContextID{rules.Romantic}, route.SecondaryContexts)
	assert.Equal(t, ReasonTime, route.Reasoning)
}

func TestRoute_NightRelaxesTone(t *testing.T) {
	r := newRouter(t)
	route, err := r.Route(Request{Message: "Привет!", Time: &signals.TimeInfo{Hour: 2}})
	require.NoError(t, err)

	assert.Equal(t, rules.Romantic, route.PrimaryContext)
	assert.Equal(t, "more_relaxed", route.Suggestions.Tone)
	assert.Equal(t, ResponseReaction, route.Suggestions.ResponseType)
}

func TestRoute_NightKeepsProfessionalTone(t *testing.T) {
	r := newRouter(t)
	route, err := r.Route(Request{Message: "дедлайн", Time: &signals.TimeInfo{Hour: 1}})
	require.NoError(t, err)

	assert.Equal(t, rules.Professional, route.PrimaryContext)
	assert.Equal(t, "formal_respectful", route.Suggestions.Tone)
}

func TestRoute_EnthusiasticFriendly(t *testing.T) {
	r := newRouter(t)
	route, err := r.Route(Request{Message: "Идём в кино!"})
	require.NoError(t, err)

	assert.Equal(t, rules.Friendly, route.PrimaryContext)
	assert.Equal(t, "enthusiastic_casual_friendly", route.Suggestions.Tone)
	assert.Equal(t, ResponseReaction, route.Suggestions.ResponseType)
}

func TestRoute_QuestionWantsAnswer(t *testing.T) {
	r := newRouter(t)
	route, err := r.Route(Request{Message: "Пойдём в кино?!"})
	require.NoError(t, err)
	assert.Equal(t, ResponseAnswer, route.Suggestions.ResponseType)
}

func TestRoute_Preferences(t *testing.T) {
	r := newRouter(t)

	route, err := r.Route(Request{
		Message:     "привет",
		Preferences: &signals.Preferences{Favored: []rules.ContextID{rules.Creative}},
	})
	require.NoError(t, err)
	assert.Equal(t, rules.Creative, route.PrimaryContext)
	assert.InDelta(t, 0.06, route.Confidence, 1e-9)

	route, err = r.Route(Request{
		Message:     "работа",
		Preferences: &signals.Preferences{Avoided: []rules.ContextID{rules.Professional}},
	})
	require.NoError(t, err)
	assert.Equal(t, rules.Professional, route.PrimaryContext)
	assert.Equal(t, []rules.ContextID{rules.Professional}, route.Signals.Preferences.Avoided)
}

func TestRoute_AllZeroKeepsTableOrder(t *testing.T) {
	r := newRouter(t)
	route, err := r.Route(Request{Message: "ок"})
	require.NoError(t, err)

	assert.Equal(t, rules.Professional, route.PrimaryContext)
	assert.Equal(t, 0.0, route.Confidence)
	assert.Equal(t, ReasonGeneral, route.Reasoning)
	assert.Equal(t, []rules.ContextID{rules.Family}, route.SecondaryContexts)
}

func TestRoute_MaxSecondaryTwo(t *testing.T) {
	doc, err := rules.Parse(rules.DefaultYAML())
	require.NoError(t, err)
	doc.Scoring.MaxSecondary = 2
	tbl, err := rules.New(doc)
	require.NoError(t, err)
	r, err := NewRouter(tbl)
	require.NoError(t, err)

	route, err := r.Route(Request{Message: "ок"})
	require.NoError(t, err)
	assert.Equal(t, []rules.ContextID{rules.Family, rules.Romantic}, route.SecondaryContexts)
}

func TestRoute_EmptyTableFallsBack(t *testing.T) {
	doc, err := rules.Parse(rules.DefaultYAML())
	require.NoError(t, err)
	doc.Contexts = nil
	tbl, err := rules.New(doc)
	require.NoError(t, err)
	r, err := NewRouter(tbl)
	require.NoError(t, err)

	route, err := r.Route(Request{Message: "работа"})
	require.NoError(t, err)
	assert.Equal(t, rules.Friendly, route.PrimaryContext)
	assert.Equal(t, 0.5, route.Confidence)
	assert.Empty(t, route.SecondaryContexts)
	assert.Equal(t, ReasonGeneral, route.Reasoning)
}

func TestRoute_InvalidUTF8(t *testing.T) {
	r := newRouter(t)
	_, err := r.Route(Request{Message: "bad \xff byte"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidMessage))
}

func TestRoute_Properties(t *testing.T) {
	r := newRouter(t)
	messages := []string{
		"",
		"ок",
		"работа проект задача встреча коллега начальник дедлайн отчет презентация бизнес",
		"люблю обнимаю целую ха-ха",
		"мама папа кино кафе идея музыка",
		"Привет! Как дела? 😊",
		"уважаемый коллега, протокол встречи",
	}
	times := []*signals.TimeInfo{nil, {Hour: 2}, {Hour: 9, Weekday: signals.Weekday(6)}, {Hour: 19, IsHoliday: true}}
	prefs := []*signals.Preferences{nil, {Favored: rules.KnownContexts}}

	for _, m := range messages {
		for _, ti := range times {
			for _, p := range prefs {
				route, err := r.Route(Request{Message: m, History: []string{"мама", "кино"}, Time: ti, Preferences: p})
				require.NoError(t, err)
				if route.Confidence < 0 || route.Confidence > 1 {
					t.Fatalf("confidence %v out of range for %q", route.Confidence, m)
				}
				for _, s := range route.SecondaryContexts {
					if s == route.PrimaryContext {
						t.Fatalf("secondary contains primary %s for %q", s, m)
					}
				}
				assert.LessOrEqual(t, len(route.SecondaryContexts), 2)
				assert.LessOrEqual(t, len(route.Suggestions.KeyPhrases), 4)
				assert.LessOrEqual(t, len(route.Suggestions.Avoid), 3)
			}
		}
	}
}

func TestRoute_ConcurrentCallsAgree(t *testing.T) {
	r := newRouter(t)
	req := Request{Message: "Привет, дорогой, очень скучаю ❤️", History: []string{"люблю"}}
	want, err := r.Route(req)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.Route(req)
			if err != nil {
				errs <- err.Error()
				return
			}
			if diff := cmp.Diff(want, got); diff != "" {
				errs <- diff
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Fatal(e)
	}
}

func TestSuggest(t *testing.T) {
	r := newRouter(t)

	got, err := r.Suggest("Люблю кино и кафе 😊", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, rules.Friendly, got[0].Context)
	assert.InDelta(t, 0.8, got[0].Score, 1e-9)
	assert.Equal(t, []string{"кафе", "кино"}, got[0].MatchedKeywords)
	assert.Equal(t, "Дружеское общение", got[0].Description)

	assert.Equal(t, rules.Romantic, got[1].Context)
	assert.InDelta(t, 0.3, got[1].Score, 1e-9)

	top, err := r.Suggest("Люблю кино и кафе 😊", 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, rules.Friendly, top[0].Context)
}

func TestSuggest_EmptyAndInvalid(t *testing.T) {
	r := newRouter(t)

	got, err := r.Suggest("   ", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)

	_, err = r.Suggest("\xfe", 3)
	assert.True(t, errors.Is(err, ErrInvalidMessage))
}

func TestSuggest_EmojiOnly(t *testing.T) {
	r := newRouter(t)
	got, err := r.Suggest("😘", 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rules.Romantic, got[0].Context)
	assert.Empty(t, got[0].MatchedKeywords)
}
