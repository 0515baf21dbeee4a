package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"toneroute/internal/router"
	"toneroute/internal/rules"
	"toneroute/internal/signals"
	"toneroute/internal/ux"
)

// route flags
var (
	routeHistory []string
	routeHour    int
	routeWeekday int
	routeHoliday bool
	routeFavor   []string
	routeAvoid   []string
	routeStyle   string
	routeUser    string
)

// analyze / signature / validate / suggest flags
var (
	analyzeContext   string
	signatureFile    string
	signatureContext string
	validateHistory  []string
	suggestLimit     int
)

// routeCmd routes a single message
var routeCmd = &cobra.Command{
	Use:   "route [message]",
	Short: "Pick the communication context for a message",
	Long: `Scores every context in the rule table against the message, the recent
dialog history, the time of day and user preferences.

Example:
  toneroute route --history "мама звонила" --hour 20 "Привет, как дела?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRoute,
}

// analyzeCmd analyzes the style of a message
var analyzeCmd = &cobra.Command{
	Use:   "analyze [text]",
	Short: "Derive the style profile of a message",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAnalyze,
}

// signatureCmd aggregates a corpus
var signatureCmd = &cobra.Command{
	Use:   "signature",
	Short: "Aggregate the style signature of a message corpus",
	Long: `Reads one message per line from --file (or stdin when omitted or "-")
and aggregates averaged characteristics, frequent words and phrases.`,
	Args: cobra.NoArgs,
	RunE: runSignature,
}

// validateCmd checks a context switch
var validateCmd = &cobra.Command{
	Use:   "validate [current] [proposed]",
	Short: "Check whether a context switch is allowed",
	Args:  cobra.ExactArgs(2),
	RunE:  runValidate,
}

// suggestCmd lists candidate contexts
var suggestCmd = &cobra.Command{
	Use:   "suggest [message]",
	Short: "List the contexts a message has evidence for",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSuggest,
}

// contextsCmd lists the rule table
var contextsCmd = &cobra.Command{
	Use:   "contexts",
	Short: "List the contexts defined in the rule table",
	Args:  cobra.NoArgs,
	RunE:  runContexts,
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Rule table utilities",
}

// rulesCheckCmd validates a rule file
var rulesCheckCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Validate a rule table file (default: the configured table)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRulesCheck,
}

func registerRouteFlags() {
	routeCmd.Flags().StringArrayVar(&routeHistory, "history", nil, "Previous dialog entry, oldest first (repeatable)")
	routeCmd.Flags().IntVar(&routeHour, "hour", -1, "Hour of day 0-23 (default: no time signal)")
	routeCmd.Flags().IntVar(&routeWeekday, "weekday", -1, "Weekday 0-6, Monday = 0")
	routeCmd.Flags().BoolVar(&routeHoliday, "holiday", false, "Today is a holiday")
	routeCmd.Flags().StringSliceVar(&routeFavor, "favor", nil, "Favored contexts")
	routeCmd.Flags().StringSliceVar(&routeAvoid, "avoid", nil, "Avoided contexts")
	routeCmd.Flags().StringVar(&routeStyle, "style", "", "Preferred style tag")
	routeCmd.Flags().StringVar(&routeUser, "user", "", "Apply stored preferences for this user (flags override them)")
}

func registerAnalyzeFlags() {
	analyzeCmd.Flags().StringVar(&analyzeContext, "context", "", "Known context (skips vocabulary scoring)")
}

func registerSignatureFlags() {
	signatureCmd.Flags().StringVarP(&signatureFile, "file", "f", "", "Corpus file, one message per line")
	signatureCmd.Flags().StringVar(&signatureContext, "context", "", "Context the corpus belongs to (required)")
	signatureCmd.MarkFlagRequired("context")
}

func registerValidateFlags() {
	validateCmd.Flags().StringArrayVar(&validateHistory, "history", nil, "Previous dialog entry, oldest first (repeatable)")
}

func registerSuggestFlags() {
	suggestCmd.Flags().IntVarP(&suggestLimit, "limit", "n", router.DefaultSuggestions, "Maximum suggestions")
}

func runRoute(cmd *cobra.Command, args []string) error {
	e, err := loadEngine()
	if err != nil {
		return err
	}

	req := router.Request{Message: joinArgs(args), History: routeHistory}
	if cmd.Flags().Changed("hour") {
		ti := &signals.TimeInfo{Hour: routeHour, IsHoliday: routeHoliday}
		if cmd.Flags().Changed("weekday") {
			ti.Weekday = signals.Weekday(routeWeekday)
		}
		req.Time = ti
	}
	explicit := signals.Preferences{
		Favored: toContextIDs(routeFavor),
		Avoided: toContextIDs(routeAvoid),
		Style:   routeStyle,
	}
	if routeUser != "" {
		pm, err := openPreferences()
		if err != nil {
			return err
		}
		stored, ok := pm.Get(routeUser)
		if !ok {
			logger.Warn("no stored preferences", zap.String("user", routeUser))
		}
		merged := ux.Merge(stored, explicit)
		req.Preferences = &merged
	} else if len(routeFavor) > 0 || len(routeAvoid) > 0 || routeStyle != "" {
		req.Preferences = &explicit
	}

	route, err := e.Route(req)
	if err != nil {
		return err
	}
	logger.Info("route decided",
		zap.String("primary", string(route.PrimaryContext)),
		zap.Float64("confidence", route.Confidence))

	if pretty {
		return renderRoute(cmd.OutOrStdout(), route)
	}
	return writeJSON(cmd.OutOrStdout(), route)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	e, err := loadEngine()
	if err != nil {
		return err
	}
	known := rules.ContextID(analyzeContext)
	if known != "" && !e.Table().Has(known) {
		return fmt.Errorf("unknown context %q", analyzeContext)
	}

	res := e.Analyze(joinArgs(args), known)
	logger.Info("style analyzed", zap.String("context", string(res.DetectedContext)))

	if pretty {
		return renderAnalysis(cmd.OutOrStdout(), res)
	}
	return writeJSON(cmd.OutOrStdout(), res)
}

func runSignature(cmd *cobra.Command, args []string) error {
	e, err := loadEngine()
	if err != nil {
		return err
	}
	id := rules.ContextID(signatureContext)
	if !id.Valid() {
		return fmt.Errorf("unknown context %q", signatureContext)
	}

	var in io.Reader = cmd.InOrStdin()
	if signatureFile != "" && signatureFile != "-" {
		f, err := os.Open(signatureFile)
		if err != nil {
			return fmt.Errorf("failed to open corpus: %w", err)
		}
		defer f.Close()
		in = f
	}
	messages, err := readLines(in)
	if err != nil {
		return fmt.Errorf("failed to read corpus: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	sig, err := e.Signature(ctx, messages, id)
	if err != nil {
		return err
	}
	logger.Info("signature built", zap.Int("messages", sig.MessageCount), zap.String("label", sig.Label))

	if pretty {
		return renderSignature(cmd.OutOrStdout(), sig)
	}
	return writeJSON(cmd.OutOrStdout(), sig)
}

// transitionResult is the validate command output.
type transitionResult struct {
	From    rules.ContextID `json:"from"`
	To      rules.ContextID `json:"to"`
	Allowed bool            `json:"allowed"`
	Reason  string          `json:"reason"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	e, err := loadEngine()
	if err != nil {
		return err
	}
	res := transitionResult{From: rules.ContextID(args[0]), To: rules.ContextID(args[1])}
	res.Allowed, res.Reason = e.Validate(res.From, res.To, validateHistory)
	logger.Info("transition checked", zap.Bool("allowed", res.Allowed))

	if pretty {
		return renderTransition(cmd.OutOrStdout(), res)
	}
	return writeJSON(cmd.OutOrStdout(), res)
}

func runSuggest(cmd *cobra.Command, args []string) error {
	e, err := loadEngine()
	if err != nil {
		return err
	}
	out, err := e.Suggest(joinArgs(args), suggestLimit)
	if err != nil {
		return err
	}
	logger.Info("suggestions listed", zap.Int("count", len(out)))

	if pretty {
		return renderSuggestions(cmd.OutOrStdout(), out)
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

// contextInfo is one row of the contexts command.
type contextInfo struct {
	ID          rules.ContextID   `json:"id"`
	Description string            `json:"description"`
	Tone        string            `json:"tone"`
	Length      rules.LengthClass `json:"typical_length"`
	EmojiLimit  int               `json:"emoji_limit"`
	Compatible  []rules.ContextID `json:"compatible"`
	Keywords    int               `json:"keywords"`
}

func runContexts(cmd *cobra.Command, args []string) error {
	e, err := loadEngine()
	if err != nil {
		return err
	}
	defs := e.Table().Definitions()
	out := make([]contextInfo, 0, len(defs))
	for _, d := range defs {
		compat := d.Compatible
		if compat == nil {
			compat = []rules.ContextID{}
		}
		out = append(out, contextInfo{
			ID:          d.ID,
			Description: d.Description,
			Tone:        d.Tone,
			Length:      d.TypicalLength,
			EmojiLimit:  d.EmojiLimit,
			Compatible:  compat,
			Keywords:    len(d.Keywords),
		})
	}

	if pretty {
		return renderContexts(cmd.OutOrStdout(), out)
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

// checkResult is the rules check output.
type checkResult struct {
	Source   string   `json:"source"`
	Valid    bool     `json:"valid"`
	Contexts int      `json:"contexts"`
	Issues   []string `json:"issues"`
}

func runRulesCheck(cmd *cobra.Command, args []string) error {
	path := cfg.Rules.Path
	if len(args) == 1 {
		path = args[0]
	}

	res := checkResult{Source: "embedded", Issues: []string{}}
	data := rules.DefaultYAML()
	if path != "" {
		res.Source = path
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read rule table %s: %w", path, err)
		}
	}

	doc, err := rules.Parse(data)
	if err != nil {
		res.Issues = append(res.Issues, err.Error())
	} else {
		for _, it := range rules.Validate(&doc).Issues {
			res.Issues = append(res.Issues, it.String())
		}
		if t, err := rules.New(doc); err == nil {
			res.Valid = true
			res.Contexts = t.Len()
		}
	}
	logger.Info("rule table checked", zap.String("source", res.Source), zap.Bool("valid", res.Valid))

	if pretty {
		err = renderCheck(cmd.OutOrStdout(), res)
	} else {
		err = writeJSON(cmd.OutOrStdout(), res)
	}
	if err != nil {
		return err
	}
	if !res.Valid {
		return fmt.Errorf("rule table %s is invalid", res.Source)
	}
	return nil
}

// joinArgs joins positional arguments into one message.
func joinArgs(args []string) string {
	return strings.Join(args, " ")
}

func toContextIDs(ss []string) []rules.ContextID {
	if len(ss) == 0 {
		return nil
	}
	out := make([]rules.ContextID, 0, len(ss))
	for _, s := range ss {
		out = append(out, rules.ContextID(strings.TrimSpace(s)))
	}
	return out
}

// readLines returns the non-blank lines of r.
func readLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	return out, sc.Err()
}
