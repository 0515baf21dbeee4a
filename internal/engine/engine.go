// Package engine wires a single rule table into every classifier.
package engine

import (
	"context"
	"fmt"

	"toneroute/internal/config"
	"toneroute/internal/logging"
	"toneroute/internal/router"
	"toneroute/internal/rules"
	"toneroute/internal/signature"
	"toneroute/internal/style"
	"toneroute/internal/transition"
)

// Engine is safe for concurrent use.
type Engine struct {
	table      *rules.Table
	router     *router.Router
	analyzer   *style.Analyzer
	aggregator *signature.Aggregator
	validator  *transition.Validator
}

// New builds an engine over table.
func New(table *rules.Table, cfg config.SignatureConfig) (*Engine, error) {
	if table == nil {
		return nil, fmt.Errorf("engine: %w", rules.ErrNilTable)
	}
	r, err := router.NewRouter(table)
	if err != nil {
		return nil, err
	}
	a, err := style.NewAnalyzer(table)
	if err != nil {
		return nil, err
	}
	agg, err := signature.NewAggregator(table, cfg)
	if err != nil {
		return nil, err
	}
	v, err := transition.NewValidator(table)
	if err != nil {
		return nil, err
	}
	return &Engine{table: table, router: r, analyzer: a, aggregator: agg, validator: v}, nil
}

// FromConfig loads the configured rule table, or the embedded default when
// no path is set, and builds an engine over it.
func FromConfig(cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	var (
		table *rules.Table
		err   error
	)
	if cfg.Rules.Path != "" {
		table, err = rules.LoadFile(cfg.Rules.Path)
	} else {
		table, err = rules.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rule table: %w", err)
	}
	logging.Boot("engine ready: %d contexts (source=%s)", table.Len(), source(cfg.Rules.Path))
	return New(table, cfg.Signature)
}

func source(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}

// Table returns the shared rule table.
func (e *Engine) Table() *rules.Table { return e.table }

// Route picks the context for a message.
func (e *Engine) Route(req router.Request) (router.Route, error) {
	return e.router.Route(req)
}

// Suggest lists the n best-matching contexts for a message.
func (e *Engine) Suggest(message string, n int) ([]router.ContextSuggestion, error) {
	return e.router.Suggest(message, n)
}

// Analyze profiles the style of a message.
func (e *Engine) Analyze(text string, known rules.ContextID) style.Analysis {
	return e.analyzer.Analyze(text, known)
}

// Signature aggregates the style of a corpus.
func (e *Engine) Signature(ctx context.Context, messages []string, id rules.ContextID) (signature.Signature, error) {
	return e.aggregator.Signature(ctx, messages, id)
}

// Validate checks a context switch.
func (e *Engine) Validate(current, proposed rules.ContextID, history []string) (bool, string) {
	return e.validator.Validate(current, proposed, history)
}
