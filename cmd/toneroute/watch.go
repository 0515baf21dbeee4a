package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"toneroute/internal/rules"
)

var (
	watchDebounce time.Duration
	watchTimeout  time.Duration
)

// rulesWatchCmd re-checks a rule file on every save
var rulesWatchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Re-validate a rule table file whenever it changes",
	Long: `Watches a rule table file and prints a check result after every change
until interrupted (or until --timeout elapses).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRulesWatch,
}

func registerWatchFlags() {
	rulesWatchCmd.Flags().DurationVar(&watchDebounce, "debounce", rules.DefaultDebounce, "Quiet period before reloading")
	rulesWatchCmd.Flags().DurationVar(&watchTimeout, "timeout", 0, "Stop after this long (0: run until interrupted)")
}

func runRulesWatch(cmd *cobra.Command, args []string) error {
	path := cfg.Rules.Path
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("no rule table file to watch (pass a path or --rules)")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if watchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, watchTimeout)
		defer cancel()
	}

	emit := func(res checkResult) {
		var err error
		if pretty {
			err = renderCheck(cmd.OutOrStdout(), res)
		} else {
			err = writeJSON(cmd.OutOrStdout(), res)
		}
		if err != nil {
			logger.Warn("failed to write check result", zap.Error(err))
		}
	}

	w, err := rules.NewWatcher(path, watchDebounce,
		func(t *rules.Table) {
			issues := make([]string, 0, len(t.Warnings()))
			for _, it := range t.Warnings() {
				issues = append(issues, it.String())
			}
			logger.Info("rule table reloaded", zap.String("source", path), zap.Int("contexts", t.Len()))
			emit(checkResult{Source: path, Valid: true, Contexts: t.Len(), Issues: issues})
		},
		func(err error) {
			logger.Warn("rule table rejected", zap.String("source", path), zap.Error(err))
			emit(checkResult{Source: path, Issues: []string{err.Error()}})
		},
	)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}
