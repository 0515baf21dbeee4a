package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"toneroute/internal/regression"
)

var batteryFailFast bool

// batteryCmd runs a regression battery against the configured rule table
var batteryCmd = &cobra.Command{
	Use:   "battery [path]",
	Short: "Run a regression battery (default: the embedded battery)",
	Long: `Runs route, analyze and transition cases from a YAML battery and reports
each outcome. Exits non-zero when any case fails.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBattery,
}

func registerBatteryFlags() {
	batteryCmd.Flags().BoolVar(&batteryFailFast, "fail-fast", false, "Stop at the first failing case")
}

// batteryReport is the battery command output.
type batteryReport struct {
	Source  string              `json:"source"`
	Total   int                 `json:"total"`
	Failed  int                 `json:"failed"`
	Results []regression.Result `json:"results"`
}

func runBattery(cmd *cobra.Command, args []string) error {
	e, err := loadEngine()
	if err != nil {
		return err
	}

	report := batteryReport{Source: "embedded"}
	b := regression.DefaultBattery()
	if len(args) == 1 {
		report.Source = args[0]
		b, err = regression.LoadBattery(args[0])
		if err != nil {
			return fmt.Errorf("failed to load battery %s: %w", args[0], err)
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	results, err := regression.RunBattery(ctx, e, b, batteryFailFast)
	if err != nil {
		return err
	}
	if results == nil {
		results = []regression.Result{}
	}
	report.Results = results
	report.Total = len(results)
	report.Failed = regression.Failed(results)
	logger.Info("battery finished", zap.Int("total", report.Total), zap.Int("failed", report.Failed))

	if pretty {
		err = renderBattery(cmd.OutOrStdout(), report)
	} else {
		err = writeJSON(cmd.OutOrStdout(), report)
	}
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d battery cases failed", report.Failed, report.Total)
	}
	return nil
}
