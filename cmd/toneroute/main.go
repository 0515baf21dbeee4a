package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"toneroute/internal/config"
	"toneroute/internal/engine"
	"toneroute/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
	rulesPath  string
	prefsPath  string
	pretty     bool
	workers    int

	// Logger
	logger *zap.Logger

	// Per-invocation state
	cfg       *config.Config
	requestID string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "toneroute",
	Short: "toneroute - rule-driven context and style classifier",
	Long: `toneroute decides which communication register fits a message
(professional, family, romantic, friendly, creative) and derives a numeric
style profile used to parameterize responses.

All decisions come from a declarative rule table. The embedded default table
is used unless --rules or TONEROUTE_RULES points at a YAML file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		requestID = uuid.NewString()
		logger = logger.With(zap.String("request_id", requestID), zap.String("command", cmd.Name()))

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if rulesPath != "" {
			cfg.Rules.Path = rulesPath
		}
		if prefsPath != "" {
			cfg.Preferences.Path = prefsPath
		}
		if cmd.Flags().Changed("workers") {
			cfg.Signature.Workers = workers
		}
		if verbose {
			cfg.Logging.DebugMode = true
			cfg.Logging.Level = "debug"
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if err := logging.Initialize(cfg.Logging.Options()); err != nil {
			return fmt.Errorf("failed to initialize category logging: %w", err)
		}
		if logging.IsDebugMode() {
			logger.Debug("category logging enabled",
				zap.String("level", cfg.Logging.Level),
				zap.Any("categories", cfg.Logging.Categories))
			logging.Get(logging.CategoryCLI).Debug("command %s started (request_id=%s)", cmd.Name(), requestID)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&rulesPath, "rules", "", "Rule table file (default: embedded table)")
	rootCmd.PersistentFlags().StringVar(&prefsPath, "prefs", "", "Per-user preferences file (JSON)")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "Render human-readable output instead of JSON")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 4, "Parallel analyze calls for signature")

	registerRouteFlags()
	registerAnalyzeFlags()
	registerSignatureFlags()
	registerValidateFlags()
	registerSuggestFlags()
	registerBatteryFlags()
	registerWatchFlags()

	rulesCmd.AddCommand(rulesCheckCmd, rulesWatchCmd)
	prefsCmd.AddCommand(prefsShowCmd, prefsListCmd)

	// Add commands to root
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(signatureCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(contextsCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(prefsCmd)
	rootCmd.AddCommand(batteryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadEngine builds the engine from the resolved configuration.
func loadEngine() (*engine.Engine, error) {
	e, err := engine.FromConfig(cfg)
	if err != nil {
		logger.Error("engine load failed", zap.Error(err))
		return nil, err
	}
	return e, nil
}
