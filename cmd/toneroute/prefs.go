package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"toneroute/internal/signals"
	"toneroute/internal/ux"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Inspect per-user routing preferences",
	Long: `Routing preferences are read from a JSON file named by --prefs,
TONEROUTE_PREFS or preferences.path in the config file.`,
}

var prefsShowCmd = &cobra.Command{
	Use:   "show [user]",
	Short: "Print a user's stored preferences",
	Args:  cobra.ExactArgs(1),
	RunE:  runPrefsShow,
}

var prefsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users with stored preferences",
	Args:  cobra.NoArgs,
	RunE:  runPrefsList,
}

// openPreferences loads the configured preferences store.
func openPreferences() (*ux.PreferencesManager, error) {
	if cfg.Preferences.Path == "" {
		return nil, fmt.Errorf("no preferences file configured (use --prefs or TONEROUTE_PREFS)")
	}
	pm := ux.NewPreferencesManager(cfg.Preferences.Path)
	if err := pm.Load(); err != nil {
		return nil, err
	}
	return pm, nil
}

// userPreferences is the prefs show output.
type userPreferences struct {
	User        string              `json:"user"`
	Found       bool                `json:"found"`
	Preferences signals.Preferences `json:"preferences"`
}

func runPrefsShow(cmd *cobra.Command, args []string) error {
	pm, err := openPreferences()
	if err != nil {
		return err
	}
	prefs, ok := pm.Get(args[0])
	return printPreferences(cmd.OutOrStdout(), userPreferences{User: args[0], Found: ok, Preferences: prefs})
}

func runPrefsList(cmd *cobra.Command, args []string) error {
	pm, err := openPreferences()
	if err != nil {
		return err
	}
	users := pm.Users()
	if pretty {
		return box(cmd.OutOrStdout(), "Users", valueStyle.Render(joinOrDash(users)))
	}
	return writeJSON(cmd.OutOrStdout(), users)
}

func printPreferences(w io.Writer, up userPreferences) error {
	if pretty {
		return renderPreferences(w, up)
	}
	return writeJSON(w, up)
}
