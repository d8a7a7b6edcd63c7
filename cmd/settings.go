package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tma-generator/generator"
	"tma-generator/models"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the saved settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := current.store.Load(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		values := s.ToMap()
		for _, key := range models.SettingsKeys {
			fmt.Fprintf(cmd.OutOrStdout(), "%-9s %s\n", key, values[key])
		}
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:     "set key=value...",
	Short:   "Change one or more settings and save them",
	Example: `  tmagen settings set course=M208 tma_ref=02 "cod=14 March 2026"`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := current.store.Load(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		for _, arg := range args {
			key, value, ok := strings.Cut(arg, "=")
			if !ok {
				return fmt.Errorf("expected key=value, got %q", arg)
			}
			if err := s.Set(strings.TrimSpace(key), value); err != nil {
				return err
			}
		}
		if err := current.store.Save(cmd.Context(), s); err != nil {
			return fmt.Errorf("could not save settings: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Settings saved successfully!")
		return nil
	},
}

var projectNameCmd = &cobra.Command{
	Use:   "project-name",
	Short: "Print the suggested Overleaf project name for the saved settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := current.store.Load(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), generator.ComposeExternalProjectName(s))
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
}
