package main

import (
	"fmt"

	"github.com/aretw0/foreman/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect machine sessions recorded by running managers",
}

var sessionsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the persisted sessions of a workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, env, err := setup(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		workspace, _ := cmd.Flags().GetString("workspace")
		if workspace == "" {
			workspace = cfg.Workspace
		}

		sessions, err := env.Store.List(cmd.Context(), workspace)
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(sessions) == 0 {
			fmt.Fprintf(out, "No sessions recorded for workspace '%s'.\n", workspace)
			return nil
		}
		fmt.Fprintf(out, "Workspace '%s':\n", workspace)
		fmt.Fprintln(out, tui.SessionsTable(sessions))
		fmt.Fprintln(out, tui.Summary(len(sessions), "session"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsLsCmd)
	sessionsLsCmd.Flags().StringP("workspace", "w", "", "Workspace to list (defaults to config workspace)")
}
