package main

import (
	"fmt"

	"github.com/aretw0/foreman/internal/presentation/tui"
	"github.com/aretw0/foreman/pkg/domain"
	"github.com/spf13/cobra"
)

var machinesCmd = &cobra.Command{
	Use:   "machines",
	Short: "Inspect and remove machines on the machine service",
}

var machinesLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List machines, optionally only those bound to a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, env, err := setup(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		project, _ := cmd.Flags().GetString("project")
		machines, err := env.Service.ListMachines(cmd.Context(), project)
		if err != nil {
			return fmt.Errorf("failed to list machines: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(machines) == 0 {
			fmt.Fprintln(out, "No machines found.")
			return nil
		}
		fmt.Fprintln(out, tui.MachinesTable(machines))
		fmt.Fprintln(out, tui.Summary(len(machines), "machine"))
		return nil
	},
}

var machinesDestroyCmd = &cobra.Command{
	Use:   "destroy <machine-id>...",
	Short: "Destroy one or more machines",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, env, err := setup(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		out := cmd.OutOrStdout()
		failed := 0
		for _, id := range args {
			if err := env.Service.Destroy(cmd.Context(), domain.MachineID(id)); err != nil {
				fmt.Fprintf(out, "Error destroying '%s': %v\n", id, err)
				failed++
				continue
			}
			fmt.Fprintf(out, "Destroyed machine '%s'\n", id)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d machines could not be destroyed", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(machinesCmd)
	machinesCmd.AddCommand(machinesLsCmd)
	machinesCmd.AddCommand(machinesDestroyCmd)
	machinesLsCmd.Flags().StringP("project", "p", "", "Only list machines bound to this project path")
}
