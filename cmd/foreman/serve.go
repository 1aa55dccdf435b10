package main

import (
	"github.com/aretw0/foreman"
	"github.com/aretw0/foreman/internal/cli"
	"github.com/aretw0/foreman/internal/presentation/tui"
	"github.com/aretw0/foreman/pkg/adapters/memory"
	"github.com/aretw0/foreman/pkg/adapters/process"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the development machine service",
	Long: `Starts an in-process machine service that simulates machines, publishes their
output and status on redis, and exposes the machine REST API with /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, env, err := setup(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		listen, _ := cmd.Flags().GetString("listen")
		if listen == "" {
			listen = cfg.Listen
		}

		tui.PrintBanner(cmd.OutOrStdout(), foreman.Version)

		var simOpts []memory.MachineOption
		if run, _ := cmd.Flags().GetBool("run-commands"); run {
			workdir, _ := cmd.Flags().GetString("workdir")
			simOpts = append(simOpts, memory.WithCommandRunner(process.NewExecutor(env.Transport,
				process.WithBaseDir(workdir),
				process.WithLogger(env.Logger),
			)))
		}

		reg := cli.NewRegistry()
		sim := cli.NewSimulator(env.Transport, reg, env.Logger, simOpts...)
		defer sim.Wait()

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		return cli.ListenAndServe(sigCtx, listen, cli.ServeHandler(sim, reg, env.Logger), env.Logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", "", "Address to listen on (defaults to config listen)")
	serveCmd.Flags().Bool("run-commands", false, "Run commands as local processes instead of echoing them")
	serveCmd.Flags().String("workdir", "", "Working directory for --run-commands")
}
