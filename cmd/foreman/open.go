package main

import (
	"context"
	"fmt"

	"github.com/aretw0/foreman"
	"github.com/aretw0/foreman/internal/cli"
	"github.com/aretw0/foreman/internal/config"
	"github.com/aretw0/foreman/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Open the configured project and stream machine output",
	Long: `Opens the project from foreman.yaml. Existing machines bound to it are reused;
otherwise one is started and made current once it is running. Runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, env, err := setup(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		sess, err := openSession(sigCtx, cmd, cfg, env)
		if err != nil {
			return err
		}

		select {
		case <-sigCtx.Done():
		case <-sess.Done():
		}
		return sess.Close()
	},
}

// openSession builds the Manager, serves its metrics if configured and opens the project.
func openSession(ctx context.Context, cmd *cobra.Command, cfg config.Config, env *cli.Env) (*cli.Session, error) {
	project, err := cfg.ActiveProject()
	if err != nil {
		return nil, fmt.Errorf("project.path is required: %w", err)
	}

	reg := cli.NewRegistry()
	mgr, err := cli.NewManager(env, cfg, cmd.OutOrStdout(), reg)
	if err != nil {
		return nil, err
	}
	if cfg.MetricsListen != "" {
		go func() {
			if err := cli.ListenAndServe(ctx, cfg.MetricsListen, cli.MetricsHandler(reg), env.Logger); err != nil {
				env.Logger.Warn("Metrics server failed", "err", err)
			}
		}()
	}

	tui.PrintBanner(cmd.OutOrStdout(), foreman.Version)

	sess := cli.StartSession(mgr, project)
	if err := sess.Open(ctx); err != nil {
		_ = sess.Close()
		return nil, err
	}
	return sess, nil
}

func init() {
	rootCmd.AddCommand(openCmd)
}
