package main

import (
	"context"
	"fmt"

	"github.com/aretw0/foreman/internal/cli"
	"github.com/aretw0/foreman/pkg/command"
	"github.com/spf13/cobra"
)

var execCmd = &cobra.Command{
	Use:   "exec <command-name>",
	Short: "Run a configured command on the current machine",
	Long: `Opens the project, waits for a current machine and runs the named command
from foreman.yaml, streaming its output until interrupted or --timeout elapses.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, env, err := setup(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		target, ok := command.Find(cfg.Commands, args[0])
		if !ok {
			return fmt.Errorf("unknown command %q (configured: %d)", args[0], len(cfg.Commands))
		}

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx := context.Context(sigCtx)
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(sigCtx, timeout)
			defer cancel()
		}

		sess, err := openSession(ctx, cmd, cfg, env)
		if err != nil {
			return err
		}

		exec, err := sess.Exec(ctx, target)
		if err != nil {
			_ = sess.Close()
			return err
		}
		env.Logger.Info("Command dispatched", "machine_id", exec.Machine, "channel", exec.Channel, "command_line", exec.CommandLine)

		select {
		case <-ctx.Done():
		case <-sess.Done():
		}
		return sess.Close()
	},
}

func init() {
	rootCmd.AddCommand(execCmd)
	execCmd.Flags().Duration("timeout", 0, "Stop streaming after this long (0 streams until interrupted)")
}
