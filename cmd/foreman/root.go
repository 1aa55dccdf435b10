package main

import (
	"fmt"
	"os"

	"github.com/aretw0/foreman/internal/cli"
	"github.com/aretw0/foreman/internal/config"
	"github.com/spf13/cobra"
)

var flags cli.Flags

var rootCmd = &cobra.Command{
	Use:   "foreman",
	Short: "Foreman orchestrates development machines for a workspace",
	Long: `Foreman starts machines from a recipe, binds one as current for the open
project and routes configured commands to it, streaming their output.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flags.ConfigPath, "config", "c", config.DefaultPath, "Path to foreman.yaml")
	rootCmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flags.RedisAddr, "redis", "", "Redis address carrying output and status channels")
	rootCmd.PersistentFlags().StringVar(&flags.ServiceURL, "service", "", "Machine service base URL")
}

// setup loads the config and connects to redis and the machine service.
func setup(cmd *cobra.Command) (config.Config, *cli.Env, error) {
	cfg, err := cli.LoadConfig(flags)
	if err != nil {
		return cfg, nil, err
	}
	logger, err := cli.NewLogger(cfg)
	if err != nil {
		return cfg, nil, err
	}
	env, err := cli.Connect(cmd.Context(), cfg, logger)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, env, nil
}
