package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	envPath string
	rootCmd = &cobra.Command{
		Use:   "bridge-relay",
		Short: "Relays bridge contract events from a source ledger to a destination API",
	}
)

func init() {
	cobra.EnableCommandSorting = false

	rootCmd.PersistentFlags().StringVar(&envPath, "env", ".env", "Path to an optional .env file")

	rootCmd.AddCommand(
		versionCmd,
		validateCmd,
		runCmd,
		stateCmd,
	)
}

// Execute runs the root command tree.
func Execute(ctx context.Context) error {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}
