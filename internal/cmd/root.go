// Package cmd holds the command line entry points of the service.
package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/retention-intel/server/internal/app"
	logx "github.com/retention-intel/server/pkg/logger"
)

var (
	envFile string
	cfg     app.Config
)

var rootCmd = &cobra.Command{
	Use:   "retention-intel",
	Short: "Customer retention intelligence service",
	Long: `retention-intel answers relationship-manager questions about at-risk customers.

Each chat turn passes a guardrail gate, then a four-stage pipeline:
attrition lookup, segmentation, evidence assembly and response generation.
Turns are audited and scored by a scheduled evaluation batch.`,
	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := app.LoadConfig(envFile)
		if err != nil {
			return err
		}
		cfg = loaded
		logx.Init(logx.LoggerOpts{Environment: cfg.Env(), Output: cmd.ErrOrStderr()})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(evalCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
