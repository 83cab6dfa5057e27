package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/retention-intel/server/internal/app"
	"github.com/retention-intel/server/internal/evaluation"
)

var evalList bool

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Run one evaluation batch and print the metric row",
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		if evalList {
			refs, err := evaluation.NewLoader(cfg.Evaluation.ScoringDir).List()
			if err != nil {
				return fmt.Errorf("listing scoring functions: %w", err)
			}
			return enc.Encode(refs)
		}

		ctx := cmd.Context()
		a, err := app.New(ctx, cfg)
		if err != nil {
			return fmt.Errorf("initializing service: %w", err)
		}
		defer a.Close()

		metric, err := a.RunEvaluation(ctx)
		if err != nil {
			return err
		}
		return enc.Encode(metric)
	},
}

func init() {
	evalCmd.Flags().BoolVar(&evalList, "list", false, "list available scoring functions and exit")
}
