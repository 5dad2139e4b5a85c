package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/vendor-match/internal/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed FILE.yaml",
	Short: "Load vendors, requests, matches and reviews from a YAML fixture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		fx, err := store.ReadFixture(args[0])
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := store.LoadFixture(ctx, st, fx)
		if err != nil {
			return err
		}

		zap.L().Info("fixture loaded",
			zap.String("command", "seed"),
			zap.String("file", args[0]),
			zap.Int64("vendors", stats.Vendors),
			zap.Int64("requests", stats.Requests),
			zap.Int64("matches", stats.Matches),
			zap.Int64("reviews", stats.Reviews),
		)
		fmt.Printf("Loaded %d vendors, %d requests, %d matches, %d reviews\n",
			stats.Vendors, stats.Requests, stats.Matches, stats.Reviews)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
