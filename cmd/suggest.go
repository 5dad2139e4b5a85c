package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest REQUEST_ID",
	Short: "Rank vendors for a service request",
	Long:  "Scores the active vendor pool against a stored service request and prints the ranked suggestions.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSuggest,
}

func init() {
	f := suggestCmd.Flags()
	f.String("format", "table", "output format: table, csv or xlsx")
	f.String("output", "", "output file path (default stdout; required for xlsx)")
	f.Bool("all", false, "include vendors that are not recommended")
	rootCmd.AddCommand(suggestCmd)
}

func runSuggest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := zap.L().With(zap.String("command", "suggest"))

	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	all, _ := cmd.Flags().GetBool("all")

	switch format {
	case "table", "csv":
	case "xlsx":
		if outputPath == "" {
			return eris.New("suggest: --output is required for xlsx")
		}
	default:
		return eris.Errorf("suggest: --format must be table, csv or xlsx (got %q)", format)
	}

	env, err := initEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	res, err := env.Service.Suggest(ctx, args[0])
	if err != nil {
		return err
	}

	rows := suggestionRows(res, all)
	log.Info("suggestions ready",
		zap.String("request_id", res.Request.ID),
		zap.Int("eligible", res.Meta.TotalEligible),
		zap.Int("recommended", res.Meta.TotalRecommended),
		zap.Int("rows", len(rows)),
	)

	return outputSuggestions(rows, format, outputPath)
}
