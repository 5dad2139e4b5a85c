package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/vendor-match/internal/suggest"
)

var scoreCmd = &cobra.Command{
	Use:   "score [VENDOR_ID...]",
	Short: "Compute vendor performance scores",
	Long: `Compute the 0-100 performance score, tier and vetting breakdown for vendors.

Examples:
  # Score two vendors
  score v-123 v-456

  # Score every active vendor and export to CSV
  score --all-active --format csv --output scores.csv`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.Bool("all-active", false, "score every active vendor")
	f.Int("concurrency", 4, "vendors scored in parallel")
	f.String("format", "table", "output format: table or csv")
	f.String("output", "", "output file path (default stdout)")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	allActive, _ := cmd.Flags().GetBool("all-active")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")

	if format != "table" && format != "csv" {
		return eris.Errorf("score: --format must be table or csv (got %q)", format)
	}
	if !allActive && len(args) == 0 {
		return eris.New("score: pass vendor IDs or --all-active")
	}

	env, err := initEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	ids := args
	if allActive {
		vendors, err := env.Store.ListActiveVendors(ctx)
		if err != nil {
			return eris.Wrap(err, "score: list active vendors")
		}
		ids = make([]string, 0, len(vendors))
		for _, v := range vendors {
			ids = append(ids, v.ID)
		}
	}

	results, err := scoreVendors(ctx, env.Service.VendorScore, ids, concurrency)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return eris.Wrapf(err, "score: create output file %s", outputPath)
		}
		defer f.Close() //nolint:errcheck
		w = f
	}

	if format == "csv" {
		return writeScoreCSV(w, results)
	}
	return writeScoreTable(w, results)
}

type vendorScoreFunc func(ctx context.Context, id string) (*suggest.VendorScore, error)

// scoreVendors scores ids with at most concurrency calls in flight. Results
// keep the order of ids. The first failure cancels the rest.
func scoreVendors(ctx context.Context, score vendorScoreFunc, ids []string, concurrency int) ([]*suggest.VendorScore, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("scoring vendors",
		zap.String("command", "score"),
		zap.Int("vendors", len(ids)),
		zap.Int("concurrency", concurrency),
	)

	results := make([]*suggest.VendorScore, len(ids))
	var scored atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, id := range ids {
		g.Go(func() error {
			vs, err := score(gctx, id)
			if err != nil {
				return eris.Wrapf(err, "score: vendor %s", id)
			}
			results[i] = vs
			scored.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Info("scoring complete", zap.String("command", "score"), zap.Int64("scored", scored.Load()))
	return results, nil
}

func writeScoreCSV(w io.Writer, results []*suggest.VendorScore) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{
		"vendor_id", "name", "status", "score", "tier", "confidence", "reviews",
		"completed_jobs", "pending_jobs", "vetting_score", "vetting_tier", "vetting_stale",
	}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "score: write CSV header")
	}

	for _, r := range results {
		row := []string{
			r.VendorID,
			r.Name,
			r.Status,
			fmt.Sprintf("%.2f", r.Performance.Score),
			string(r.Tier),
			fmt.Sprintf("%.2f", r.Performance.Breakdown.Confidence),
			fmt.Sprintf("%d", r.ReviewCount),
			fmt.Sprintf("%d", r.Stats.CompletedJobs),
			fmt.Sprintf("%d", r.Stats.PendingJobs),
			fmt.Sprintf("%.0f", r.Vetting.TotalScore),
			string(r.Vetting.Tier),
			fmt.Sprintf("%v", r.VettingStale),
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "score: write CSV row")
		}
	}
	return nil
}

func writeScoreTable(w io.Writer, results []*suggest.VendorScore) error {
	header := fmt.Sprintf("%-36s %-30s %-9s %7s %-12s %7s %8s %-11s\n",
		"Vendor ID", "Name", "Status", "Score", "Tier", "Reviews", "Vetting", "Vet Tier")
	if _, err := fmt.Fprint(w, header); err != nil {
		return eris.Wrap(err, "score: write table header")
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", 128)); err != nil {
		return eris.Wrap(err, "score: write table separator")
	}

	for _, r := range results {
		name := r.Name
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		line := fmt.Sprintf("%-36s %-30s %-9s %7.2f %-12s %7d %8.0f %-11s\n",
			r.VendorID, name, r.Status, r.Performance.Score, r.TierLabel, r.ReviewCount, r.Vetting.TotalScore, r.Vetting.Tier)
		if _, err := fmt.Fprint(w, line); err != nil {
			return eris.Wrap(err, "score: write table row")
		}
	}
	return nil
}
