package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sells-group/vendor-match/internal/vetting"
)

var vettingCmd = &cobra.Command{
	Use:   "vetting",
	Short: "Compute an onboarding vetting score",
	Long: `Compute the 0-45 onboarding vetting score from vendor attributes, or
recompute a stored vendor's score with --vendor.

Examples:
  vetting --licensed --insured --years 7 --adjust 5
  vetting --vendor v-123 --save`,
	RunE: runVetting,
}

func init() {
	addVettingFlags(vettingCmd.Flags())
	rootCmd.AddCommand(vettingCmd)
}

func addVettingFlags(f *pflag.FlagSet) {
	f.Bool("licensed", false, "vendor holds a valid license")
	f.Bool("insured", false, "vendor carries insurance")
	f.Float64("years", 0, "years in business")
	f.Float64("adjust", 0, "admin adjustment (-10 to +10)")
	f.String("vendor", "", "recompute the score of a stored vendor")
	f.Bool("save", false, "write the recomputed score back (requires --vendor)")
}

func runVetting(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	vendorID, _ := cmd.Flags().GetString("vendor")
	save, _ := cmd.Flags().GetBool("save")

	if vendorID == "" {
		if save {
			return eris.New("vetting: --save requires --vendor")
		}
		in, err := vettingInputFromFlags(cmd)
		if err != nil {
			return err
		}
		calc, err := vetting.NewCalculator(cfg.Vetting)
		if err != nil {
			return err
		}
		return writeVetting(os.Stdout, "", calc.Calculate(in))
	}

	env, err := initEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	b, err := env.Service.RecomputeVetting(ctx, vendorID, save)
	if err != nil {
		return err
	}
	return writeVetting(os.Stdout, vendorID, b)
}

func vettingInputFromFlags(cmd *cobra.Command) (vetting.Input, error) {
	licensed, _ := cmd.Flags().GetBool("licensed")
	insured, _ := cmd.Flags().GetBool("insured")
	in := vetting.Input{Licensed: licensed, Insured: insured}

	if cmd.Flags().Changed("years") {
		years, _ := cmd.Flags().GetFloat64("years")
		if years < 0 {
			return in, eris.Errorf("vetting: --years must be >= 0 (got %v)", years)
		}
		in.YearsInBusiness = &years
	}
	if cmd.Flags().Changed("adjust") {
		adjust, _ := cmd.Flags().GetFloat64("adjust")
		in.AdminAdjustment = &adjust
	}
	return in, nil
}

func writeVetting(w io.Writer, vendorID string, b vetting.Breakdown) error {
	var lines []string
	if vendorID != "" {
		lines = append(lines, fmt.Sprintf("%-18s %s", "Vendor", vendorID))
	}
	lines = append(lines,
		fmt.Sprintf("%-18s %4.0f", "Licensed", b.LicensedPoints),
		fmt.Sprintf("%-18s %4.0f", "Insured", b.InsuredPoints),
		fmt.Sprintf("%-18s %4.0f", "Years in business", b.YearsPoints),
		fmt.Sprintf("%-18s %+4.0f", "Admin adjustment", b.AdminAdjustment),
		fmt.Sprintf("%-18s %4.0f / %d (%s)", "Total", b.TotalScore, vetting.MaxScore, b.Tier),
	)
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return eris.Wrap(err, "vetting: write output")
		}
	}
	return nil
}
