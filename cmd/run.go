package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sells-group/spc/internal/store"
)

var (
	runNoCommuting bool
	runOutputStats bool
	runSeed        uint64
	runCases       string
)

var runCmd = &cobra.Command{
	Use:   "run <areas.csv|national>",
	Short: "Synthesize the population of a study area",
	Long:  "Reads the MSOA11CD column of the given CSV (or every area when the file stem is \"national\"), builds or reuses the study area and writes <output.dir>/<region>.pb.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := store.Open(ctx, cfg.Cache)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		acq, err := newAcquirer(cfg)
		if err != nil {
			return err
		}

		opts := runOptions{
			AreasPath:   args[0],
			CasesPath:   runCases,
			Commuting:   !runNoCommuting,
			OutputStats: runOutputStats,
		}
		if cmd.Flags().Changed("rng-seed") {
			opts.Seed = &runSeed
		}

		res, err := executeRun(ctx, cfg, st, acq, opts)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "%s: %d people in %d households across %d areas, %s written to %s (seed %d)\n",
			res.Region, res.Stats.People, res.Stats.Households, res.Stats.Areas,
			humanize.Bytes(uint64(res.Stats.ArtifactSize)), res.ArtifactPath, res.Seed)
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runNoCommuting, "no-commuting", false, "keep every activity in the home area")
	runCmd.Flags().BoolVar(&runOutputStats, "output-stats", false, "write the run statistics file")
	runCmd.Flags().Uint64Var(&runSeed, "rng-seed", 0, "seed for reproducible output (default: random)")
	runCmd.Flags().StringVar(&runCases, "cases", "", "CSV of initial cases per area (MSOA11CD,cases)")
	rootCmd.AddCommand(runCmd)
}
