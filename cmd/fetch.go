package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/spc/internal/input"
	"github.com/sells-group/spc/internal/rawdata"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <areas.csv|national>",
	Short: "Download and check the raw data for a study area",
	Long:  "Acquires every raw dataset the study area needs into data.raw_dir without building a population.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		acq, err := newAcquirer(cfg)
		if err != nil {
			return err
		}
		in, region, err := input.Load(ctx, args[0], "", false, acq.AllAreasNationally)
		if err != nil {
			return err
		}
		bundle, err := acq.Acquire(ctx, in.Areas)
		if err != nil {
			return err
		}

		formatBundle(os.Stdout, region, bundle)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

// formatBundle writes a count of each acquired dataset family to w.
func formatBundle(w io.Writer, region string, b *rawdata.Bundle) {
	var diaries int
	for _, recs := range b.DiaryFiles {
		diaries += len(recs)
	}
	var venues int
	for _, d := range b.VenueDirectories {
		venues += len(d.Venues)
	}

	_, _ = fmt.Fprintf(w, "region:             %s\n", region)
	_, _ = fmt.Fprintf(w, "diary files:        %d (%d records)\n", len(b.DiaryFiles), diaries)
	_, _ = fmt.Fprintf(w, "venue directories:  %d (%d venues)\n", len(b.VenueDirectories), venues)
	_, _ = fmt.Fprintf(w, "boundaries:         %d\n", len(b.Boundaries))
	_, _ = fmt.Fprintf(w, "mobility areas:     %d\n", len(b.Mobility))
	_, _ = fmt.Fprintf(w, "attractiveness:     %d\n", len(b.Attractiveness))
	_, _ = fmt.Fprintf(w, "control totals:     %d\n", len(b.ControlTotals))
}
