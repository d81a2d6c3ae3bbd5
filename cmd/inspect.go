package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/spc/internal/export"
	"github.com/sells-group/spc/internal/model"
)

var inspectPeople int

var inspectCmd = &cobra.Command{
	Use:   "inspect <artifact.pb>",
	Short: "Summarize a population artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "inspect: read artifact")
		}
		s, err := export.Summarize(data)
		if err != nil {
			return err
		}
		formatSummary(os.Stdout, s, int64(len(data)))

		if inspectPeople > 0 {
			people, err := export.DecodePeople(data, inspectPeople)
			if err != nil {
				return err
			}
			formatPeople(os.Stdout, people)
		}
		return nil
	},
}

func init() {
	inspectCmd.Flags().IntVar(&inspectPeople, "people", 0, "also list the first N people")
	rootCmd.AddCommand(inspectCmd)
}

func formatSummary(w io.Writer, s export.Summary, size int64) {
	_, _ = fmt.Fprintf(w, "region:      %s\n", s.Region)
	_, _ = fmt.Fprintf(w, "version:     %d\n", s.Version)
	_, _ = fmt.Fprintf(w, "size:        %s\n", humanize.Bytes(uint64(size)))
	_, _ = fmt.Fprintf(w, "epoch:       %s (days %d..%d)\n", s.Epoch.Format("2006-01-02"), s.FirstDay, s.FirstDay+s.Days-1)
	_, _ = fmt.Fprintf(w, "commuting:   %t (seed %d)\n", s.Commuting, s.Seed)
	_, _ = fmt.Fprintf(w, "areas:       %s\n", humanize.Comma(int64(s.Areas)))
	_, _ = fmt.Fprintf(w, "households:  %s\n", humanize.Comma(int64(s.Households)))
	_, _ = fmt.Fprintf(w, "people:      %s (%s infected)\n", humanize.Comma(int64(s.People)), humanize.Comma(int64(s.Infected)))
}

func formatPeople(out io.Writer, people []export.PersonRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tHOUSEHOLD\tAGE\tINFECTED\tHOME\tWORK")
	for _, p := range people {
		home, work := "", ""
		if len(p.Destinations) == model.NumCategories {
			home = p.Destinations[model.CategoryHome]
			work = p.Destinations[model.CategoryWork]
		}
		_, _ = fmt.Fprintf(w, "%d\t%d\t%d\t%t\t%s\t%s\n", p.ID, p.Household, p.Age, p.Infected, home, work)
	}
	_ = w.Flush()
}
