package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/spc/internal/store"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect stored study areas",
	Long:  "Commands for listing, deleting, and pruning cached study areas.",
}

func openCacheStore(cmd *cobra.Command) (store.Store, error) {
	st, err := store.Open(cmd.Context(), cfg.Cache)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, eris.New("study area caching is disabled (cache.driver is none)")
	}
	return st, nil
}

// -- cache list --

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached study areas",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openCacheStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		entries, err := st.List(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "cache list")
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No cached study areas.")
			return nil
		}
		formatCacheList(os.Stdout, entries)
		return nil
	},
}

// -- cache delete --

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete one cached study area",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openCacheStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Delete(cmd.Context(), args[0]); err != nil {
			return eris.Wrap(err, "cache delete")
		}
		fmt.Fprintf(os.Stdout, "deleted %s\n", args[0])
		return nil
	},
}

// -- cache prune --

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete cached study areas older than a cutoff",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openCacheStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		olderThan, _ := cmd.Flags().GetDuration("older-than")
		n, err := st.Prune(cmd.Context(), time.Now().Add(-olderThan))
		if err != nil {
			return eris.Wrap(err, "cache prune")
		}
		fmt.Fprintf(os.Stdout, "pruned %d cached study areas\n", n)
		return nil
	},
}

func init() {
	cachePruneCmd.Flags().Duration("older-than", 30*24*time.Hour, "remove caches created longer ago than this")

	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheDeleteCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}

// formatCacheList writes a tabular list of cache entries to w.
func formatCacheList(out io.Writer, entries []store.Entry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tREGION\tAREAS\tPEOPLE\tSIZE\tCREATED")
	_, _ = fmt.Fprintln(w, "---\t------\t-----\t------\t----\t-------")

	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			e.Key,
			e.Region,
			e.Areas,
			humanize.Comma(int64(e.People)),
			humanize.Bytes(uint64(e.Size)),
			humanize.Time(e.CreatedAt),
		)
	}
	_ = w.Flush()
}
