package cli

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rcliao/companion-state/internal/model"
)

func init() {
	consolidateCmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Merge, archive and purge a user's memories",
		Long: "Merge near-duplicate low-salience memories, archive stale ones, and\n" +
			"hard-delete memories past the retention horizon. Safe to run repeatedly.",
		Run: runConsolidate,
	}
	consolidateCmd.Flags().Int64P("user", "u", 0, "User id (required)")
	consolidateCmd.Flags().Int64P("companion", "c", 0, "Limit to one companion")
	consolidateCmd.MarkFlagRequired("user")

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Report memory counts and growth",
		Run:   runHealth,
	}
	healthCmd.Flags().Int64P("user", "u", 0, "User id (required)")
	healthCmd.Flags().Int64P("companion", "c", 0, "Limit to one companion")
	healthCmd.MarkFlagRequired("user")

	RootCmd.AddCommand(consolidateCmd, healthCmd)
}

func runConsolidate(cmd *cobra.Command, args []string) {
	user, companion := pairFlags(cmd)
	a := mustOpenApp(cmd)
	defer a.Close()

	res, err := a.memory.Consolidate(cmd.Context(), user, companion)
	if err != nil {
		exitErr("consolidate", err)
	}
	output(res, func(w io.Writer) {
		fmt.Fprintf(w, "scanned %s memories in %s\n", humanize.Comma(int64(res.Scanned)), res.Duration)
		fmt.Fprintf(w, "  merged   %s\n", humanize.Comma(int64(res.Consolidated)))
		fmt.Fprintf(w, "  archived %s\n", humanize.Comma(int64(res.Archived)))
		fmt.Fprintf(w, "  deleted  %s\n", humanize.Comma(int64(res.Deleted)))
		if res.Skipped > 0 {
			fmt.Fprintf(w, "  skipped  %s (changed during the run)\n", humanize.Comma(int64(res.Skipped)))
		}
	})
}

func runHealth(cmd *cobra.Command, args []string) {
	user, companion := pairFlags(cmd)
	a := mustOpenApp(cmd)
	defer a.Close()

	rep, err := a.memory.Health(cmd.Context(), user, companion)
	if err != nil {
		exitErr("health", err)
	}
	output(rep, func(w io.Writer) {
		fmt.Fprintf(w, "active %s, archived %s, deleted %s\n",
			humanize.Comma(int64(rep.Active)), humanize.Comma(int64(rep.Archived)), humanize.Comma(int64(rep.Deleted)))
		fmt.Fprintf(w, "average age %.1f days, growth %.2f/day\n", rep.AverageAgeDays, rep.GrowthPerDay)
		for _, typ := range model.FactTypes {
			if n := rep.ByType[typ]; n > 0 {
				fmt.Fprintf(w, "  %-13s %s\n", typ, humanize.Comma(int64(n)))
			}
		}
	})
}
