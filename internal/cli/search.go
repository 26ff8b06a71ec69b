package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rcliao/companion-state/internal/memory"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search a user's memories",
		Long:  "Rank active memories by relevance to the query, recency and salience.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().Int64P("user", "u", 0, "User id (required)")
	cmd.Flags().Int64P("companion", "c", 0, "Limit to one companion")
	cmd.Flags().IntP("limit", "l", 0, "Max results (default from config)")
	cmd.MarkFlagRequired("user")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	user, companion := pairFlags(cmd)
	limit, _ := cmd.Flags().GetInt("limit")
	query := strings.Join(args, " ")

	a := mustOpenApp(cmd)
	defer a.Close()

	results, err := a.memory.Search(cmd.Context(), memory.SearchParams{
		Query:       query,
		UserID:      user,
		CompanionID: companion,
		Limit:       limit,
	})
	if err != nil {
		exitErr("search", err)
	}

	if len(results) == 0 && formatFlag != "text" {
		fmt.Println("[]")
		return
	}

	output(results, func(w io.Writer) {
		if len(results) == 0 {
			fmt.Fprintln(w, "no matching memories")
			return
		}
		for _, r := range results {
			fmt.Fprintf(w, "%.2f  %s  (%s, %s)\n", r.Score, r.Text, r.Type, humanize.Time(r.LastAccessedAt))
		}
	})
}
