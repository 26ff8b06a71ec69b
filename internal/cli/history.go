package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rcliao/companion-state/internal/model"
)

func init() {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List past reflections (or dreams) newest first",
		Run:   runHistory,
	}
	historyCmd.Flags().Int64P("user", "u", 0, "User id (required)")
	historyCmd.Flags().Int64P("companion", "c", 0, "Limit to one companion")
	historyCmd.Flags().IntP("limit", "l", 0, "Max entries (default 10)")
	historyCmd.Flags().Bool("dreams", false, "List dreams instead of reflections")
	historyCmd.MarkFlagRequired("user")

	traitsCmd := &cobra.Command{
		Use:   "traits",
		Short: "Show the relationship ladder, themes, cooldowns and dream symbols",
		Run:   runTraits,
	}

	RootCmd.AddCommand(historyCmd, traitsCmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	user, companion := pairFlags(cmd)
	limit, _ := cmd.Flags().GetInt("limit")
	dreams, _ := cmd.Flags().GetBool("dreams")

	a := mustOpenApp(cmd)
	defer a.Close()

	if dreams {
		ds, err := a.reflector.Dreams(cmd.Context(), user, companion, limit)
		if err != nil {
			exitErr("history", err)
		}
		output(ds, func(w io.Writer) {
			for _, d := range ds {
				fmt.Fprintf(w, "%s  companion %d  %s\n", humanize.Time(d.Timestamp), d.CompanionID, strings.Join(d.Symbolism, ", "))
			}
		})
		return
	}

	refs, err := a.reflector.History(cmd.Context(), user, companion, limit)
	if err != nil {
		exitErr("history", err)
	}
	output(refs, func(w io.Writer) {
		for _, r := range refs {
			fmt.Fprintf(w, "%s  %-13s companion %d  %s\n", humanize.Time(r.Timestamp), r.Type, r.CompanionID, strings.Join(r.KeyThemes, ", "))
		}
	})
}

func runTraits(cmd *cobra.Command, args []string) {
	a := mustOpenApp(cmd)
	defer a.Close()

	traits := a.reflector.Traits()
	output(traits, func(w io.Writer) {
		fmt.Fprintln(w, "Levels:")
		for _, l := range traits.Levels {
			fmt.Fprintf(w, "  %d %-12s from %s interactions\n", l.Level, l.Name, humanize.Comma(int64(l.InteractionThreshold)))
		}
		fmt.Fprintln(w, "Themes:")
		for _, t := range traits.Themes {
			fmt.Fprintf(w, "  %-13s %s\n", t.Name, strings.Join(t.Keywords, ", "))
		}
		fmt.Fprintln(w, "Cooldowns:")
		types := make([]string, 0, len(traits.Cooldowns))
		for typ := range traits.Cooldowns {
			types = append(types, string(typ))
		}
		sort.Strings(types)
		for _, typ := range types {
			fmt.Fprintf(w, "  %-13s %s\n", typ, traits.Cooldowns[model.ReflectionType(typ)])
		}
		fmt.Fprintf(w, "Dream symbols: %s\n", strings.Join(traits.UniversalSymbols, ", "))
	})
}
