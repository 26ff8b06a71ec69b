package cli

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rcliao/companion-state/internal/model"
)

func init() {
	levelCmd := &cobra.Command{
		Use:   "level",
		Short: "Show the current relationship level",
		Run:   runLevel,
	}
	addPairFlags(levelCmd)

	progressCmd := &cobra.Command{
		Use:   "progress",
		Short: "Show progress toward the next relationship level",
		Run:   runProgress,
	}
	addPairFlags(progressCmd)

	RootCmd.AddCommand(levelCmd, progressCmd)
}

func runLevel(cmd *cobra.Command, args []string) {
	user, companion := pairFlags(cmd)
	a := mustOpenApp(cmd)
	defer a.Close()

	lvl, err := a.tracker.CurrentLevel(cmd.Context(), model.Pair{UserID: user, CompanionID: companion})
	if err != nil {
		exitErr("level", err)
	}
	output(lvl, func(w io.Writer) {
		fmt.Fprintf(w, "%s level: %s (%s)\n", humanize.Ordinal(lvl.Level), lvl.Name, formatTone(lvl.Tone))
	})
}

func runProgress(cmd *cobra.Command, args []string) {
	user, companion := pairFlags(cmd)
	a := mustOpenApp(cmd)
	defer a.Close()

	prog, err := a.tracker.ProgressToNext(cmd.Context(), model.Pair{UserID: user, CompanionID: companion})
	if err != nil {
		exitErr("progress", err)
	}
	output(prog, func(w io.Writer) {
		if prog.Next == nil || prog.Fraction == nil {
			fmt.Fprintf(w, "%s is the highest level (%s interactions)\n",
				prog.Current.Name, humanize.Comma(int64(prog.InteractionCount)))
			return
		}
		fmt.Fprintf(w, "%s -> %s: %.0f%% (%s interactions, average %.2f)\n",
			prog.Current.Name, prog.Next.Name, *prog.Fraction*100,
			humanize.Comma(int64(prog.InteractionCount)), prog.Average)
	})
}

func formatTone(t model.ToneModifiers) string {
	return fmt.Sprintf("formality %.1f, warmth %.1f, playfulness %.1f, directness %.1f, affection %.1f",
		t.Formality, t.Warmth, t.Playfulness, t.Directness, t.Affection)
}
