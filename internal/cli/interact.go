package cli

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rcliao/companion-state/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "interact",
		Short: "Record an interaction between a user and a companion",
		Long: "Record one interaction event. The relationship metrics are updated and\n" +
			"decayed, and the resulting relationship and level are printed.",
		Run: runInteract,
	}

	addPairFlags(cmd)
	cmd.Flags().StringP("type", "t", string(model.EventConversation), "Event type (conversation, emotional_sharing, personal_story, shared_interest, mutual_understanding, support_given, promise_kept, deep_discussion)")
	cmd.Flags().Float64P("quality", "q", 0.5, "Interaction quality [0,1]")
	cmd.Flags().Float64("depth", 0, "Emotional depth [0,1]")
	cmd.Flags().Float64("shared", 0, "Shared interests [0,1]")
	cmd.Flags().Float64("consistency", 0, "Consistency [0,1]")

	RootCmd.AddCommand(cmd)
}

func runInteract(cmd *cobra.Command, args []string) {
	user, companion := pairFlags(cmd)
	typ, _ := cmd.Flags().GetString("type")
	quality, _ := cmd.Flags().GetFloat64("quality")
	depth, _ := cmd.Flags().GetFloat64("depth")
	shared, _ := cmd.Flags().GetFloat64("shared")
	consistency, _ := cmd.Flags().GetFloat64("consistency")

	a := mustOpenApp(cmd)
	defer a.Close()

	p := model.Pair{UserID: user, CompanionID: companion}
	rec, err := a.tracker.RecordInteraction(cmd.Context(), p, model.InteractionEvent{
		Type:            model.EventType(typ),
		Quality:         quality,
		EmotionalDepth:  depth,
		SharedInterests: shared,
		Consistency:     consistency,
	})
	if err != nil {
		exitErr("interact", err)
	}
	lvl, err := a.tracker.CurrentLevel(cmd.Context(), p)
	if err != nil {
		exitErr("level", err)
	}

	output(map[string]any{"relationship": rec, "level": lvl}, func(w io.Writer) {
		fmt.Fprintf(w, "%s: level %d (%s) after %s interactions\n",
			p, lvl.Level, lvl.Name, humanize.Comma(int64(rec.InteractionCount)))
		printMetrics(w, rec.Metrics)
	})
}

func printMetrics(w io.Writer, m model.Metrics) {
	fmt.Fprintf(w, "  intimacy      %.2f\n", m.Intimacy)
	fmt.Fprintf(w, "  trust         %.2f\n", m.Trust)
	fmt.Fprintf(w, "  compatibility %.2f\n", m.Compatibility)
	fmt.Fprintf(w, "  communication %.2f\n", m.Communication)
	fmt.Fprintf(w, "  consistency   %.2f\n", m.Consistency)
	fmt.Fprintf(w, "  average       %.2f\n", m.Average())
}
