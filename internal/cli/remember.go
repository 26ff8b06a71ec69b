package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rcliao/companion-state/internal/model"
)

func init() {
	rememberCmd := &cobra.Command{
		Use:   "remember [text]",
		Short: "Store a memory fact about a user",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRemember,
	}
	addPairFlags(rememberCmd)
	rememberCmd.Flags().StringP("type", "t", string(model.FactPersonal), "Fact type (personal, experience, relationship, knowledge, emotional, conversation)")

	accessCmd := &cobra.Command{
		Use:   "access [memory-id]",
		Short: "Mark a memory as accessed",
		Args:  cobra.ExactArgs(1),
		Run:   runAccess,
	}

	forgetCmd := &cobra.Command{
		Use:   "forget [memory-id]",
		Short: "Tombstone a memory",
		Long:  "Mark a memory deleted. It is hard-deleted by a later consolidation once the retention horizon passes.",
		Args:  cobra.ExactArgs(1),
		Run:   runForget,
	}

	RootCmd.AddCommand(rememberCmd, accessCmd, forgetCmd)
}

func runRemember(cmd *cobra.Command, args []string) {
	user, companion := pairFlags(cmd)
	typ, _ := cmd.Flags().GetString("type")

	a := mustOpenApp(cmd)
	defer a.Close()

	fact, err := a.memory.Remember(cmd.Context(), model.Pair{UserID: user, CompanionID: companion}, model.FactType(typ), strings.Join(args, " "))
	if err != nil {
		exitErr("remember", err)
	}
	output(fact, func(w io.Writer) {
		fmt.Fprintf(w, "remembered %s (%s, salience %.2f)\n", fact.ID, fact.Type, fact.Salience)
	})
}

func runAccess(cmd *cobra.Command, args []string) {
	a := mustOpenApp(cmd)
	defer a.Close()

	fact, err := a.memory.Access(cmd.Context(), args[0])
	if err != nil {
		exitErr("access", err)
	}
	output(fact, func(w io.Writer) {
		printFact(w, *fact)
	})
}

func runForget(cmd *cobra.Command, args []string) {
	a := mustOpenApp(cmd)
	defer a.Close()

	if err := a.memory.Forget(cmd.Context(), args[0]); err != nil {
		exitErr("forget", err)
	}
	output(map[string]any{"ok": true, "id": args[0]}, func(w io.Writer) {
		fmt.Fprintf(w, "forgot %s\n", args[0])
	})
}

func printFact(w io.Writer, f model.MemoryFact) {
	fmt.Fprintf(w, "%s [%s/%s] %s\n", f.ID, f.Type, f.State, f.Text)
	fmt.Fprintf(w, "  created %s, last accessed %s, %s accesses, salience %.2f\n",
		humanize.Time(f.CreatedAt), humanize.Time(f.LastAccessedAt),
		humanize.Comma(int64(f.AccessCount)), f.Salience)
}
