package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/companion-state/internal/model"
)

func init() {
	toneCmd := &cobra.Command{
		Use:   "tone [text]",
		Short: "Rewrite text in the tone of the current relationship level",
		Args:  cobra.MinimumNArgs(1),
		Run:   runTone,
	}
	addPairFlags(toneCmd)

	greetCmd := &cobra.Command{
		Use:   "greet",
		Short: "Print a greeting (or closing) for the current level",
		Run:   runGreet,
	}
	addPairFlags(greetCmd)
	greetCmd.Flags().Bool("closing", false, "Print a closing instead of a greeting")

	RootCmd.AddCommand(toneCmd, greetCmd)
}

func runTone(cmd *cobra.Command, args []string) {
	user, companion := pairFlags(cmd)
	a := mustOpenApp(cmd)
	defer a.Close()

	text, err := a.tracker.ToneModify(cmd.Context(), model.Pair{UserID: user, CompanionID: companion}, strings.Join(args, " "))
	if err != nil {
		exitErr("tone", err)
	}
	output(map[string]string{"text": text}, func(w io.Writer) {
		fmt.Fprintln(w, text)
	})
}

func runGreet(cmd *cobra.Command, args []string) {
	user, companion := pairFlags(cmd)
	closing, _ := cmd.Flags().GetBool("closing")
	a := mustOpenApp(cmd)
	defer a.Close()

	p := model.Pair{UserID: user, CompanionID: companion}
	var text string
	var err error
	if closing {
		text, err = a.tracker.Closing(cmd.Context(), p)
	} else {
		text, err = a.tracker.Greeting(cmd.Context(), p)
	}
	if err != nil {
		exitErr("greet", err)
	}
	output(map[string]string{"text": text}, func(w io.Writer) {
		fmt.Fprintln(w, text)
	})
}
