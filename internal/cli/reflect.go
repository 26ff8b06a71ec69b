package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rcliao/companion-state/internal/model"
	"github.com/rcliao/companion-state/internal/reflection"
)

func init() {
	reflectCmd := &cobra.Command{
		Use:   "reflect",
		Short: "Write the companion's reflection on a user",
		Long: "Without --type, write the daily reflection if its cooldown has elapsed and\n" +
			"otherwise print the latest one. With --type, write a reflection of that\n" +
			"type immediately. Conversation messages are read as a JSON array from\n" +
			"--messages (use - for stdin).",
		Run: runReflect,
	}
	addPairFlags(reflectCmd)
	reflectCmd.Flags().StringP("type", "t", "", "Trigger a reflection of this type now (daily, weekly, introspection)")
	reflectCmd.Flags().StringP("messages", "m", "", "JSON file of conversation messages")

	dreamCmd := &cobra.Command{
		Use:   "dream",
		Short: "Generate a dream from the user's memories",
		Run:   runDream,
	}
	addPairFlags(dreamCmd)

	RootCmd.AddCommand(reflectCmd, dreamCmd)
}

func readMessages(path string) ([]model.Message, error) {
	if path == "" {
		return nil, nil
	}
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	var msgs []model.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("parse messages: %w", err)
	}
	return msgs, nil
}

func runReflect(cmd *cobra.Command, args []string) {
	user, companion := pairFlags(cmd)
	typ, _ := cmd.Flags().GetString("type")
	msgPath, _ := cmd.Flags().GetString("messages")

	msgs, err := readMessages(msgPath)
	if err != nil {
		exitErr("read messages", err)
	}

	a := mustOpenApp(cmd)
	defer a.Close()

	p := model.Pair{UserID: user, CompanionID: companion}
	var res *reflection.Result
	if typ == "" {
		res, err = a.reflector.Process(cmd.Context(), reflection.ProcessRequest{Pair: p, Messages: msgs})
	} else {
		res, err = a.reflector.Trigger(cmd.Context(), reflection.TriggerRequest{Pair: p, Type: model.ReflectionType(typ), Messages: msgs})
	}
	if err != nil {
		exitErr("reflect", err)
	}

	output(res, func(w io.Writer) {
		if res.Skipped && res.NextEligible != nil {
			fmt.Fprintf(w, "(next reflection %s)\n\n", humanize.Time(*res.NextEligible))
		}
		fmt.Fprintln(w, res.Reflection.Content)
	})
}

func runDream(cmd *cobra.Command, args []string) {
	user, companion := pairFlags(cmd)
	a := mustOpenApp(cmd)
	defer a.Close()

	res, err := a.reflector.Trigger(cmd.Context(), reflection.TriggerRequest{
		Pair: model.Pair{UserID: user, CompanionID: companion},
		Type: model.ReflectionDream,
	})
	if err != nil {
		exitErr("dream", err)
	}
	output(res.Dream, func(w io.Writer) {
		fmt.Fprintln(w, res.Dream.DreamContent)
	})
}
