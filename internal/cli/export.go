package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export memories as JSON",
		Long:  "Export active and archived memories as a JSON array. Filter by user with -u.",
		Run:   runExport,
	}

	cmd.Flags().Int64P("user", "u", 0, "Filter by user id")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetInt64("user")

	a := mustOpenApp(cmd)
	defer a.Close()

	facts, err := a.store.ExportFacts(cmd.Context(), user)
	if err != nil {
		exitErr("export", err)
	}
	if facts == nil {
		fmt.Println("[]")
		return
	}

	b, _ := json.MarshalIndent(facts, "", "  ")
	fmt.Println(string(b))
}
