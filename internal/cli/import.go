package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/companion-state/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import memories from JSON",
		Long:  "Import memories from JSON on stdin. Expects the format produced by export.",
		Run:   runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		exitErr("read stdin", err)
	}

	var facts []model.MemoryFact
	if err := json.Unmarshal(data, &facts); err != nil {
		exitErr("parse json", err)
	}
	for i, f := range facts {
		if f.UserID == 0 || f.CompanionID == 0 || !model.ValidFactTypes[f.Type] || f.Text == "" {
			exitErr("import", fmt.Errorf("fact %d: userId, companionId, a valid type and text are required", i))
		}
		if f.State == "" {
			facts[i].State = model.FactActive
		}
	}

	a := mustOpenApp(cmd)
	defer a.Close()

	imported, err := a.store.ImportFacts(cmd.Context(), facts)
	if err != nil {
		exitErr("import", err)
	}

	fmt.Printf(`{"ok":true,"imported":%d}`+"\n", imported)
}
