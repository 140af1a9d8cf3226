package main

import (
	"fmt"
	"os"

	"github.com/siherrmann/controlrag/core/pipeline"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [catalog.csv]",
	Short: "Load a control catalog into the shared corpus",
	Long: `Reads a CSV export of the control catalog with the columns id, name,
text and an optional discussion, and stores one embedded chunk per control.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer file.Close()

	controls, err := pipeline.LoadControlCatalogCSV(file)
	if err != nil {
		return fmt.Errorf("reading catalog: %w", err)
	}
	if len(controls) == 0 {
		return fmt.Errorf("catalog %s contains no controls", args[0])
	}

	return withApp(cmd, appOptions{embedder: true}, func(a app) error {
		inserted, err := a.IngestControls(cmd.Context(), controls)
		if err != nil {
			return fmt.Errorf("ingest failed after %d chunks: %w", inserted, err)
		}
		cmd.Printf("Ingested %d controls (%d chunks)\n", len(controls), inserted)
		return nil
	})
}
