package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/agentic-research/pricetag/internal/ingest"
	"github.com/agentic-research/pricetag/internal/logging"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build [source.json] [output.db]",
	Short: "Store a JSON design document in a SQLite database",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := args[0]
		output := args[1]

		_ = os.Remove(output) // Overwrite
		engine := ingest.NewEngine(cfg.PagesSelector, logging.New("ingest"))

		start := time.Now()
		fmt.Fprintf(cmd.OutOrStdout(), "Building %s from %s...\n", output, source)
		n, err := engine.Build(source, output)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d nodes in %v.\n", n, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}
