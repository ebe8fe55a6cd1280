package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/agentic-research/pricetag/internal/export"
	"github.com/agentic-research/pricetag/internal/writeback"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
)

var outPath string

func init() {
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the PNG here instead of printing base64")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Render the selection, or the frame with the most text, to PNG",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := openDocument()
		if err != nil {
			return err
		}
		defer func() { _ = src.Close() }()

		res, err := newExporter().Export(cmd.Context(), src.Scene)
		if errors.Is(err, export.ErrNothingToExport) {
			return errors.New(export.NothingToExportText)
		}
		if err != nil {
			return err
		}

		if outPath == "" {
			fmt.Fprintln(cmd.OutOrStdout(), res.Base64)
			return nil
		}
		abs, err := filepath.Abs(outPath)
		if err != nil {
			return err
		}
		if err := writeback.WriteFileAtomic(osfs.New(filepath.Dir(abs)), filepath.Base(abs), res.PNG); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %s (%d bytes) to %s\n", res.Node.ID, len(res.PNG), outPath)
		return nil
	},
}
