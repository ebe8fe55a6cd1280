package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/agentic-research/pricetag/internal/pricing"
	"github.com/spf13/cobra"
)

var (
	pricesPath string
	writeBack  bool
)

func init() {
	updateCmd.Flags().StringVarP(&pricesPath, "prices", "p", "", "Price mapping file (.json, .yaml or .yml; - for JSON on stdin)")
	updateCmd.Flags().BoolVarP(&writeBack, "write", "w", false, "Save rewritten labels back to the document")
	_ = updateCmd.MarkFlagRequired("prices")
	rootCmd.AddCommand(updateCmd)
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Rewrite price labels next to matching product labels",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mapping, err := readMapping(cmd.InOrStdin(), pricesPath)
		if err != nil {
			return err
		}

		src, err := openDocument()
		if err != nil {
			return err
		}
		defer func() { _ = src.Close() }()

		report := newUpdater().Run(cmd.Context(), src.Scene, mapping)
		printReport(cmd.OutOrStdout(), report)

		if !writeBack {
			return nil
		}
		n, err := src.Save()
		if err != nil {
			return fmt.Errorf("save %s: %w", src.Path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %d node(s) to %s\n", n, src.Path)
		return nil
	},
}

func readMapping(stdin io.Reader, path string) (pricing.Mapping, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
		path = "stdin.json"
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read prices: %w", err)
	}
	return pricing.DecodeFile(path, data)
}

func printReport(w io.Writer, r pricing.Report) {
	for _, res := range r.Results {
		switch res.Outcome {
		case pricing.Updated:
			fmt.Fprintf(w, "  %-12s %s → %s (%s)\n", res.Outcome, res.Product, res.PriceNode, res.Tier)
		case pricing.FontFailed:
			fmt.Fprintf(w, "  %-12s %s → %s: %v\n", res.Outcome, res.Product, res.PriceNode, res.Err)
		default:
			fmt.Fprintf(w, "  %-12s %s (node %s)\n", res.Outcome, res.Product, res.ProductNode)
		}
	}
	fmt.Fprintf(w, "Updated %d price label(s).\n", r.Updates)
	if len(r.NotFound) > 0 {
		fmt.Fprintf(w, "Not found: %s\n", strings.Join(r.NotFound, ", "))
	}
}
