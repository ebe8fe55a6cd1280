package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/agentic-research/pricetag/internal/logging"
	"github.com/agentic-research/pricetag/internal/mcpserver"
	"github.com/agentic-research/pricetag/internal/pricing"
	"github.com/agentic-research/pricetag/internal/session"
	"github.com/spf13/cobra"
)

var serveMCP bool

func init() {
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false, "Speak MCP instead of JSON-lines messages")
	serveCmd.Flags().BoolVarP(&writeBack, "write", "w", false, "Save the document after every price update")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Answer UI messages on stdin/stdout",
	Long: `Serve reads one JSON message per line from stdin and writes replies to stdout.
Requests: update-prices, export-png, ping, close.
With --mcp the same operations are offered as MCP tools instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		src, err := openDocument()
		if err != nil {
			return err
		}
		defer func() { _ = src.Close() }()

		logger := logging.New("session")
		opts := []session.Option{
			session.WithUpdater(newUpdater()),
			session.WithExporter(newExporter()),
			session.WithLogger(logger),
		}
		if writeBack {
			opts = append(opts, session.WithUpdateHook(func(_ context.Context, r pricing.Report) error {
				if r.Updates == 0 {
					return nil
				}
				n, err := src.Save()
				if err != nil {
					return err
				}
				logger.Info("document saved", "path", src.Path, "nodes", n)
				return nil
			}))
		}
		sess := session.New(src.Scene, opts...)

		if serveMCP {
			logger.Info("serving MCP on stdio", "doc", src.Path)
			return mcpserver.NewServer(sess, version, logging.New("mcp")).
				Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		}
		logger.Info("serving messages on stdio", "doc", src.Path)
		return sess.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}
