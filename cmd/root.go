package cmd

import (
	"fmt"
	"os"

	"github.com/agentic-research/pricetag/internal/associate"
	"github.com/agentic-research/pricetag/internal/config"
	"github.com/agentic-research/pricetag/internal/export"
	"github.com/agentic-research/pricetag/internal/ingest"
	"github.com/agentic-research/pricetag/internal/logging"
	"github.com/agentic-research/pricetag/internal/pricing"
	"github.com/agentic-research/pricetag/internal/render"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath string
	docPath    string
	logLevel   string

	// cfg is loaded before every subcommand runs.
	cfg = config.Default()
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to HCL config (default ./"+config.DefaultFile+" if present)")
	rootCmd.PersistentFlags().StringVarP(&docPath, "doc", "d", "", "Path to design document (.json or .db)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
}

var rootCmd = &cobra.Command{
	Use:          "pricetag",
	Short:        "Rewrite price labels in design documents",
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		level := c.LogLevel()
		if logLevel != "" {
			if level, err = logging.ParseLevel(logLevel); err != nil {
				return err
			}
		}
		logging.Init(level, c.LogFormat(), cmd.ErrOrStderr())
		cfg = c
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openDocument loads --doc, installs the font catalog and attaches the
// rasterizer. The caller closes the returned source.
func openDocument() (*ingest.Source, error) {
	if docPath == "" {
		return nil, fmt.Errorf("--doc is required")
	}
	engine := ingest.NewEngine(cfg.PagesSelector, logging.New("ingest"))
	src, err := engine.Open(docPath)
	if err != nil {
		return nil, err
	}

	// Without a configured catalog every font the document uses is treated
	// as installed, plus the fallback.
	fonts, err := cfg.Fonts()
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	if fonts == nil {
		fonts = append(src.Scene.UsedFonts(), cfg.Fallback())
	}
	src.Scene.InstallFonts(fonts...)

	r, err := render.New()
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	src.Scene.SetRasterizer(r)
	return src, nil
}

func newUpdater() *pricing.Updater {
	return pricing.NewUpdater(
		pricing.WithAssociator(associate.New(cfg.AssociateOptions())),
		pricing.WithCurrency(cfg.Currency),
		pricing.WithFallbackFont(cfg.Fallback()),
		pricing.WithLogger(logging.New("pricing")),
	)
}

func newExporter() *export.Exporter {
	return &export.Exporter{Scale: cfg.ExportScale(), Logger: logging.New("export")}
}
