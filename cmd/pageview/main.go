// Command pageview renders PDF pages to PNG files and prints document
// information.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tsawler/pageview/config"
	"github.com/tsawler/pageview/view"
)

// Config holds the global flags.
type Config struct {
	Debug      bool
	ConfigFile string
	Password   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg Config

	rootCmd := &cobra.Command{
		Use:   "pageview",
		Short: "Render PDF pages",
		Long: `pageview renders PDF pages through the same tiled renderer an
interactive viewer uses, and inspects documents.`,
		Example: `  # Render every page at 144 DPI
  pageview render --dpi 144 report.pdf

  # Render pages 2 to 4 fitted into 800x600
  pageview render --pages 2-4 --zoom fit --size 800x600 report.pdf

  # Show document information
  pageview info report.pdf`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cmd.ErrOrStderr(), cfg.Debug)
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&cfg.Debug, "debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&cfg.ConfigFile, "config", "c", "", "Path to pageview.toml (searched upwards from the working directory if not specified)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Password, "password", "p", "", "Password for encrypted documents")

	rootCmd.AddCommand(renderCmd(&cfg))
	rootCmd.AddCommand(infoCmd(&cfg))
	return rootCmd
}

// setupLogging installs a text handler for the CLI and the viewer.
func setupLogging(w io.Writer, debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	view.SetLogger(logger)
}

// loadConfig reads the file named by --config, or the nearest
// pageview.toml. A missing file yields an empty configuration.
func loadConfig(cfg *Config) (*config.Config, error) {
	if cfg.ConfigFile != "" {
		return config.Load(cfg.ConfigFile)
	}
	path, c, err := config.Find(".")
	if err != nil {
		return nil, err
	}
	if c == nil {
		return &config.Config{}, nil
	}
	slog.Debug("using configuration", "path", path)
	return c, nil
}

func fail(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
