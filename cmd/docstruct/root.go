package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dgallion1/docstruct/internal/config"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "docstruct",
	Short: "Rebuild the heading hierarchy of converted documents",
	Long: `docstruct turns flat HTML produced by document converters (and PDF, Markdown,
DOCX or plain text) into a nested tree of parts, chapters and sections with
their body text reassembled into paragraphs.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML or JSON config file (default $DOCSTRUCT_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format for stderr (text, json)")
}

// newLogger builds the CLI logger. Logs go to w so stdout stays free for
// document output.
func newLogger(w io.Writer) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	switch strings.ToLower(logFormat) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q (want text or json)", logFormat)
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
