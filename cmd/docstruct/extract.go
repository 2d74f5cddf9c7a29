package main

import (
	"bytes"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docstruct/internal/config"
	"github.com/dgallion1/docstruct/internal/merge"
	"github.com/dgallion1/docstruct/internal/pipeline"
	"github.com/dgallion1/docstruct/internal/serialize"
	"github.com/dgallion1/docstruct/internal/sink"
	"github.com/spf13/cobra"
)

var (
	extractOutput   string
	extractMerge    string
	extractFormat   string
	extractMaxDepth int
	extractFlat     bool
	extractTitle    string
	extractCache    string
)

var extractCmd = &cobra.Command{
	Use:   "extract <inputs...>",
	Short: "Extract the heading hierarchy from converted documents",
	Long: `Extract reads one document, or the part_<n>_<start>_to_<end>.html chunks of a
split document (files or a directory), and writes the nested section tree.

The output may be a file path, - for stdout, or an http(s) URL that receives
the result with a PUT.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		applyExtractFlags(cmd, &cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		log, err := newLogger(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		format, err := serialize.ParseFormat(cfg.Format)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var merger merge.Merger
		if cfg.MergeMode == "external" {
			store, err := pipeline.OpenCache(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("open merge cache: %w", err)
			}
			if store != nil {
				defer store.Close()
			}
			if merger, err = pipeline.NewMerger(cfg, store, nil, log); err != nil {
				return err
			}
		}

		ex, err := pipeline.NewExtractor(cfg, merger, log)
		if err != nil {
			return err
		}
		inputs, err := pipeline.InputsFromPaths(args)
		if err != nil {
			return err
		}

		res, err := ex.Run(ctx, inputs, pipeline.RunOptions{
			Title: extractTitle,
			Progress: func(done, total int) {
				log.Debug("parsed input", "done", done, "total", total)
			},
		})
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if err := serialize.Write(&buf, res.Document, format); err != nil {
			return err
		}
		dest := sink.Open(extractOutput, cfg.SinkAPIKey)
		if err := dest.Write(ctx, buf.Bytes(), format.ContentType()); err != nil {
			return fmt.Errorf("write %s: %w", dest, err)
		}

		s := summary{title: "docstruct extract"}
		s.add("Title", res.Document.Title)
		s.add("Inputs", len(inputs))
		s.add("Headings", res.Headings)
		s.add("Nodes", res.Document.Count())
		s.add("Dropped", res.Dropped)
		s.add("Merge", fmt.Sprintf("%s (%d batches)", cfg.MergeMode, res.Assembly.Batches))
		s.add("Output", dest)
		s.add("Duration", res.Duration.Round(time.Millisecond))
		if res.Assembly.Fallbacks > 0 {
			s.warn("%d sections assembled heuristically after merge failures", res.Assembly.Fallbacks)
		}
		for _, g := range res.Gaps {
			s.warn("numbering gap under %s: %s then %s", orRoot(g.Parent), g.Previous.Label, g.Next.Label)
		}
		s.print(cmd.ErrOrStderr())
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "-", "Destination: file path, - for stdout, or http(s) URL")
	extractCmd.Flags().StringVar(&extractMerge, "merge", "", "Fragment assembly: heuristic or external (default from config)")
	extractCmd.Flags().StringVarP(&extractFormat, "format", "f", "", "Output format: json, text or chunks (default from config)")
	extractCmd.Flags().IntVar(&extractMaxDepth, "max-depth", 0, "Maximum nesting depth (0 = unlimited)")
	extractCmd.Flags().BoolVar(&extractFlat, "flat", false, "Make every heading a top-level section")
	extractCmd.Flags().StringVar(&extractTitle, "title", "", "Document title (default from the first input)")
	extractCmd.Flags().StringVar(&extractCache, "cache", "", "SQLite merge cache path (default $DOCSTRUCT_CACHE)")
	extractCmd.MarkFlagsMutuallyExclusive("max-depth", "flat")

	rootCmd.AddCommand(extractCmd)
}

// applyExtractFlags overlays explicitly set flags on cfg.
func applyExtractFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("merge") {
		cfg.MergeMode = extractMerge
	}
	if flags.Changed("format") {
		cfg.Format = extractFormat
	}
	if flags.Changed("max-depth") {
		cfg.MaxDepth = extractMaxDepth
	}
	if extractFlat {
		cfg.MaxDepth = 1
	}
	if flags.Changed("cache") {
		cfg.CachePath = extractCache
	}
}

func orRoot(parent string) string {
	if parent == "" {
		return "document root"
	}
	return parent
}
