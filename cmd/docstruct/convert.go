package main

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docstruct/internal/convert"
	"github.com/dgallion1/docstruct/internal/sink"
	"github.com/spf13/cobra"
)

var (
	convertFormat   string
	convertOutput   string
	convertChunkDir string
	convertPerChunk int
)

var convertCmd = &cobra.Command{
	Use:   "convert <pdf>",
	Short: "Convert a PDF to page-marked HTML or text",
	Long: `Convert extracts the text of a PDF line by line and writes it as one HTML
document (html), as part_<n>_<start>_to_<end>.html chunk files (html-chunks),
or as plain text with form feeds between pages (text).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		src := args[0]
		base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		conv := convert.New(convert.Options{Pdftotext: cfg.PDFFallbackPdftotext, Log: log})
		pages, err := conv.Pages(src)
		if err != nil {
			return err
		}

		s := summary{title: "docstruct convert"}
		s.add("Input", src)
		s.add("Pages", len(pages))

		switch convertFormat {
		case "html-chunks":
			dir := convertChunkDir
			if dir == "" {
				dir = filepath.Join(filepath.Dir(src), base+"_chunks")
			}
			paths, err := convert.WriteChunks(dir, pages, convertPerChunk)
			if err != nil {
				return err
			}
			s.add("Chunks", len(paths))
			s.add("Output", dir)
		case "html", "text":
			var buf bytes.Buffer
			ext, contentType := ".html", "text/html; charset=utf-8"
			if convertFormat == "text" {
				ext, contentType = ".txt", "text/plain; charset=utf-8"
				err = convert.WriteText(&buf, pages)
			} else {
				err = convert.WriteHTML(&buf, base, pages)
			}
			if err != nil {
				return err
			}
			out := convertOutput
			if out == "" {
				out = filepath.Join(filepath.Dir(src), base+ext)
			}
			dest := sink.Open(out, "")
			if err := dest.Write(cmd.Context(), buf.Bytes(), contentType); err != nil {
				return fmt.Errorf("write %s: %w", dest, err)
			}
			s.add("Output", dest)
		default:
			return fmt.Errorf("unknown format %q (want html, html-chunks or text)", convertFormat)
		}

		s.print(cmd.ErrOrStderr())
		return nil
	},
}

func init() {
	convertCmd.Flags().StringVarP(&convertFormat, "format", "f", "html", "Output format: html, html-chunks or text")
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "Output file for html/text, - for stdout (default <pdf>.html)")
	convertCmd.Flags().StringVarP(&convertChunkDir, "chunk-dir", "c", "", "Directory for html-chunks output (default <pdf>_chunks)")
	convertCmd.Flags().IntVarP(&convertPerChunk, "pages", "p", 100, "Pages per chunk for html-chunks")

	rootCmd.AddCommand(convertCmd)
}
