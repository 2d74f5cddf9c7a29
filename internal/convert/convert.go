// Package convert turns PDF files into page-marked HTML the parser reads.
package convert

import (
	"bufio"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docstruct/internal/parser"
	pdflib "github.com/ledongthuc/pdf"
)

// ErrNoText is returned when a PDF yields no text on any page.
var ErrNoText = errors.New("convert: no text extracted")

// Page is the text of one PDF page, one entry per visual line.
type Page struct {
	Number int
	Lines  []string
}

// Options configures a Converter.
type Options struct {
	// Pdftotext enables the poppler pdftotext fallback when the Go reader
	// fails or finds no text.
	Pdftotext bool
	Log       *slog.Logger
}

// Converter extracts page text from PDFs.
type Converter struct {
	pdftotext bool
	log       *slog.Logger
}

func New(opts Options) *Converter {
	log := opts.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Converter{pdftotext: opts.Pdftotext, log: log}
}

// Pages reads every page of the PDF at path.
func (c *Converter) Pages(path string) ([]Page, error) {
	pages, err := readPages(path)
	if err == nil && !hasText(pages) {
		err = ErrNoText
	}
	if err != nil && c.pdftotext {
		c.log.Warn("pdf reader failed, trying pdftotext", "file", path, "error", err)
		pages, err = pdftotextPages(path)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}
	c.log.Debug("pdf pages extracted", "file", path, "pages", len(pages))
	return pages, nil
}

// PagesFrom reads a PDF from r by spooling it to a temp file first.
func (c *Converter) PagesFrom(r io.Reader) ([]Page, error) {
	tmp, err := os.CreateTemp("", "docstruct-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()
	return c.Pages(tmpPath)
}

func readPages(path string) ([]Page, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	numPages := reader.NumPage()
	pages := make([]Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := Page{Number: i}
		p := reader.Page(i)
		if p.V.IsNull() {
			pages = append(pages, page)
			continue
		}
		rows, err := p.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		for _, row := range rows {
			var sb strings.Builder
			for _, t := range row.Content {
				sb.WriteString(t.S)
			}
			if line := strings.TrimSpace(sb.String()); line != "" {
				page.Lines = append(page.Lines, line)
			}
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func pdftotextPages(path string) ([]Page, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	return splitPages(string(out)), nil
}

// splitPages splits form-feed separated text into pages of trimmed,
// non-empty lines.
func splitPages(text string) []Page {
	raw := strings.Split(strings.TrimSuffix(text, "\f"), "\f")
	pages := make([]Page, 0, len(raw))
	for i, body := range raw {
		page := Page{Number: i + 1}
		for _, line := range strings.Split(body, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				page.Lines = append(page.Lines, line)
			}
		}
		pages = append(pages, page)
	}
	return pages
}

func hasText(pages []Page) bool {
	for _, p := range pages {
		if len(p.Lines) > 0 {
			return true
		}
	}
	return false
}

const pageStyle = ".page { margin-bottom: 20px; border-bottom: 1px dashed #ccc; padding-bottom: 10px; }"

// WriteHTML writes pages as one HTML document. Each page is a div carrying
// data-page-number, each line a paragraph.
func WriteHTML(w io.Writer, title string, pages []Page) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"UTF-8\">\n<title>%s</title>\n<style>\n%s\n</style>\n</head>\n<body>\n",
		html.EscapeString(title), pageStyle)
	for _, p := range pages {
		fmt.Fprintf(bw, "<div class=\"page\" id=\"page_%d\" data-page-number=\"%d\">\n", p.Number, p.Number)
		for _, line := range p.Lines {
			fmt.Fprintf(bw, "<p>%s</p>\n", html.EscapeString(line))
		}
		bw.WriteString("</div>\n")
	}
	bw.WriteString("</body>\n</html>\n")
	return bw.Flush()
}

// WriteText writes pages as plain text, separating pages with a form feed.
func WriteText(w io.Writer, pages []Page) error {
	bw := bufio.NewWriter(w)
	for i, p := range pages {
		if i > 0 {
			bw.WriteString("\f")
		}
		for _, line := range p.Lines {
			bw.WriteString(line)
			bw.WriteByte('\n')
		}
	}
	return bw.Flush()
}

// WriteChunks writes pages into dir as part_<n>_<start>_to_<end>.html files
// of at most pagesPerChunk pages and returns their paths in order.
func WriteChunks(dir string, pages []Page, pagesPerChunk int) ([]string, error) {
	if pagesPerChunk <= 0 {
		pagesPerChunk = 100
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chunk dir: %w", err)
	}

	var paths []string
	for start := 0; start < len(pages); start += pagesPerChunk {
		end := min(start+pagesPerChunk, len(pages))
		part := pages[start:end]
		first, last := part[0].Number, part[len(part)-1].Number
		index := len(paths) + 1

		path := filepath.Join(dir, parser.ChunkName(index, first, last))
		title := fmt.Sprintf("PDF Chunk %d: Pages %d-%d", index, first, last)
		if err := writeFile(path, func(w io.Writer) error { return WriteHTML(w, title, part) }); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
