package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgallion1/docstruct/internal/heading"
	"github.com/spf13/cobra"
)

var patternsTest []string

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Print the active heading pattern table",
	Long: `Patterns prints the heading rules in the order they are tried, after any
config file overrides. With --test, each given line is classified instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		c, err := heading.Compile(cfg.Headings, log)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(patternsTest) > 0 {
			for _, line := range patternsTest {
				m, ok := c.Classify(line)
				if !ok {
					fmt.Fprintf(out, "%s %q\n", dimStyle.Render("body   "), line)
					continue
				}
				fmt.Fprintf(out, "%s %q level=%d label=%q title=%q pattern=%s\n",
					successStyle.Render("heading"), line, m.Level, m.Label, m.Title, m.Pattern)
			}
			return nil
		}

		specs := c.Specs()
		nameWidth := len("NAME")
		for _, s := range specs {
			nameWidth = max(nameWidth, len(s.Name))
		}
		col := lipgloss.NewStyle().Width(nameWidth + 2)
		fmt.Fprintln(out, titleStyle.Render(col.Render("NAME")+"LEVEL  PATTERN"))
		for _, s := range specs {
			level := fmt.Sprintf("%d", s.Level)
			if s.NumberingDepth {
				level += "+"
			}
			fmt.Fprintf(out, "%s%-7s%s\n", col.Render(s.Name), level, dimStyle.Render(strings.TrimSpace(s.Pattern)))
		}
		return nil
	},
}

func init() {
	patternsCmd.Flags().StringArrayVar(&patternsTest, "test", nil, "Classify a line instead of printing the table (repeatable)")

	rootCmd.AddCommand(patternsCmd)
}
