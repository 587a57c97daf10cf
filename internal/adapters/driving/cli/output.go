package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
)

// minWrapWidth disables wrapping on very narrow terminals.
const minWrapWidth = 40

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	refStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	scoreStyle   = lipgloss.NewStyle().Faint(true)
	pinStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// textWidth returns the terminal width of w, or 0 when w is not a terminal.
func textWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

// indented renders text indented by indent spaces, wrapped to width when it is known.
func indented(text string, width, indent int) string {
	if width < minWrapWidth {
		return strings.Repeat(" ", indent) + text
	}
	return lipgloss.NewStyle().PaddingLeft(indent).Width(width).Render(text)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

// chapterSpan formats a chunk's chapters as "3" or "3-4".
func chapterSpan(chapters []int) string {
	switch len(chapters) {
	case 0:
		return ""
	case 1:
		return strconv.Itoa(chapters[0])
	default:
		return fmt.Sprintf("%d-%d", chapters[0], chapters[len(chapters)-1])
	}
}

func printCards(cmd *cobra.Command, result *domain.SearchResult) {
	out := cmd.OutOrStdout()
	width := textWidth(out)

	if len(result.Cards) == 0 {
		cmd.Println("No results found.")
		return
	}

	cmd.Println(headingStyle.Render(fmt.Sprintf("Results for %q (%d)", result.Query, len(result.Cards))))
	cmd.Println()
	for i := range result.Cards {
		c := &result.Cards[i]
		header := fmt.Sprintf("  [%d] %s %s", i+1, c.Chunk.BookTitle, chapterSpan(c.Chunk.Chapters))
		cmd.Print(headingStyle.Render(header))
		cmd.Print(" " + scoreStyle.Render(fmt.Sprintf("(%.3f)", c.Score)))
		if c.Pinned {
			cmd.Print(" " + pinStyle.Render("pinned"))
		}
		cmd.Println()
		for _, v := range c.Verses {
			cmd.Println(indented(refStyle.Render(v.Verse.Reference())+"  "+v.Verse.Text, width, 6))
		}
		cmd.Println()
	}

	if result.Summary != "" {
		cmd.Println(headingStyle.Render("Summary"))
		cmd.Println(indented(result.Summary, width, 2))
	}
}

func printLexicalHits(cmd *cobra.Command, query string, hits []domain.LexicalHit) {
	if len(hits) == 0 {
		cmd.Println("No matches found.")
		return
	}
	width := textWidth(cmd.OutOrStdout())

	cmd.Println(headingStyle.Render(fmt.Sprintf("Matches for %q (%d)", query, len(hits))))
	cmd.Println()
	for i, h := range hits {
		cmd.Printf("  [%d] %s %s\n", i+1, refStyle.Render(h.Reference),
			scoreStyle.Render(fmt.Sprintf("(%.2f, %s)", h.Score, h.Stage)))
		if h.Verse != nil {
			cmd.Println(indented(h.Verse.Text, width, 6))
		}
	}
}

func printVerse(cmd *cobra.Command, v *domain.VerseInfo) {
	cmd.Printf("%s  %s\n", refStyle.Render(v.Reference()), scoreStyle.Render(v.ID))
	cmd.Println(indented(v.Text, textWidth(cmd.OutOrStdout()), 2))
}
