package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/cgonzaleza9671/estampas/internal/domain"
	"github.com/cgonzaleza9671/estampas/internal/tui/styles"
)

// View renders the column inside its border
func (c *ListColumn) View() string {
	border := styles.InactiveBorder
	if c.focused {
		border = styles.ActiveBorder
	}
	fw, fh := border.GetFrameSize()
	return border.Width(c.width - fw).Height(c.height - fh).Render(c.body(max(c.width-fw, 10)))
}

func (c *ListColumn) body(width int) string {
	lines := []string{styles.AccentStyle.Render(styles.Truncate(c.heading(), width)), " "}

	switch {
	case c.loading:
		lines = append(lines, styles.DimStyle.Render(c.spinner()+" Loading..."))
	case c.IsEmpty() && c.filter.Value() != "":
		lines = append(lines, styles.DimStyle.Render("No matches"))
	case c.IsEmpty():
		lines = append(lines, styles.DimStyle.Render("Nothing here yet"))
	default:
		lines = c.appendRows(lines[:1], width)
	}

	if c.filterOn && !c.loading {
		lines = append(lines, c.filterBar())
	}
	return strings.Join(lines, "\n")
}

// appendRows adds the visible page framed by scroll markers, which keep
// their line even when blank so the layout does not jump
func (c *ListColumn) appendRows(lines []string, width int) []string {
	count := c.ItemCount()
	end := min(c.offset+c.pageSize(), count)

	lines = append(lines, marker(c.offset > 0, "↑ more"))
	for row := c.offset; row < end; row++ {
		lines = append(lines, renderRow(c.itemAt(row), row == c.cursor, width))
	}
	return append(lines, marker(end < count, "↓ more"))
}

func marker(show bool, text string) string {
	if !show {
		return " "
	}
	return styles.DimStyle.Render(text)
}

func (c *ListColumn) spinner() string {
	return SpinnerFrames[c.spinnerFrame%len(SpinnerFrames)]
}

// heading is the column title decorated with its sync status
func (c *ListColumn) heading() string {
	switch c.sync.Status {
	case StatusSyncing:
		return c.spinner() + " " + c.title
	case StatusSynced:
		return fmt.Sprintf("%s (%d)", c.title, len(c.items))
	case StatusError:
		return "✗ " + c.title
	}
	return c.title
}

func (c *ListColumn) filterBar() string {
	bar := c.filter.View()
	if c.filter.Value() != "" {
		bar += styles.DimStyle.Render(fmt.Sprintf(" [%d/%d]", c.ItemCount(), len(c.items)))
	}
	return bar
}

// renderRow lays out glyph, title and a right-aligned description. The
// description is dropped when it would leave the title too little room.
func renderRow(item domain.ListItem, selected bool, width int) string {
	glyph, glyphColor := itemGlyph(item)
	inner := width - 4

	desc := item.GetDescription()
	room := inner
	if desc != "" {
		room = inner - lipgloss.Width(desc) - 1
		if room < 8 {
			room, desc = inner, ""
		}
	}
	title := styles.Truncate(item.GetTitle(), room)

	parts := []styles.RowPart{{Text: glyph, Foreground: &glyphColor}, {Text: " " + title}}
	if desc != "" {
		dim := styles.DimGray
		gap := max(inner-lipgloss.Width(title)-lipgloss.Width(desc), 1)
		parts = append(parts, styles.RowPart{Text: strings.Repeat(" ", gap) + desc, Foreground: &dim})
	}
	return styles.RenderListRow(parts, selected, width)
}

// itemGlyph marks the kind of row; stories without narration get a hollow dot
func itemGlyph(item domain.ListItem) (string, lipgloss.Color) {
	switch item.GetItemType() {
	case domain.MediaTypeRecording:
		return "♪", styles.Accent
	case domain.MediaTypeVideo:
		return "▶", styles.Accent
	}
	if s, ok := item.(*domain.Story); ok && !s.HasAudio() {
		return "○", styles.DimGray
	}
	return "●", styles.Accent
}
