// Package styles holds the lipgloss styles shared by the TUI. Styles are
// package variables rebuilt from the active Palette by Apply.
package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Palette is the set of colors a theme defines
type Palette struct {
	Accent     lipgloss.Color
	Surface    lipgloss.Color // modal background
	Raised     lipgloss.Color // selected rows, badges
	Muted      lipgloss.Color
	Soft       lipgloss.Color
	Foreground lipgloss.Color
}

var palettes = map[string]Palette{
	"default": {Accent: "#C2410C", Surface: "#1F2937", Raised: "#374151", Muted: "#6B7280", Soft: "#9CA3AF", Foreground: "#F9FAFB"},
	"sepia":   {Accent: "#92400E", Surface: "#3B2F24", Raised: "#57462F", Muted: "#8C7A63", Soft: "#C8B89A", Foreground: "#F5ECD9"},
	"mono":    {Accent: "#FFFFFF", Surface: "#000000", Raised: "#3A3A3A", Muted: "#767676", Soft: "#B2B2B2", Foreground: "#FFFFFF"},
}

// Colors of the active palette
var (
	Accent     lipgloss.Color
	SlateLight lipgloss.Color
	DimGray    lipgloss.Color
	LightGray  lipgloss.Color
	White      lipgloss.Color
)

const (
	green = lipgloss.Color("#10B981")
	red   = lipgloss.Color("#EF4444")
)

var (
	ActiveBorder, InactiveBorder lipgloss.Style

	TitleStyle, SubtitleStyle lipgloss.Style
	DimStyle, AccentStyle     lipgloss.Style
	ErrorStyle, SuccessStyle  lipgloss.Style

	SelectedItemStyle, NormalItemStyle lipgloss.Style
	ModalStyle, ModalTitleStyle        lipgloss.Style
	HelpKeyStyle, HelpDescStyle        lipgloss.Style

	ProgressFullStyle, ProgressEmptyStyle lipgloss.Style

	ActiveTabStyle, InactiveTabStyle, DimBadgeStyle lipgloss.Style

	SpinnerStyle, FilterStyle, FilterPromptStyle, MatchHighlightStyle lipgloss.Style

	// reader words: being narrated, already narrated, not yet, picked for a jump
	ActiveWordStyle, ReadWordStyle, UnreadWordStyle, CursorWordStyle lipgloss.Style
)

func init() { use(palettes["default"]) }

// Apply switches to the named theme. Unknown names get the default palette.
func Apply(theme string) {
	p, ok := palettes[strings.ToLower(theme)]
	if !ok {
		p = palettes["default"]
	}
	use(p)
}

func use(p Palette) {
	Accent, SlateLight, DimGray, LightGray, White = p.Accent, p.Raised, p.Muted, p.Soft, p.Foreground

	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }
	rounded := lipgloss.NewStyle().Border(lipgloss.RoundedBorder())

	ActiveBorder = rounded.BorderForeground(p.Accent)
	InactiveBorder = rounded.BorderForeground(p.Muted)

	TitleStyle = fg(p.Foreground).Bold(true)
	SubtitleStyle = fg(p.Soft)
	DimStyle = fg(p.Muted)
	AccentStyle = fg(p.Accent)
	ErrorStyle = fg(red)
	SuccessStyle = fg(green)

	SelectedItemStyle = fg(p.Foreground).Background(p.Raised).Padding(0, 1)
	NormalItemStyle = fg(p.Soft).Padding(0, 1)

	ModalStyle = rounded.BorderForeground(p.Accent).Background(p.Surface).Padding(1, 2)
	ModalTitleStyle = TitleStyle.MarginBottom(1)

	HelpKeyStyle = AccentStyle
	HelpDescStyle = DimStyle

	ProgressFullStyle = AccentStyle
	ProgressEmptyStyle = DimStyle

	ActiveTabStyle = fg(p.Foreground).Background(p.Accent).Bold(true).Padding(0, 1)
	InactiveTabStyle = NormalItemStyle
	DimBadgeStyle = fg(p.Soft).Background(p.Raised).Padding(0, 1)

	SpinnerStyle = AccentStyle
	FilterStyle = AccentStyle
	FilterPromptStyle = AccentStyle.Bold(true)
	MatchHighlightStyle = AccentStyle.Bold(true)

	ActiveWordStyle = fg(p.Foreground).Background(p.Accent).Bold(true)
	ReadWordStyle = fg(p.Soft)
	UnreadWordStyle = fg(p.Muted)
	CursorWordStyle = fg(p.Foreground).Underline(true)
}

// Truncate cuts s to width terminal cells, ending in an ellipsis when cut
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return ansi.Truncate(s, width, "…")
}

// RenderProgressBar draws a bar width cells wide filled to percent
func RenderProgressBar(percent float64, width int) string {
	if width < 3 {
		return ""
	}
	filled := min(max(int(float64(width)*percent/100), 0), width)
	return ProgressFullStyle.Render(strings.Repeat("█", filled)) +
		ProgressEmptyStyle.Render(strings.Repeat("░", width-filled))
}

// RowPart is one span of a list row; a nil Foreground takes the row default
type RowPart struct {
	Text       string
	Foreground *lipgloss.Color
}

// RenderListRow renders parts as a row padded to width with one cell of
// margin on each side. Every span carries the selection background itself
// so ANSI resets between spans do not break it.
func RenderListRow(parts []RowPart, selected bool, width int) string {
	base := lipgloss.NewStyle()
	if selected {
		base = base.Background(SlateLight)
	}

	var row strings.Builder
	used := 0
	for _, part := range parts {
		color := LightGray
		switch {
		case part.Foreground != nil:
			color = *part.Foreground
		case selected:
			color = White
		}
		row.WriteString(base.Foreground(color).Render(part.Text))
		used += lipgloss.Width(part.Text)
	}
	if pad := width - used - 2; pad > 0 {
		row.WriteString(base.Render(strings.Repeat(" ", pad)))
	}

	margin := base.Render(" ")
	return margin + row.String() + margin
}
