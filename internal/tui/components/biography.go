package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cgonzaleza9671/estampas/internal/domain"
	"github.com/cgonzaleza9671/estampas/internal/tui/styles"
)

// BiographyView is a scrollable biography page
type BiographyView struct {
	bio      *domain.Biography
	viewport viewport.Model
	focused  bool
	width    int
	height   int
}

// NewBiographyView creates an empty biography page
func NewBiographyView() *BiographyView {
	return &BiographyView{viewport: viewport.New(0, 0)}
}

// SetBiography replaces the page content
func (b *BiographyView) SetBiography(bio *domain.Biography) {
	b.bio = bio
	b.viewport.SetContent(b.render())
	b.viewport.GotoTop()
}

// SetSize sets the outer dimensions
func (b *BiographyView) SetSize(width, height int) {
	b.width = width
	b.height = height
	frameW, frameH := styles.InactiveBorder.GetFrameSize()
	b.viewport.Width = max(width-frameW-2, 10)
	b.viewport.Height = max(height-frameH, 1)
	b.viewport.SetContent(b.render())
}

func (b *BiographyView) SetFocused(focused bool) { b.focused = focused }

// Update scrolls the page
func (b *BiographyView) Update(msg tea.Msg) tea.Cmd {
	if !b.focused {
		return nil
	}
	var cmd tea.Cmd
	b.viewport, cmd = b.viewport.Update(msg)
	return cmd
}

// View renders the page inside its border
func (b *BiographyView) View() string {
	style := styles.InactiveBorder
	if b.focused {
		style = styles.ActiveBorder
	}
	frameW, frameH := style.GetFrameSize()
	return style.
		Width(b.width - frameW).
		Height(b.height - frameH).
		Padding(0, 1).
		Render(b.viewport.View())
}

func (b *BiographyView) render() string {
	if b.bio == nil || (b.bio.Name == "" && len(b.bio.Sections) == 0) {
		return styles.DimStyle.Render("No biography yet")
	}

	width := max(b.viewport.Width, 10)
	body := lipgloss.NewStyle().Width(width).Foreground(styles.LightGray)

	var sb strings.Builder
	sb.WriteString(styles.TitleStyle.Render(b.bio.Name))
	if b.bio.Born != "" {
		sb.WriteString("\n" + styles.DimStyle.Render(b.bio.Born))
	}
	for _, section := range b.bio.Sections {
		sb.WriteString("\n\n")
		if section.Heading != "" {
			sb.WriteString(styles.AccentStyle.Render(section.Heading) + "\n")
		}
		paragraphs := strings.Split(strings.TrimSpace(section.Body), "\n\n")
		for i, p := range paragraphs {
			if i > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(body.Render(strings.Join(strings.Fields(p), " ")))
		}
	}
	return sb.String()
}
