package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/cgonzaleza9671/estampas/internal/tui/components"
	"github.com/cgonzaleza9671/estampas/internal/tui/styles"
)

// View renders the application
func (m Model) View() string {
	if !m.Ready {
		return "Loading..."
	}

	var content string
	switch m.State {
	case StateReading:
		content = m.Reader.View()
	case StateHelp:
		return lipgloss.Place(m.Width, m.Height, lipgloss.Center, lipgloss.Center, m.renderHelp())
	default:
		content = m.renderTabContent()
	}

	if m.State == StateSearching && m.Search.IsVisible() {
		return m.Search.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), content, m.renderFooter())
}

func (m Model) renderTabContent() string {
	if list, ok := m.Lists[m.ActiveTab]; ok {
		return list.View()
	}
	return m.Biography.View()
}

// renderHeader renders the tab bar
func (m Model) renderHeader() string {
	if m.State == StateReading {
		return styles.DimStyle.Render(" Reading")
	}

	tabs := make([]string, 0, tabCount)
	for tab := TabStories; tab < tabCount; tab++ {
		label := fmt.Sprintf("%d %s", tab+1, tab)
		if tab == m.ActiveTab {
			tabs = append(tabs, styles.ActiveTabStyle.Render(label))
		} else {
			tabs = append(tabs, styles.InactiveTabStyle.Render(label))
		}
	}
	bar := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	return lipgloss.NewStyle().MaxWidth(m.Width).Render(bar)
}

// renderFooter renders the status bar: spinner or status on the left, key
// hints on the right
func (m Model) renderFooter() string {
	var left string
	switch {
	case m.StatusMsg != "":
		if m.StatusIsErr {
			left = styles.ErrorStyle.Render(m.StatusMsg)
		} else {
			left = styles.SuccessStyle.Render(m.StatusMsg)
		}
	case m.Syncing:
		done := 0
		for _, state := range m.SyncStates {
			if state.Status == components.StatusSynced || state.Status == components.StatusError {
				done++
			}
		}
		spinner := components.SpinnerFrames[m.SpinnerFrame%len(components.SpinnerFrames)]
		left = styles.SpinnerStyle.Render(spinner) + styles.DimStyle.Render(fmt.Sprintf(" Syncing %d/%d...", done, tabCount))
	case m.svc.Media != nil:
		if item, ok := m.svc.Media.Playing(); ok {
			left = styles.AccentStyle.Render("♪ ") + styles.DimStyle.Render(item.Title)
		}
	}

	right := styles.DimStyle.Render(m.hints())

	gap := m.Width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return lipgloss.NewStyle().MaxWidth(m.Width).Render(left)
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) hints() string {
	if m.State == StateReading {
		r := components.ReaderKeys
		return hintLine(r.Toggle, r.Jump, r.Faster, r.Slower, r.Close, Keys.Help)
	}
	return hintLine(Keys.NextTab, Keys.Enter, Keys.Filter, Keys.GlobalSearch, Keys.Help, Keys.Quit)
}

func hintLine(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " · ")
}

// renderHelp renders the help overlay
func (m Model) renderHelp() string {
	var b strings.Builder
	b.WriteString(styles.ModalTitleStyle.Render("Keyboard Shortcuts"))
	b.WriteString("\n\n")

	section := func(title string, bindings ...key.Binding) {
		b.WriteString(styles.AccentStyle.Render(title) + "\n")
		for _, binding := range bindings {
			h := binding.Help()
			b.WriteString("  " + styles.HelpKeyStyle.Render(fmt.Sprintf("%-8s", h.Key)) + " " + styles.HelpDescStyle.Render(h.Desc) + "\n")
		}
		b.WriteString("\n")
	}

	browsing := append([]key.Binding{Keys.NextTab, Keys.PrevTab}, Keys.GoTo[:]...)
	section("Browsing", append(browsing,
		Keys.Enter, Keys.Filter, Keys.GlobalSearch, Keys.Refresh, Keys.StopMedia, Keys.Quit)...)

	r := components.ReaderKeys
	section("Reading",
		r.Toggle, r.Stop, r.PrevWord, r.NextWord, r.PrevPara, r.NextPara,
		r.Jump, r.Faster, r.Slower, r.ScrollUp, r.ScrollDown, r.Close)

	b.WriteString(styles.DimStyle.Render("Press any key to return..."))
	return styles.ModalStyle.Render(b.String())
}
