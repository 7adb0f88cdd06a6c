package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cgonzaleza9671/estampas/internal/domain"
	"github.com/cgonzaleza9671/estampas/internal/search"
	"github.com/cgonzaleza9671/estampas/internal/tui/styles"
)

// SearchScope limits the global search to one collection
type SearchScope int

const (
	ScopeAll SearchScope = iota
	ScopeStories
	ScopeRecordings
	ScopeVideos
	scopeCount
)

func (s SearchScope) String() string {
	switch s {
	case ScopeStories:
		return "Stories"
	case ScopeRecordings:
		return "Recordings"
	case ScopeVideos:
		return "Videos"
	default:
		return "All"
	}
}

// Types returns the media types the scope searches, nil for all
func (s SearchScope) Types() []domain.MediaType {
	switch s {
	case ScopeStories:
		return []domain.MediaType{domain.MediaTypeStory}
	case ScopeRecordings:
		return []domain.MediaType{domain.MediaTypeRecording}
	case ScopeVideos:
		return []domain.MediaType{domain.MediaTypeVideo}
	default:
		return nil
	}
}

const searchMaxVisible = 8

// GlobalSearch is the archive-wide search modal
type GlobalSearch struct {
	input   textinput.Model
	results []search.FilterResult
	scope   SearchScope

	cursor int
	offset int

	visible bool
	width   int
	height  int

	// last query and scope handed out by Pending
	sentQuery string
	sentScope SearchScope
}

// NewGlobalSearch creates a hidden search modal
func NewGlobalSearch() GlobalSearch {
	ti := textinput.New()
	ti.Placeholder = "title, or words from a story..."
	ti.CharLimit = 100
	ti.Width = 40
	ti.Prompt = "› "
	ti.PromptStyle = styles.AccentStyle
	ti.TextStyle = lipgloss.NewStyle().Foreground(styles.White)
	ti.PlaceholderStyle = styles.DimStyle

	return GlobalSearch{input: ti}
}

// Show opens the modal with an empty query, keeping the last scope
func (o *GlobalSearch) Show() {
	o.visible = true
	o.input.SetValue("")
	o.input.Focus()
	o.results = nil
	o.cursor, o.offset = 0, 0
	o.sentQuery, o.sentScope = "", o.scope
}

// Hide closes the modal
func (o *GlobalSearch) Hide() {
	o.visible = false
	o.input.Blur()
}

func (o GlobalSearch) IsVisible() bool    { return o.visible }
func (o GlobalSearch) Query() string      { return o.input.Value() }
func (o GlobalSearch) Scope() SearchScope { return o.scope }
func (o GlobalSearch) ResultCount() int   { return len(o.results) }

// SetResults replaces the results and resets the cursor
func (o *GlobalSearch) SetResults(results []search.FilterResult) {
	o.results = results
	o.cursor, o.offset = 0, 0
}

// SetSize sets the screen size the modal is centered in
func (o *GlobalSearch) SetSize(width, height int) {
	o.width = width
	o.height = height
	o.input.Width = o.modalWidth() - 8
}

// Pending reports a query or scope that has not been searched yet and marks
// it as sent
func (o *GlobalSearch) Pending() (query string, scope SearchScope, ok bool) {
	query = o.input.Value()
	if query == o.sentQuery && o.scope == o.sentScope {
		return query, o.scope, false
	}
	o.sentQuery, o.sentScope = query, o.scope
	return query, o.scope, true
}

// Selected returns the highlighted result, nil if none
func (o GlobalSearch) Selected() *search.FilterItem {
	if o.cursor >= len(o.results) {
		return nil
	}
	return &o.results[o.cursor].FilterItem
}

// Update handles input. selected is true when enter picks a result.
func (o GlobalSearch) Update(msg tea.Msg) (_ GlobalSearch, cmd tea.Cmd, selected bool) {
	if !o.visible {
		return o, nil, false
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, GlobalSearchKeys.Escape):
			o.Hide()
			return o, nil, false
		case key.Matches(msg, GlobalSearchKeys.Enter):
			return o, nil, len(o.results) > 0
		case key.Matches(msg, GlobalSearchKeys.Down):
			o.moveCursor(1)
			return o, nil, false
		case key.Matches(msg, GlobalSearchKeys.Up):
			o.moveCursor(-1)
			return o, nil, false
		case key.Matches(msg, GlobalSearchKeys.Scope):
			o.scope = (o.scope + 1) % scopeCount
			return o, nil, false
		}
	}

	o.input, cmd = o.input.Update(msg)
	return o, cmd, false
}

func (o *GlobalSearch) moveCursor(delta int) {
	if len(o.results) == 0 {
		return
	}
	o.cursor = clampIndex(o.cursor+delta, len(o.results))
	if o.cursor < o.offset {
		o.offset = o.cursor
	}
	if o.cursor >= o.offset+searchMaxVisible {
		o.offset = o.cursor - searchMaxVisible + 1
	}
}

func (o GlobalSearch) modalWidth() int {
	return min(max(o.width*2/3, 40), 80)
}

// View renders the modal centered on screen
func (o GlobalSearch) View() string {
	if !o.visible {
		return ""
	}
	width := o.modalWidth()

	var b strings.Builder
	b.WriteString(styles.ModalTitleStyle.Render("Search the archive"))
	b.WriteString("\n")
	b.WriteString(o.renderScopes())
	b.WriteString("\n\n")
	b.WriteString(o.input.View())
	b.WriteString("\n\n")
	b.WriteString(o.renderResults(width - 4))

	modal := styles.ModalStyle.Width(width).Render(
		lipgloss.NewStyle().Width(width - 4).Render(b.String()),
	)
	return lipgloss.Place(o.width, o.height, lipgloss.Center, lipgloss.Center, modal)
}

func (o GlobalSearch) renderScopes() string {
	parts := make([]string, 0, scopeCount)
	for s := ScopeAll; s < scopeCount; s++ {
		if s == o.scope {
			parts = append(parts, styles.AccentStyle.Render("["+s.String()+"]"))
		} else {
			parts = append(parts, styles.DimStyle.Render(" "+s.String()+" "))
		}
	}
	return strings.Join(parts, " ") + styles.DimStyle.Render("  tab")
}

func (o GlobalSearch) renderResults(width int) string {
	if len(o.results) == 0 {
		if o.input.Value() == "" {
			return styles.DimStyle.Render("Type to search titles; story text is searched when no title matches")
		}
		return styles.DimStyle.Render("No matches")
	}

	lines := make([]string, 0, searchMaxVisible*2+1)
	end := min(o.offset+searchMaxVisible, len(o.results))
	for i := o.offset; i < end; i++ {
		r := o.results[i]
		badge := styles.DimBadgeStyle.Render(fmt.Sprintf("%-5s", typeBadge(r.Type)))

		title := r.Title
		indexes := r.MatchedIndexes
		if lipgloss.Width(title) > width-8 {
			title = styles.Truncate(title, width-8)
			indexes = nil
		}
		lines = append(lines, badge+" "+highlightMatches(title, indexes, i == o.cursor))
		if r.Snippet != "" {
			lines = append(lines, "      "+styles.DimStyle.Render(styles.Truncate(r.Snippet, width-6)))
		}
	}
	if hidden := len(o.results) - end; hidden > 0 {
		lines = append(lines, styles.DimStyle.Render(fmt.Sprintf("↓ %d more", hidden)))
	}
	return strings.Join(lines, "\n")
}

// highlightMatches styles the matched rune positions of text, batching runs
// of the same style
func highlightMatches(text string, matchedIndexes []int, selected bool) string {
	base := styles.NormalItemStyle.Padding(0)
	match := styles.MatchHighlightStyle
	if selected {
		base = styles.SelectedItemStyle.Padding(0)
		match = match.Background(styles.SlateLight)
	}
	if len(matchedIndexes) == 0 {
		return base.Render(text)
	}

	hit := make(map[int]bool, len(matchedIndexes))
	for _, i := range matchedIndexes {
		hit[i] = true
	}

	var out strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); {
		start, on := i, hit[i]
		for i < len(runes) && hit[i] == on {
			i++
		}
		if on {
			out.WriteString(match.Render(string(runes[start:i])))
		} else {
			out.WriteString(base.Render(string(runes[start:i])))
		}
	}
	return out.String()
}

func typeBadge(t domain.MediaType) string {
	switch t {
	case domain.MediaTypeRecording:
		return "REC"
	case domain.MediaTypeVideo:
		return "VIDEO"
	default:
		return "STORY"
	}
}
