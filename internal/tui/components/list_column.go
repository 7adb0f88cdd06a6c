package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/cgonzaleza9671/estampas/internal/domain"
	"github.com/cgonzaleza9671/estampas/internal/tui/styles"
)

var SpinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// rows a column spends on things other than items: border top and bottom,
// the title and the two scroll markers
const columnChromeRows = 5

// ListColumn is one collection tab: a scrollable list of archive items with
// an optional fuzzy filter over titles
type ListColumn struct {
	title string
	items []domain.ListItem

	// rows holds the indices into items that are shown, in display order.
	// nil means every item in its original order.
	rows   []int
	cursor int
	offset int

	width, height int
	focused       bool

	loading      bool
	spinnerFrame int
	sync         CollectionSyncState

	filterOn bool
	filter   textinput.Model
}

func NewListColumn(title string) *ListColumn {
	in := textinput.New()
	in.Placeholder = "type to filter..."
	in.Prompt = "/ "
	in.PromptStyle = styles.FilterPromptStyle
	in.TextStyle = styles.FilterStyle
	return &ListColumn{title: title, filter: in}
}

// titleSource adapts the items to fuzzy.Source
type titleSource []domain.ListItem

func (s titleSource) String(i int) string { return strings.ToLower(s[i].GetTitle()) }
func (s titleSource) Len() int            { return len(s) }

// Update handles key input while the column is focused
func (c *ListColumn) Update(msg tea.Msg) tea.Cmd {
	if !c.focused {
		return nil
	}
	if c.IsFilterTyping() {
		return c.updateFilter(msg)
	}

	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}
	if c.filterOn {
		switch {
		case key.Matches(km, ListColumnKeys.Escape):
			c.clearFilter()
			return nil
		case key.Matches(km, ListColumnKeys.Filter):
			c.filter.Focus()
			return nil
		}
	}

	page := c.pageSize() / 2
	switch {
	case key.Matches(km, ListColumnKeys.Down):
		c.moveTo(c.cursor + 1)
	case key.Matches(km, ListColumnKeys.Up):
		c.moveTo(c.cursor - 1)
	case key.Matches(km, ListColumnKeys.HalfDown):
		c.moveTo(c.cursor + page)
	case key.Matches(km, ListColumnKeys.HalfUp):
		c.moveTo(c.cursor - page)
	case key.Matches(km, ListColumnKeys.Home):
		c.moveTo(0)
	case key.Matches(km, ListColumnKeys.End):
		c.moveTo(c.ItemCount() - 1)
	}
	return nil
}

func (c *ListColumn) updateFilter(msg tea.Msg) tea.Cmd {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(km, ListColumnKeys.Escape),
			km.Type == tea.KeyBackspace && c.filter.Value() == "":
			c.clearFilter()
			return nil
		case key.Matches(km, ListColumnKeys.Enter):
			c.filter.Blur()
			return nil
		}
	}
	var cmd tea.Cmd
	c.filter, cmd = c.filter.Update(msg)
	c.refilter()
	return cmd
}

func (c *ListColumn) SetSize(width, height int) {
	c.width, c.height = width, height
	c.moveTo(c.cursor)
}

func (c *ListColumn) SetFocused(focused bool) { c.focused = focused }
func (c *ListColumn) IsFocused() bool         { return c.focused }

// SetItems replaces the items, clearing the filter and selection
func (c *ListColumn) SetItems(items []domain.ListItem) {
	c.loading = false
	c.items = items
	c.clearFilter()
}

// Items returns every item, ignoring the filter
func (c *ListColumn) Items() []domain.ListItem { return c.items }

func (c *ListColumn) ItemCount() int {
	if c.rows != nil {
		return len(c.rows)
	}
	return len(c.items)
}

func (c *ListColumn) IsEmpty() bool      { return c.ItemCount() == 0 }
func (c *ListColumn) SelectedIndex() int { return c.cursor }

// SelectedItem returns the item under the cursor, nil if none
func (c *ListColumn) SelectedItem() domain.ListItem {
	if c.cursor >= c.ItemCount() {
		return nil
	}
	return c.itemAt(c.cursor)
}

// SelectByID clears the filter and moves the cursor to the item with id.
// It reports false, leaving the column untouched, when no item has that id.
func (c *ListColumn) SelectByID(id string) bool {
	for i, item := range c.items {
		if item.GetID() != id {
			continue
		}
		c.clearFilter()
		c.moveTo(i)
		return true
	}
	return false
}

func (c *ListColumn) SetLoading(loading bool) { c.loading = loading }
func (c *ListColumn) IsLoading() bool         { return c.loading }

func (c *ListColumn) SetSyncState(state CollectionSyncState) { c.sync = state }
func (c *ListColumn) SetSpinnerFrame(frame int)              { c.spinnerFrame = frame }

// ToggleFilter opens the filter input
func (c *ListColumn) ToggleFilter() {
	c.filterOn = true
	c.filter.Focus()
}

func (c *ListColumn) IsFiltering() bool    { return c.filterOn }
func (c *ListColumn) IsFilterTyping() bool { return c.filterOn && c.filter.Focused() }
func (c *ListColumn) ClearFilter()         { c.clearFilter() }

// SetFilter applies query as if it had been typed and accepted
func (c *ListColumn) SetFilter(query string) {
	c.filterOn = true
	c.filter.SetValue(query)
	c.refilter()
}

func (c *ListColumn) clearFilter() {
	c.filterOn = false
	c.filter.SetValue("")
	c.filter.Blur()
	c.rows = nil
	c.cursor, c.offset = 0, 0
}

func (c *ListColumn) refilter() {
	c.cursor, c.offset = 0, 0
	query := strings.ToLower(c.filter.Value())
	if query == "" {
		c.rows = nil
		return
	}
	matches := fuzzy.FindFrom(query, titleSource(c.items))
	c.rows = make([]int, len(matches))
	for i, m := range matches {
		c.rows[i] = m.Index
	}
}

func (c *ListColumn) itemAt(row int) domain.ListItem {
	if c.rows != nil {
		return c.items[c.rows[row]]
	}
	return c.items[row]
}

// pageSize is the number of item rows that fit
func (c *ListColumn) pageSize() int {
	n := c.height - columnChromeRows
	if c.filterOn {
		n--
	}
	return max(n, 1)
}

// moveTo puts the cursor on row, clamped, and scrolls it into view
func (c *ListColumn) moveTo(row int) {
	c.cursor = clampIndex(row, c.ItemCount())
	page := c.pageSize()
	switch {
	case c.cursor < c.offset:
		c.offset = c.cursor
	case c.cursor >= c.offset+page:
		c.offset = c.cursor - page + 1
	}
}
