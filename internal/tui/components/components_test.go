package components

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgonzaleza9671/estampas/internal/domain"
	"github.com/cgonzaleza9671/estampas/internal/narration"
	"github.com/cgonzaleza9671/estampas/internal/search"
)

func storyItems() []domain.ListItem {
	return []domain.ListItem{
		&domain.Story{ID: "1", Title: "El aleph", AudioURL: "a.mp3"},
		&domain.Story{ID: "2", Title: "Funes el memorioso"},
		&domain.Story{ID: "3", Title: "La lotería en Babilonia", AudioURL: "c.mp3"},
	}
}

func newColumn() *ListColumn {
	c := NewListColumn("Stories")
	c.SetSize(60, 20)
	c.SetFocused(true)
	c.SetItems(storyItems())
	return c
}

func TestListColumn_Navigation(t *testing.T) {
	c := newColumn()
	require.Equal(t, 3, c.ItemCount())
	assert.Equal(t, "1", c.SelectedItem().GetID())

	c.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, "2", c.SelectedItem().GetID())

	c.Update(tea.KeyMsg{Type: tea.KeyEnd})
	assert.Equal(t, 2, c.SelectedIndex())

	c.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 2, c.SelectedIndex(), "cursor stays on the last row")

	c.Update(tea.KeyMsg{Type: tea.KeyHome})
	assert.Equal(t, 0, c.SelectedIndex())
}

func TestListColumn_IgnoresKeysWhenBlurred(t *testing.T) {
	c := newColumn()
	c.SetFocused(false)

	c.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 0, c.SelectedIndex())
}

func TestListColumn_Filter(t *testing.T) {
	c := newColumn()

	c.SetFilter("funes")
	require.Equal(t, 1, c.ItemCount())
	assert.Equal(t, "2", c.SelectedItem().GetID())
	assert.Len(t, c.Items(), 3, "filter keeps the full item list")

	c.SetFilter("zzz")
	assert.True(t, c.IsEmpty())
	assert.Nil(t, c.SelectedItem())

	c.ClearFilter()
	assert.Equal(t, 3, c.ItemCount())
	assert.False(t, c.IsFiltering())
}

func TestListColumn_FilterTyping(t *testing.T) {
	c := newColumn()
	c.ToggleFilter()
	require.True(t, c.IsFilterTyping())

	c.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("babil")})
	require.Equal(t, 1, c.ItemCount())
	assert.Equal(t, "3", c.SelectedItem().GetID())

	c.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, c.IsFiltering())
	assert.False(t, c.IsFilterTyping())

	c.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, c.IsFiltering())
	assert.Equal(t, 3, c.ItemCount())
}

func TestListColumn_SelectByID(t *testing.T) {
	c := newColumn()
	c.SetFilter("aleph")

	assert.True(t, c.SelectByID("3"))
	assert.False(t, c.IsFiltering(), "selecting by id clears the filter")
	assert.Equal(t, "3", c.SelectedItem().GetID())

	assert.False(t, c.SelectByID("missing"))
	assert.Equal(t, "3", c.SelectedItem().GetID())
}

func TestListColumn_View(t *testing.T) {
	c := NewListColumn("Stories")
	c.SetSize(60, 20)
	c.SetLoading(true)
	assert.Contains(t, c.View(), "Loading...")

	c.SetItems(storyItems())
	c.SetSyncState(CollectionSyncState{Status: StatusSynced, Count: 3})
	view := c.View()
	assert.Contains(t, view, "Stories (3)")
	assert.Contains(t, view, "El aleph")
	assert.Contains(t, view, "○", "text-only stories get a hollow marker")
}

func newReader(t *testing.T, width int) ReaderView {
	t.Helper()
	story := &domain.Story{ID: "1", Title: "Cuento", Author: "Ana", Text: "uno dos tres\n\ncuatro cinco", AudioURL: "a.mp3"}
	model := narration.Build(story.Text, narration.DefaultParams())
	require.Equal(t, 5, model.Len())

	r := NewReaderView()
	r.SetSize(width, 20)
	r.SetStory(story, model, true)
	return r
}

func TestReaderView_Layout(t *testing.T) {
	r := newReader(t, 80)
	require.Len(t, r.lines, 3)
	assert.Equal(t, readerLine{0, 1, 2}, r.lines[0])
	assert.Nil(t, r.lines[1], "paragraphs are separated by a blank line")
	assert.Equal(t, readerLine{3, 4}, r.lines[2])

	// textWidth bottoms out at 10 columns
	r.SetSize(14, 20)
	require.Len(t, r.lines, 5)
	assert.Equal(t, readerLine{0, 1}, r.lines[0])
	assert.Equal(t, readerLine{2}, r.lines[1])
	assert.Equal(t, 1, r.tokenLine[2])
	assert.Equal(t, 4, r.tokenLine[4])
}

func TestReaderView_Cursor(t *testing.T) {
	r := newReader(t, 80)

	target, ok := r.JumpTarget()
	assert.True(t, ok)
	assert.Equal(t, 0, target, "nothing narrated yet jumps from the first word")

	r.MoveCursor(1)
	target, _ = r.JumpTarget()
	assert.Equal(t, 0, target, "first move selects the first word")

	r.MoveCursor(1)
	target, _ = r.JumpTarget()
	assert.Equal(t, 1, target)

	r.MoveParagraph(1)
	target, _ = r.JumpTarget()
	assert.Equal(t, 3, target)

	r.MoveCursor(1)
	r.MoveParagraph(-1)
	target, _ = r.JumpTarget()
	assert.Equal(t, 3, target, "back goes to the start of the current paragraph first")

	r.MoveParagraph(-1)
	target, _ = r.JumpTarget()
	assert.Equal(t, 0, target)

	r.MoveCursor(-5)
	target, _ = r.JumpTarget()
	assert.Equal(t, 0, target)

	r.MoveCursor(50)
	target, _ = r.JumpTarget()
	assert.Equal(t, 4, target)
}

func TestReaderView_ActiveWordWinsAfterClear(t *testing.T) {
	r := newReader(t, 80)
	r.MoveCursor(3)

	r.SetState(narration.SyncState{ActiveTokenIndex: 2, ProgressPercent: 40, Loop: narration.Running})
	r.ClearCursor()

	target, ok := r.JumpTarget()
	assert.True(t, ok)
	assert.Equal(t, 2, target)
	assert.Equal(t, 2, r.State().ActiveTokenIndex)
}

func TestReaderView_View(t *testing.T) {
	r := newReader(t, 80)
	r.SetClock(0, 0, 1.25)

	view := r.View()
	assert.Contains(t, view, "Cuento")
	assert.Contains(t, view, "Ana")
	assert.Contains(t, view, "1.2x")

	r.SetStory(r.Story(), narration.Build(r.Story().Text, narration.DefaultParams()), false)
	assert.Contains(t, r.View(), "text only")
}

func TestReaderView_EmptyStory(t *testing.T) {
	r := NewReaderView()
	r.SetSize(80, 20)
	r.SetStory(&domain.Story{ID: "x", Title: "Vacío"}, narration.Build("", narration.DefaultParams()), false)

	_, ok := r.JumpTarget()
	assert.False(t, ok)
	r.MoveCursor(1)
	r.MoveParagraph(1)
	assert.Contains(t, r.View(), "Vacío")
}

func TestBiographyView(t *testing.T) {
	b := NewBiographyView()
	b.SetSize(60, 20)
	assert.Contains(t, b.View(), "No biography yet")

	b.SetBiography(&domain.Biography{
		Name: "Ana",
		Born: "1950",
		Sections: []domain.BiographySection{
			{Heading: "Infancia", Body: "Nació en un pueblo."},
		},
	})
	view := b.View()
	assert.Contains(t, view, "Infancia")
	assert.Contains(t, view, "Nació en un pueblo.")
}

func searchResults(n int) []search.FilterResult {
	results := make([]search.FilterResult, n)
	for i := range results {
		results[i] = search.FilterResult{FilterItem: search.FilterItem{
			Item:  &domain.Story{ID: string(rune('a' + i))},
			Title: "Story " + string(rune('A'+i)),
			Type:  domain.MediaTypeStory,
		}}
	}
	return results
}

func TestGlobalSearch_PendingAndScope(t *testing.T) {
	s := NewGlobalSearch()
	s.Show()

	_, _, ok := s.Pending()
	assert.False(t, ok, "nothing typed yet")

	s, _, _ = s.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("aleph")})
	query, scope, ok := s.Pending()
	require.True(t, ok)
	assert.Equal(t, "aleph", query)
	assert.Equal(t, ScopeAll, scope)

	_, _, ok = s.Pending()
	assert.False(t, ok, "already sent")

	s, _, _ = s.Update(tea.KeyMsg{Type: tea.KeyTab})
	_, scope, ok = s.Pending()
	require.True(t, ok)
	assert.Equal(t, ScopeStories, scope)
	assert.Equal(t, []domain.MediaType{domain.MediaTypeStory}, scope.Types())
	assert.Nil(t, ScopeAll.Types())

	for range 3 {
		s, _, _ = s.Update(tea.KeyMsg{Type: tea.KeyTab})
	}
	assert.Equal(t, ScopeAll, s.Scope(), "wraps around")
}

func TestGlobalSearch_SelectAndScroll(t *testing.T) {
	s := NewGlobalSearch()
	s.SetSize(100, 40)
	s.Show()

	var selected bool
	s, _, selected = s.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, selected, "no results")
	assert.Nil(t, s.Selected())

	s.SetResults(searchResults(12))
	for range 10 {
		s, _, _ = s.Update(tea.KeyMsg{Type: tea.KeyDown})
	}
	assert.Equal(t, "k", s.Selected().Item.GetID())
	assert.NotContains(t, s.View(), "Story A", "scrolled past the first result")
	assert.Contains(t, s.View(), "Story K")

	s, _, selected = s.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, selected)

	s, _, _ = s.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, s.IsVisible())
	assert.Empty(t, s.View())
}

func TestHighlightMatches(t *testing.T) {
	plain := highlightMatches("Funes", nil, false)
	assert.Contains(t, plain, "Funes")

	marked := highlightMatches("Funes", []int{0, 1}, false)
	assert.Contains(t, marked, "Fu")
	assert.Contains(t, marked, "nes")
}
