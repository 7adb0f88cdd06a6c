package tui

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgonzaleza9671/estampas/internal/adapter"
	"github.com/cgonzaleza9671/estampas/internal/audio"
	"github.com/cgonzaleza9671/estampas/internal/coexist"
	"github.com/cgonzaleza9671/estampas/internal/domain"
	"github.com/cgonzaleza9671/estampas/internal/library"
	"github.com/cgonzaleza9671/estampas/internal/narration"
	"github.com/cgonzaleza9671/estampas/internal/search"
	"github.com/cgonzaleza9671/estampas/internal/service"
	"github.com/cgonzaleza9671/estampas/internal/store"
	"github.com/cgonzaleza9671/estampas/internal/tui/components"
)

type fakeRepo struct{}

func (fakeRepo) Stories(ctx context.Context) ([]*domain.Story, error) {
	return []*domain.Story{
		{ID: "1", Title: "Funes el memorioso", Author: "Ana", Text: "Lo recuerdo con una flor.\n\nNadie lo ha visto.", AudioURL: "funes.mp3", Duration: 10 * time.Second},
		{ID: "2", Title: "El aleph", Text: "La candente mañana de febrero."},
	}, nil
}

func (fakeRepo) Recordings(ctx context.Context) ([]*domain.MediaItem, error) {
	return []*domain.MediaItem{{ID: "r1", Title: "Entrevista", URL: "http://archive/r1.mp3", Type: domain.MediaTypeRecording}}, nil
}

func (fakeRepo) Videos(ctx context.Context) ([]*domain.MediaItem, error) {
	return []*domain.MediaItem{{ID: "v1", Title: "Homenaje", URL: "http://archive/v1.mp4", Type: domain.MediaTypeVideo}}, nil
}

func (fakeRepo) Biography(ctx context.Context) (*domain.Biography, error) {
	return &domain.Biography{Name: "Ana"}, nil
}

type clockOpener struct{}

func (clockOpener) Open(ctx context.Context, story domain.Story) (domain.Playback, error) {
	if !story.HasAudio() {
		return nil, domain.ErrNoAudio
	}
	return audio.NewClockPlayer(story.Duration), nil
}

type fakeProcess struct {
	once sync.Once
	done chan struct{}
}

func (p *fakeProcess) Done() <-chan struct{} { return p.done }
func (p *fakeProcess) Detached() bool        { return false }
func (p *fakeProcess) Stop() error {
	p.once.Do(func() { close(p.done) })
	return nil
}

type launchLog struct {
	mu   sync.Mutex
	urls []string
}

func (l *launchLog) launch(url string, offset time.Duration, audioOnly bool) (service.Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.urls = append(l.urls, url)
	return &fakeProcess{done: make(chan struct{})}, nil
}

func newTestModel(t *testing.T) (Model, *launchLog) {
	t.Helper()
	logger := adapter.NullLogger()

	st, err := store.NewArchiveStore("", "")
	require.NoError(t, err)

	bus := coexist.NewBus()
	launches := &launchLog{}

	params := narration.DefaultParams()
	params.RefreshInterval = time.Hour

	queries := library.NewQueries(st)
	reader := service.NewReaderService(clockOpener{}, st, st, bus, service.ReaderConfig{
		Params:      params,
		Rates:       []float64{0.75, 1, 1.25},
		DefaultRate: 1,
	}, logger)
	media := service.NewMediaService(launches.launch, bus, logger)
	t.Cleanup(func() {
		reader.Close()
		media.Close()
	})

	m := NewModel(Services{
		Library: library.NewCommands(fakeRepo{}, st, logger),
		Queries: queries,
		Search:  search.NewService(queries, logger),
		Reader:  reader,
		Media:   media,
	})
	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	return m, launches
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func updateCmd(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func press(t *testing.T, m Model, keys string) (Model, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	switch keys {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case " ":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)}
	}
	return updateCmd(t, m, msg)
}

// syncAndLoad runs a catalog sync through the model and loads every tab
func syncAndLoad(t *testing.T, m Model) Model {
	t.Helper()
	msg := SyncCatalogCmd(m.svc.Library, true)()
	for {
		progress, ok := msg.(CatalogSyncProgressMsg)
		if !ok {
			break
		}
		m = update(t, m, progress)
		msg = progress.NextCmd()
	}
	require.IsType(t, CatalogSyncDoneMsg{}, msg)
	m = update(t, m, msg)

	for _, kind := range []domain.MediaType{domain.MediaTypeStory, domain.MediaTypeRecording, domain.MediaTypeVideo} {
		m = update(t, m, LoadCollectionCmd(m.svc.Queries, kind)())
	}
	return update(t, m, LoadBiographyCmd(m.svc.Queries)())
}

func openStory(t *testing.T, m Model, id string) Model {
	t.Helper()
	msg := OpenStoryCmd(m.svc.Library, m.svc.Reader, id, m.observer)()
	require.IsType(t, StoryOpenedMsg{}, msg)
	return update(t, m, msg)
}

func TestModel_SyncFillsTabs(t *testing.T) {
	m, _ := newTestModel(t)
	assert.True(t, m.Syncing)
	assert.True(t, m.Lists[TabStories].IsLoading())

	m = syncAndLoad(t, m)

	assert.False(t, m.Syncing)
	assert.Equal(t, 2, m.Lists[TabStories].ItemCount())
	assert.Equal(t, 1, m.Lists[TabRecordings].ItemCount())
	assert.Equal(t, 1, m.Lists[TabVideos].ItemCount())
	assert.Equal(t, components.StatusSynced, m.SyncStates[TabStories].Status)
	assert.Equal(t, components.StatusSynced, m.SyncStates[TabBiography].Status)
	assert.Contains(t, m.View(), "Funes el memorioso")
}

func TestModel_Tabs(t *testing.T) {
	m, _ := newTestModel(t)
	m = syncAndLoad(t, m)

	m, _ = press(t, m, "2")
	assert.Equal(t, TabRecordings, m.ActiveTab)
	assert.True(t, m.Lists[TabRecordings].IsFocused())
	assert.False(t, m.Lists[TabStories].IsFocused())

	m, _ = press(t, m, "tab")
	assert.Equal(t, TabVideos, m.ActiveTab)
	m, _ = press(t, m, "tab")
	assert.Equal(t, TabBiography, m.ActiveTab)
	m, _ = press(t, m, "tab")
	assert.Equal(t, TabStories, m.ActiveTab, "tabs wrap around")

	m, _ = press(t, m, "4")
	assert.Contains(t, m.View(), "Ana")
}

func TestModel_Help(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = press(t, m, "?")
	assert.Equal(t, StateHelp, m.State)
	assert.Contains(t, m.View(), "Keyboard Shortcuts")

	m, _ = press(t, m, "x")
	assert.Equal(t, StateBrowsing, m.State)
}

func TestModel_ReadStory(t *testing.T) {
	m, _ := newTestModel(t)
	m = syncAndLoad(t, m)

	m, cmd := press(t, m, "enter")
	require.NotNil(t, cmd)
	msg := cmd()
	require.IsType(t, StoryOpenedMsg{}, msg)
	m = update(t, m, msg)

	require.Equal(t, StateReading, m.State)
	require.NotNil(t, m.session)
	assert.True(t, m.session.HasAudio())
	assert.Contains(t, m.View(), "recuerdo")

	m, _ = press(t, m, " ")
	assert.Equal(t, narration.Running, m.Reader.State().Loop)

	m, _ = press(t, m, "+")
	assert.Equal(t, 1.25, m.session.Rate())
	assert.Contains(t, m.StatusMsg, "1.2x")

	m, _ = press(t, m, " ")
	assert.Equal(t, narration.Idle, m.Reader.State().Loop)

	m, _ = press(t, m, "esc")
	assert.Equal(t, StateBrowsing, m.State)
	assert.Nil(t, m.session)
	assert.Nil(t, m.svc.Reader.Current())

	pos, ok := m.svc.Queries.GetPosition("1")
	require.True(t, ok, "closing the reader saves the position")
	assert.Equal(t, 1.25, pos.Rate)
}

func TestModel_JumpToWord(t *testing.T) {
	m, _ := newTestModel(t)
	m = syncAndLoad(t, m)
	m = openStory(t, m, "1")

	m, _ = press(t, m, "]")
	m, _ = press(t, m, "enter")

	state := m.session.State()
	assert.Equal(t, narration.Running, state.Loop)
	assert.Equal(t, 5, state.ActiveTokenIndex, "first word of the second paragraph")
}

func TestModel_TextOnlyStory(t *testing.T) {
	m, _ := newTestModel(t)
	m = syncAndLoad(t, m)
	m = openStory(t, m, "2")

	assert.False(t, m.session.HasAudio())
	assert.Contains(t, m.View(), "text only")

	m, _ = press(t, m, " ")
	assert.True(t, m.StatusIsErr)
	assert.Equal(t, "This story has no narration", m.StatusMsg)
}

func TestModel_NarrationUpdates(t *testing.T) {
	m, _ := newTestModel(t)
	m = syncAndLoad(t, m)
	m = openStory(t, m, "1")

	m, cmd := updateCmd(t, m, NarrationStateMsg{State: narration.SyncState{ActiveTokenIndex: 3, ProgressPercent: 50, Loop: narration.Running}})
	require.NotNil(t, cmd, "keeps waiting for updates")
	assert.Equal(t, 3, m.Reader.State().ActiveTokenIndex)
	assert.True(t, m.clockOn)
}

func TestModel_PlayRecording(t *testing.T) {
	m, launches := newTestModel(t)
	m = syncAndLoad(t, m)

	m, _ = press(t, m, "2")
	m, cmd := press(t, m, "enter")
	require.NotNil(t, cmd)
	msg := cmd()
	require.IsType(t, MediaStartedMsg{}, msg)
	m = update(t, m, msg)

	assert.Equal(t, []string{"http://archive/r1.mp3"}, launches.urls)
	assert.Contains(t, m.StatusMsg, "Entrevista")

	item, ok := m.svc.Media.Playing()
	require.True(t, ok)
	assert.Equal(t, "r1", item.ID)

	m, _ = press(t, m, "x")
	_, ok = m.svc.Media.Playing()
	assert.False(t, ok)
}

func TestModel_MediaPausesNarration(t *testing.T) {
	m, _ := newTestModel(t)
	m = syncAndLoad(t, m)
	m = openStory(t, m, "1")
	require.NoError(t, m.session.Play())

	require.NoError(t, m.svc.Media.Play(context.Background(), &domain.MediaItem{ID: "v1", Title: "Homenaje", URL: "http://archive/v1.mp4"}))
	assert.Equal(t, narration.Idle, m.session.State().Loop)
}

func TestModel_GlobalSearch(t *testing.T) {
	m, _ := newTestModel(t)
	m = syncAndLoad(t, m)

	m, _ = press(t, m, "f")
	require.Equal(t, StateSearching, m.State)

	m, cmd := press(t, m, "febrero")
	require.NotNil(t, cmd)
	m = update(t, m, runSearch(m))
	require.Equal(t, 1, m.Search.ResultCount(), "falls back to story text")

	// stale results are dropped
	m = update(t, m, SearchResultsMsg{Query: "other"})
	require.Equal(t, 1, m.Search.ResultCount())

	m, cmd = press(t, m, "enter")
	assert.Equal(t, StateBrowsing, m.State)
	assert.Equal(t, "2", m.Lists[TabStories].SelectedItem().GetID())
	require.NotNil(t, cmd)
	require.IsType(t, StoryOpenedMsg{}, cmd())
}

func TestModel_SearchScope(t *testing.T) {
	m, _ := newTestModel(t)
	m = syncAndLoad(t, m)

	m, _ = press(t, m, "f")
	m, _ = press(t, m, "febrero")
	m = update(t, m, runSearch(m))
	require.Equal(t, 1, m.Search.ResultCount())

	// stories, then recordings: story text is not searched outside stories
	m, cmd := press(t, m, "tab")
	require.Equal(t, components.ScopeStories, m.Search.Scope())
	m = update(t, m, runSearch(m))
	require.Equal(t, 1, m.Search.ResultCount())

	m, cmd = press(t, m, "tab")
	require.Equal(t, components.ScopeRecordings, m.Search.Scope())
	require.NotNil(t, cmd)
	m = update(t, m, runSearch(m))
	assert.Equal(t, 0, m.Search.ResultCount())

	// results for an older scope are dropped
	m = update(t, m, SearchResultsMsg{Query: "febrero", Scope: components.ScopeAll, Results: []search.FilterResult{{}}})
	assert.Equal(t, 0, m.Search.ResultCount())
}

// runSearch runs the search the modal would issue, without its cursor blink
func runSearch(m Model) tea.Msg {
	return SearchCmd(m.svc.Search, m.Search.Query(), m.Search.Scope())()
}

func TestModel_SearchEscape(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = press(t, m, "f")
	m, _ = press(t, m, "esc")
	assert.Equal(t, StateBrowsing, m.State)
	assert.False(t, m.Search.IsVisible())
}

func TestModel_FilterTakesKeys(t *testing.T) {
	m, _ := newTestModel(t)
	m = syncAndLoad(t, m)

	m, _ = press(t, m, "/")
	m, _ = press(t, m, "q")
	assert.True(t, m.Lists[TabStories].IsFilterTyping(), "q is typed into the filter, not quit")
	m, _ = press(t, m, "2")
	assert.Equal(t, TabStories, m.ActiveTab)
}

func TestModel_StoryChangedReloadsOpenStory(t *testing.T) {
	m, _ := newTestModel(t)
	m = syncAndLoad(t, m)
	m = openStory(t, m, "1")

	m, cmd := updateCmd(t, m, StoryChangedMsg{StoryID: "1"})
	require.NotNil(t, cmd)
	assert.True(t, m.Syncing)

	msg := ReloadStoryCmd(m.svc.Library, m.svc.Reader, "1", m.observer)()
	require.IsType(t, StoryReloadedMsg{}, msg)
	m = update(t, m, msg)
	assert.Equal(t, "Story updated", m.StatusMsg)
	assert.Equal(t, StateReading, m.State)
}

func TestErrorText(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{domain.ErrNoAudio, "This story has no narration"},
		{fmt.Errorf("open: %w", domain.ErrPlaybackRejected), "The audio output refused to play"},
		{domain.ErrAuthFailed, "The archive rejected the API key"},
		{domain.ErrBackendOffline, "Archive is unreachable"},
		{errors.New("boom"), "loading: boom"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorText(ErrMsg{Err: tt.err, Context: "loading"}))
	}
}
