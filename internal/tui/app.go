package tui

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cgonzaleza9671/estampas/internal/domain"
	"github.com/cgonzaleza9671/estampas/internal/library"
	"github.com/cgonzaleza9671/estampas/internal/narration"
	"github.com/cgonzaleza9671/estampas/internal/search"
	"github.com/cgonzaleza9671/estampas/internal/service"
	"github.com/cgonzaleza9671/estampas/internal/tui/components"
)

// ApplicationState represents the current state of the application
type ApplicationState int

const (
	StateBrowsing ApplicationState = iota
	StateSearching
	StateReading
	StateHelp
)

// Tab is one of the archive sections
type Tab int

const (
	TabStories Tab = iota
	TabRecordings
	TabVideos
	TabBiography
	tabCount
)

func (t Tab) String() string {
	switch t {
	case TabStories:
		return "Stories"
	case TabRecordings:
		return "Recordings"
	case TabVideos:
		return "Videos"
	default:
		return "Biography"
	}
}

// listTabs maps the list tabs to their content type
var listTabs = map[Tab]domain.MediaType{
	TabStories:    domain.MediaTypeStory,
	TabRecordings: domain.MediaTypeRecording,
	TabVideos:     domain.MediaTypeVideo,
}

func tabFor(kind domain.MediaType) Tab {
	switch kind {
	case domain.MediaTypeRecording:
		return TabRecordings
	case domain.MediaTypeVideo:
		return TabVideos
	default:
		return TabStories
	}
}

func collectionTab(collection string) Tab {
	switch collection {
	case library.CollectionRecordings:
		return TabRecordings
	case library.CollectionVideos:
		return TabVideos
	case library.CollectionBiography:
		return TabBiography
	default:
		return TabStories
	}
}

// Timing
const (
	spinnerInterval = 100 * time.Millisecond
	clockInterval   = 250 * time.Millisecond
	statusDuration  = 4 * time.Second
)

// Vertical chrome: tab bar and footer
const ChromeHeight = 2

// Services are the application services the TUI drives
type Services struct {
	Library *library.Commands
	Queries *library.Queries
	Search  *search.Service
	Reader  *service.ReaderService
	Media   *service.MediaService

	// StoryChanges carries story ids from the local library watcher; nil
	// when no watcher runs
	StoryChanges <-chan string
}

// Model is the main Bubble Tea model for the application
type Model struct {
	// Application state
	State     ApplicationState
	prevState ApplicationState
	Ready     bool

	svc Services

	// UI Components
	ActiveTab Tab
	Lists     map[Tab]*components.ListColumn
	Biography *components.BiographyView
	Reader    components.ReaderView
	Search    components.GlobalSearch

	// Reader session
	session  *service.ReaderSession
	observer *NarrationObserver
	clockOn  bool

	// Dimensions
	Width  int
	Height int

	// UI state
	StatusMsg    string
	StatusIsErr  bool
	SpinnerFrame int

	// Sync state
	Syncing    bool
	SyncStates map[Tab]components.CollectionSyncState
}

// NewModel creates a new application model
func NewModel(svc Services) Model {
	lists := make(map[Tab]*components.ListColumn, len(listTabs))
	for tab := range listTabs {
		lists[tab] = components.NewListColumn(tab.String())
		lists[tab].SetLoading(true)
	}
	lists[TabStories].SetFocused(true)

	return Model{
		State:      StateBrowsing,
		svc:        svc,
		ActiveTab:  TabStories,
		Lists:      lists,
		Biography:  components.NewBiographyView(),
		Reader:     components.NewReaderView(),
		Search:     components.NewGlobalSearch(),
		observer:   NewNarrationObserver(),
		SyncStates: make(map[Tab]components.CollectionSyncState),
		Syncing:    true,
	}
}

// Init loads the cached catalog and starts a background refresh
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		SyncCatalogCmd(m.svc.Library, false),
		TickCmd(spinnerInterval),
		WaitForNarrationCmd(m.observer),
	}
	if cmd := WaitForStoryChangeCmd(m.svc.StoryChanges); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Ready = true
		m.updateLayout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case TickMsg:
		m.SpinnerFrame++
		for _, list := range m.Lists {
			list.SetSpinnerFrame(m.SpinnerFrame)
		}
		return m, TickCmd(spinnerInterval)

	case CatalogSyncProgressMsg:
		p := msg.Progress
		state := components.CollectionSyncState{Status: components.StatusSynced, Count: p.Count, FromCache: p.FromCache}
		if p.Error != nil {
			state = components.CollectionSyncState{Status: components.StatusError, Error: p.Error}
		}
		tab := collectionTab(p.Collection)
		m.SyncStates[tab] = state
		if list, ok := m.Lists[tab]; ok {
			list.SetSyncState(state)
		}
		return m, msg.NextCmd

	case CatalogSyncDoneMsg:
		m.Syncing = false
		cmds := m.reloadCollections()
		if msg.Err != nil {
			text := "Sync failed: " + msg.Err.Error()
			if library.IsOffline(msg.Err) {
				text = "Archive is unreachable, showing cached content"
			}
			cmds = append(cmds, m.setStatus(text, true))
		}
		return m, tea.Batch(cmds...)

	case CollectionLoadedMsg:
		if list, ok := m.Lists[tabFor(msg.Kind)]; ok {
			selected := ""
			if item := list.SelectedItem(); item != nil {
				selected = item.GetID()
			}
			list.SetItems(msg.Items)
			if selected != "" {
				list.SelectByID(selected)
			}
		}
		return m, nil

	case BiographyLoadedMsg:
		m.Biography.SetBiography(msg.Biography)
		return m, nil

	case StoryOpenedMsg:
		m.session = msg.Session
		m.Reader.SetStory(msg.Session.Story(), msg.Session.Model(), msg.Session.HasAudio())
		m.Reader.SetState(msg.Session.State())
		m.refreshClock()
		m.State = StateReading
		return m, nil

	case StoryReloadedMsg:
		m.session = msg.Session
		m.Reader.SetStory(msg.Session.Story(), msg.Session.Model(), msg.Session.HasAudio())
		m.Reader.SetState(msg.Session.State())
		m.refreshClock()
		return m, m.setStatus("Story updated", false)

	case StoryChangedMsg:
		cmds := []tea.Cmd{
			WaitForStoryChangeCmd(m.svc.StoryChanges),
			SyncCatalogCmd(m.svc.Library, true),
		}
		m.Syncing = true
		if m.session != nil && m.session.Story().ID == msg.StoryID {
			cmds = append(cmds, ReloadStoryCmd(m.svc.Library, m.svc.Reader, msg.StoryID, m.observer))
		}
		return m, tea.Batch(cmds...)

	case NarrationStateMsg:
		cmds := []tea.Cmd{WaitForNarrationCmd(m.observer)}
		if m.session != nil {
			m.Reader.SetState(msg.State)
			m.refreshClock()
			if msg.State.Loop == narration.Running && !m.clockOn {
				m.clockOn = true
				cmds = append(cmds, ClockTickCmd(clockInterval))
			}
		}
		return m, tea.Batch(cmds...)

	case ClockTickMsg:
		if m.session == nil || m.session.State().Loop != narration.Running {
			m.clockOn = false
			m.refreshClock()
			return m, nil
		}
		m.refreshClock()
		return m, ClockTickCmd(clockInterval)

	case MediaStartedMsg:
		return m, m.setStatus(fmt.Sprintf("Playing %q in external player", msg.Item.Title), false)

	case SearchResultsMsg:
		if msg.Query == m.Search.Query() && msg.Scope == m.Search.Scope() {
			m.Search.SetResults(msg.Results)
		}
		return m, nil

	case ErrMsg:
		return m, m.setStatus(errorText(msg), true)

	case StatusMsg:
		return m, m.setStatus(msg.Message, msg.IsError)

	case ClearStatusMsg:
		m.StatusMsg = ""
		m.StatusIsErr = false
		return m, nil
	}

	return m, nil
}

func (m *Model) reloadCollections() []tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(listTabs)+1)
	for _, kind := range listTabs {
		cmds = append(cmds, LoadCollectionCmd(m.svc.Queries, kind))
	}
	return append(cmds, LoadBiographyCmd(m.svc.Queries))
}

func (m *Model) setStatus(text string, isErr bool) tea.Cmd {
	m.StatusMsg = text
	m.StatusIsErr = isErr
	return ClearStatusCmd(statusDuration)
}

func (m *Model) refreshClock() {
	if m.session == nil {
		return
	}
	elapsed, total := m.session.Position()
	m.Reader.SetClock(elapsed, total, m.session.Rate())
}

// errorText turns known errors into short status messages
func errorText(msg ErrMsg) string {
	switch {
	case errors.Is(msg.Err, domain.ErrNoAudio):
		return "This story has no narration"
	case errors.Is(msg.Err, domain.ErrPlaybackRejected):
		return "The audio output refused to play"
	case errors.Is(msg.Err, domain.ErrAuthFailed):
		return "The archive rejected the API key"
	case library.IsOffline(msg.Err):
		return "Archive is unreachable"
	}
	return msg.Error()
}

// handleKeyMsg routes key input by application state
func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.State {
	case StateHelp:
		m.State = m.prevState
		return m, nil
	case StateSearching:
		return m.handleSearchKeys(msg)
	case StateReading:
		return m.handleReaderKeys(msg)
	default:
		return m.handleBrowseKeys(msg)
	}
}

func (m Model) handleBrowseKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	list := m.Lists[m.ActiveTab]

	// typing into a list filter takes every key
	if list != nil && list.IsFilterTyping() {
		return m, list.Update(msg)
	}

	for t, b := range Keys.GoTo {
		if key.Matches(msg, b) {
			m.setTab(Tab(t))
			return m, nil
		}
	}

	switch {
	case key.Matches(msg, Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, Keys.Help):
		m.prevState = m.State
		m.State = StateHelp
		return m, nil

	case key.Matches(msg, Keys.NextTab):
		m.setTab((m.ActiveTab + 1) % tabCount)
		return m, nil
	case key.Matches(msg, Keys.PrevTab):
		m.setTab((m.ActiveTab + tabCount - 1) % tabCount)
		return m, nil

	case key.Matches(msg, Keys.GlobalSearch):
		m.Search.Show()
		m.State = StateSearching
		return m, nil

	case key.Matches(msg, Keys.Refresh):
		m.Syncing = true
		return m, SyncCatalogCmd(m.svc.Library, true)

	case key.Matches(msg, Keys.StopMedia):
		if m.svc.Media != nil {
			m.svc.Media.Stop()
		}
		return m, nil

	case key.Matches(msg, Keys.Filter) && list != nil && !list.IsFiltering():
		list.ToggleFilter()
		return m, nil

	case key.Matches(msg, Keys.Enter) && list != nil:
		return m, m.activate(list.SelectedItem())
	}

	if list != nil {
		return m, list.Update(msg)
	}
	return m, m.Biography.Update(msg)
}

// activate opens a story or plays a recording or video
func (m *Model) activate(item domain.ListItem) tea.Cmd {
	switch v := item.(type) {
	case *domain.Story:
		return OpenStoryCmd(m.svc.Library, m.svc.Reader, v.ID, m.observer)
	case *domain.MediaItem:
		if m.svc.Media == nil {
			return nil
		}
		return PlayMediaCmd(m.svc.Media, v)
	}
	return nil
}

func (m Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var (
		cmd      tea.Cmd
		selected bool
	)
	m.Search, cmd, selected = m.Search.Update(msg)

	if selected {
		result := m.Search.Selected()
		m.Search.Hide()
		m.State = StateBrowsing
		if result == nil {
			return m, nil
		}
		tab := tabFor(result.Type)
		m.setTab(tab)
		m.Lists[tab].SelectByID(result.Item.GetID())
		return m, m.activate(result.Item)
	}

	if !m.Search.IsVisible() {
		m.State = StateBrowsing
		return m, cmd
	}

	if query, scope, ok := m.Search.Pending(); ok && m.svc.Search != nil {
		return m, tea.Batch(cmd, SearchCmd(m.svc.Search, query, scope))
	}
	return m, cmd
}

func (m Model) handleReaderKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sess := m.session
	if sess == nil {
		m.State = StateBrowsing
		return m, nil
	}
	keys := components.ReaderKeys

	var cmd tea.Cmd
	switch {
	case key.Matches(msg, keys.Close):
		m.closeReader()
		return m, nil

	case key.Matches(msg, keys.Toggle):
		if err := sess.Toggle(); err != nil {
			cmd = m.setStatus(errorText(ErrMsg{Err: err}), true)
		}

	case key.Matches(msg, keys.Stop):
		sess.Stop()
		m.Reader.ClearCursor()

	case key.Matches(msg, keys.PrevWord):
		m.Reader.MoveCursor(-1)
	case key.Matches(msg, keys.NextWord):
		m.Reader.MoveCursor(1)
	case key.Matches(msg, keys.PrevPara):
		m.Reader.MoveParagraph(-1)
	case key.Matches(msg, keys.NextPara):
		m.Reader.MoveParagraph(1)

	case key.Matches(msg, keys.Jump):
		if target, ok := m.Reader.JumpTarget(); ok {
			if err := sess.SeekToToken(target); err != nil {
				cmd = m.setStatus(errorText(ErrMsg{Err: err}), true)
			}
		}
		m.Reader.ClearCursor()

	case key.Matches(msg, keys.Faster):
		cmd = m.setStatus(fmt.Sprintf("Speed %.2gx", sess.NextRate()), false)
	case key.Matches(msg, keys.Slower):
		cmd = m.setStatus(fmt.Sprintf("Speed %.2gx", sess.PrevRate()), false)

	case key.Matches(msg, keys.ScrollUp):
		m.Reader.Scroll(-1)
	case key.Matches(msg, keys.ScrollDown):
		m.Reader.Scroll(1)

	case key.Matches(msg, Keys.Help):
		m.prevState = m.State
		m.State = StateHelp
		return m, nil
	}

	m.Reader.SetState(sess.State())
	m.refreshClock()
	return m, cmd
}

// closeReader saves the reading position and returns to the story list
func (m *Model) closeReader() {
	if m.session != nil {
		m.session.Close()
		m.session = nil
	}
	m.clockOn = false
	m.State = StateBrowsing
}

func (m *Model) setTab(tab Tab) {
	if list, ok := m.Lists[m.ActiveTab]; ok {
		list.SetFocused(false)
	}
	m.Biography.SetFocused(false)

	m.ActiveTab = tab
	if list, ok := m.Lists[tab]; ok {
		list.SetFocused(true)
	} else {
		m.Biography.SetFocused(true)
	}
}

// updateLayout updates component sizes based on window size
func (m *Model) updateLayout() {
	if m.Width == 0 || m.Height == 0 {
		return
	}
	contentHeight := m.Height - ChromeHeight
	for _, list := range m.Lists {
		list.SetSize(m.Width, contentHeight)
	}
	m.Biography.SetSize(m.Width, contentHeight)
	m.Reader.SetSize(m.Width, contentHeight)
	m.Search.SetSize(m.Width, m.Height)
}
