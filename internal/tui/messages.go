package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cgonzaleza9671/estampas/internal/domain"
	"github.com/cgonzaleza9671/estampas/internal/narration"
	"github.com/cgonzaleza9671/estampas/internal/search"
	"github.com/cgonzaleza9671/estampas/internal/service"
	"github.com/cgonzaleza9671/estampas/internal/tui/components"
)

// Message types for the TUI

// ErrMsg represents an error
type ErrMsg struct {
	Err     error
	Context string
}

// Error implements the error interface
func (e ErrMsg) Error() string {
	if e.Context != "" {
		return e.Context + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// TickMsg drives the spinner
type TickMsg struct{}

// ClockTickMsg refreshes the reader's clock while narration plays
type ClockTickMsg struct{}

// ClearStatusMsg clears the status bar message
type ClearStatusMsg struct{}

// StatusMsg sets a temporary status message
type StatusMsg struct {
	Message string
	IsError bool
}

// CatalogSyncProgressMsg is sent for each collection during a sync
type CatalogSyncProgressMsg struct {
	Progress domain.SyncProgress
	NextCmd  tea.Cmd // continuation reading the next progress
}

// CatalogSyncDoneMsg is sent when a sync finishes
type CatalogSyncDoneMsg struct {
	Result domain.SyncResult
	Err    error
}

// CollectionLoadedMsg carries the cached items of one list tab
type CollectionLoadedMsg struct {
	Kind  domain.MediaType
	Items []domain.ListItem
}

// BiographyLoadedMsg carries the cached biography
type BiographyLoadedMsg struct {
	Biography *domain.Biography
}

// StoryOpenedMsg signals the reader session is ready
type StoryOpenedMsg struct {
	Session *service.ReaderSession
}

// StoryReloadedMsg signals the open story was rebuilt after a file change
type StoryReloadedMsg struct {
	Session *service.ReaderSession
}

// StoryChangedMsg signals a story file changed in the local library
type StoryChangedMsg struct {
	StoryID string
}

// NarrationStateMsg carries a sync state from the narration loop
type NarrationStateMsg struct {
	State narration.SyncState
}

// MediaStartedMsg signals an external player was launched
type MediaStartedMsg struct {
	Item *domain.MediaItem
}

// SearchResultsMsg carries search results for a query and scope
type SearchResultsMsg struct {
	Query   string
	Scope   components.SearchScope
	Results []search.FilterResult
}
