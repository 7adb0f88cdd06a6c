package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cgonzaleza9671/estampas/internal/domain"
	"github.com/cgonzaleza9671/estampas/internal/library"
	"github.com/cgonzaleza9671/estampas/internal/search"
	"github.com/cgonzaleza9671/estampas/internal/service"
	"github.com/cgonzaleza9671/estampas/internal/tui/components"
)

// Command factories for async operations

// TickCmd schedules the next spinner frame
func TickCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

// ClockTickCmd schedules the next reader clock refresh
func ClockTickCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return ClockTickMsg{}
	})
}

// ClearStatusCmd clears the status bar after delay
func ClearStatusCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return ClearStatusMsg{}
	})
}

type syncOutcome struct {
	result domain.SyncResult
	err    error
}

// SyncCatalogCmd refreshes the catalog, streaming one message per collection.
// Uses a continuation pattern to pump all progress messages to the UI.
func SyncCatalogCmd(cmds *library.Commands, force bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)

		// one slot per collection so the observer never drops
		progressCh := make(chan domain.SyncProgress, 8)
		doneCh := make(chan syncOutcome, 1)

		go func() {
			defer cancel()
			result, err := cmds.Sync(ctx, force, progressObserver(progressCh))
			close(progressCh)
			doneCh <- syncOutcome{result: result, err: err}
		}()

		return readSyncProgress(progressCh, doneCh)
	}
}

// readSyncProgress reads one progress update and attaches the continuation
func readSyncProgress(progressCh <-chan domain.SyncProgress, doneCh <-chan syncOutcome) tea.Msg {
	progress, ok := <-progressCh
	if !ok {
		outcome := <-doneCh
		return CatalogSyncDoneMsg{Result: outcome.result, Err: outcome.err}
	}
	return CatalogSyncProgressMsg{
		Progress: progress,
		NextCmd: func() tea.Msg {
			return readSyncProgress(progressCh, doneCh)
		},
	}
}

// LoadCollectionCmd loads one list tab from the cache
func LoadCollectionCmd(queries *library.Queries, kind domain.MediaType) tea.Cmd {
	return func() tea.Msg {
		items, _ := queries.GetCachedItems(kind)
		return CollectionLoadedMsg{Kind: kind, Items: items}
	}
}

// LoadBiographyCmd loads the biography page from the cache
func LoadBiographyCmd(queries *library.Queries) tea.Cmd {
	return func() tea.Msg {
		bio, _ := queries.GetCachedBiography()
		return BiographyLoadedMsg{Biography: bio}
	}
}

// OpenStoryCmd resolves a story and opens it in the reader
func OpenStoryCmd(cmds *library.Commands, reader *service.ReaderService, storyID string, observer *NarrationObserver) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		story, err := cmds.Story(ctx, storyID)
		if err != nil {
			return ErrMsg{Err: err, Context: "opening story"}
		}
		sess, err := reader.Open(ctx, story, observer)
		if err != nil {
			return ErrMsg{Err: err, Context: "opening story"}
		}
		return StoryOpenedMsg{Session: sess}
	}
}

// ReloadStoryCmd rereads a changed story and rebuilds the open session
func ReloadStoryCmd(cmds *library.Commands, reader *service.ReaderService, storyID string, observer *NarrationObserver) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		story, err := cmds.ReloadStory(ctx, storyID)
		if err != nil {
			return ErrMsg{Err: err, Context: "reloading story"}
		}
		sess, err := reader.Reload(ctx, story, observer)
		if err != nil {
			return ErrMsg{Err: err, Context: "reloading story"}
		}
		return StoryReloadedMsg{Session: sess}
	}
}

// WaitForNarrationCmd delivers the next sync state from the narration loop
func WaitForNarrationCmd(observer *NarrationObserver) tea.Cmd {
	return func() tea.Msg {
		return NarrationStateMsg{State: <-observer.Updates()}
	}
}

// WaitForStoryChangeCmd delivers the next changed story id from the library
// watcher. Returns nil when there is no watcher.
func WaitForStoryChangeCmd(changes <-chan string) tea.Cmd {
	if changes == nil {
		return nil
	}
	return func() tea.Msg {
		id, ok := <-changes
		if !ok {
			return nil
		}
		return StoryChangedMsg{StoryID: id}
	}
}

// PlayMediaCmd launches a recording or video in the external player
func PlayMediaCmd(media *service.MediaService, item *domain.MediaItem) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := media.Play(ctx, item); err != nil {
			return ErrMsg{Err: err, Context: fmt.Sprintf("playing %q", item.Title)}
		}
		return MediaStartedMsg{Item: item}
	}
}

// SearchCmd searches the cached archive within scope
func SearchCmd(svc *search.Service, query string, scope components.SearchScope) tea.Cmd {
	return func() tea.Msg {
		return SearchResultsMsg{Query: query, Scope: scope, Results: svc.Search(query, scope.Types())}
	}
}
