package library

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cgonzaleza9671/estampas/internal/domain"
)

// Collection names reported in sync progress
const (
	CollectionStories    = "stories"
	CollectionRecordings = "recordings"
	CollectionVideos     = "videos"
	CollectionBiography  = "biography"
)

// Commands provides operations that hit the catalog source.
type Commands struct {
	repo   domain.CatalogRepository
	store  domain.Store
	logger *slog.Logger
}

// NewCommands creates a new Commands instance.
func NewCommands(repo domain.CatalogRepository, store domain.Store, logger *slog.Logger) *Commands {
	if logger == nil {
		logger = slog.Default()
	}
	return &Commands{repo: repo, store: store, logger: logger}
}

// Sync refreshes all four collections concurrently and saves them. Unless
// force is set, a cached story list short-circuits the network entirely.
// The observer may be called from several goroutines.
func (c *Commands) Sync(ctx context.Context, force bool, observer domain.SyncObserver) (domain.SyncResult, error) {
	if observer == nil {
		observer = domain.NoOpObserver{}
	}

	if !force {
		if result, ok := c.cachedResult(); ok {
			c.logger.Debug("catalog cache fresh", "stories", result.Stories)
			observer.OnProgress(domain.SyncProgress{Collection: CollectionStories, Count: result.Stories, Done: true, FromCache: true})
			observer.OnProgress(domain.SyncProgress{Collection: CollectionRecordings, Count: result.Recordings, Done: true, FromCache: true})
			observer.OnProgress(domain.SyncProgress{Collection: CollectionVideos, Count: result.Videos, Done: true, FromCache: true})
			observer.OnProgress(domain.SyncProgress{Collection: CollectionBiography, Done: true, FromCache: true})
			return result, nil
		}
	}

	var (
		mu     sync.Mutex
		result domain.SyncResult
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		stories, err := c.FetchStories(gctx)
		c.report(observer, CollectionStories, len(stories), err)
		if err != nil {
			return err
		}
		mu.Lock()
		result.Stories = len(stories)
		mu.Unlock()
		return nil
	})

	for _, kind := range []domain.MediaType{domain.MediaTypeRecording, domain.MediaTypeVideo} {
		g.Go(func() error {
			items, err := c.FetchMedia(gctx, kind)
			c.report(observer, collectionFor(kind), len(items), err)
			if err != nil {
				return err
			}
			mu.Lock()
			if kind == domain.MediaTypeRecording {
				result.Recordings = len(items)
			} else {
				result.Videos = len(items)
			}
			mu.Unlock()
			return nil
		})
	}

	g.Go(func() error {
		bio, err := c.FetchBiography(gctx)
		c.report(observer, CollectionBiography, 0, err)
		if err != nil {
			return err
		}
		mu.Lock()
		result.Biography = bio != nil && (bio.Name != "" || len(bio.Sections) > 0)
		mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		c.logger.Error("catalog sync failed", "error", err)
		return result, err
	}

	c.logger.Info("catalog synced",
		"stories", result.Stories, "recordings", result.Recordings,
		"videos", result.Videos, "biography", result.Biography)
	return result, nil
}

func (c *Commands) report(observer domain.SyncObserver, collection string, count int, err error) {
	observer.OnProgress(domain.SyncProgress{
		Collection: collection,
		Count:      count,
		Done:       err == nil,
		Error:      err,
	})
}

func collectionFor(kind domain.MediaType) string {
	if kind == domain.MediaTypeVideo {
		return CollectionVideos
	}
	return CollectionRecordings
}

func (c *Commands) cachedResult() (domain.SyncResult, bool) {
	stories, ok := c.store.GetStories()
	if !ok {
		return domain.SyncResult{}, false
	}
	result := domain.SyncResult{Stories: len(stories)}
	if items, ok := c.store.GetMedia(domain.MediaTypeRecording); ok {
		result.Recordings = len(items)
	}
	if items, ok := c.store.GetMedia(domain.MediaTypeVideo); ok {
		result.Videos = len(items)
	}
	if bio, ok := c.store.GetBiography(); ok {
		result.Biography = bio.Name != "" || len(bio.Sections) > 0
	}
	return result, true
}

// FetchStories fetches and caches the story list
func (c *Commands) FetchStories(ctx context.Context) ([]*domain.Story, error) {
	stories, err := c.repo.Stories(ctx)
	if err != nil {
		c.logger.Error("failed to fetch stories", "error", err)
		return nil, err
	}
	if err := c.store.SaveStories(stories); err != nil {
		c.logger.Error("failed to save stories", "error", err)
	}
	c.logger.Debug("fetched stories", "count", len(stories))
	return stories, nil
}

// FetchMedia fetches and caches recordings or videos
func (c *Commands) FetchMedia(ctx context.Context, kind domain.MediaType) ([]*domain.MediaItem, error) {
	var (
		items []*domain.MediaItem
		err   error
	)
	if kind == domain.MediaTypeVideo {
		items, err = c.repo.Videos(ctx)
	} else {
		items, err = c.repo.Recordings(ctx)
	}
	if err != nil {
		c.logger.Error("failed to fetch media", "error", err, "kind", kind)
		return nil, err
	}
	if err := c.store.SaveMedia(kind, items); err != nil {
		c.logger.Error("failed to save media", "error", err, "kind", kind)
	}
	c.logger.Debug("fetched media", "count", len(items), "kind", kind)
	return items, nil
}

// FetchBiography fetches and caches the biography page
func (c *Commands) FetchBiography(ctx context.Context) (*domain.Biography, error) {
	bio, err := c.repo.Biography(ctx)
	if err != nil {
		c.logger.Error("failed to fetch biography", "error", err)
		return nil, err
	}
	if bio == nil {
		bio = &domain.Biography{}
	}
	if err := c.store.SaveBiography(bio); err != nil {
		c.logger.Error("failed to save biography", "error", err)
	}
	return bio, nil
}

// Story returns a story by id from the cache, refetching the list once on a miss
func (c *Commands) Story(ctx context.Context, id string) (*domain.Story, error) {
	if stories, ok := c.store.GetStories(); ok {
		if s := findStory(stories, id); s != nil {
			return s, nil
		}
	}

	stories, err := c.FetchStories(ctx)
	if err != nil {
		return nil, err
	}
	if s := findStory(stories, id); s != nil {
		return s, nil
	}
	return nil, domain.ErrStoryNotFound
}

// ReloadStory refetches the story list and returns the fresh copy of id.
// Used when the source reports the story changed.
func (c *Commands) ReloadStory(ctx context.Context, id string) (*domain.Story, error) {
	stories, err := c.FetchStories(ctx)
	if err != nil {
		return nil, err
	}
	if s := findStory(stories, id); s != nil {
		return s, nil
	}
	return nil, domain.ErrStoryNotFound
}

// MediaItem returns a recording or video by id from the cache
func (c *Commands) MediaItem(ctx context.Context, kind domain.MediaType, id string) (*domain.MediaItem, error) {
	items, ok := c.store.GetMedia(kind)
	if !ok {
		var err error
		if items, err = c.FetchMedia(ctx, kind); err != nil {
			return nil, err
		}
	}
	for _, item := range items {
		if item.ID == id {
			return item, nil
		}
	}
	return nil, domain.ErrItemNotFound
}

func findStory(stories []*domain.Story, id string) *domain.Story {
	for _, s := range stories {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (c *Commands) InvalidateCatalog() error {
	if err := c.store.InvalidateCatalog(); err != nil {
		c.logger.Error("failed to invalidate catalog cache", "error", err)
		return err
	}
	c.logger.Info("invalidated catalog cache")
	return nil
}

func (c *Commands) InvalidateAll() error {
	if err := c.store.InvalidateAll(); err != nil {
		c.logger.Error("failed to invalidate cache", "error", err)
		return err
	}
	c.logger.Info("invalidated all cache")
	return nil
}

// IsOffline reports whether err means the source could not be reached
func IsOffline(err error) bool {
	return errors.Is(err, domain.ErrBackendOffline)
}
