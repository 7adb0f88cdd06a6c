package library

import "github.com/cgonzaleza9671/estampas/internal/domain"

// Queries provides synchronous, cache-only reads.
type Queries struct {
	store domain.Store
}

// NewQueries creates a new Queries instance.
func NewQueries(store domain.Store) *Queries {
	return &Queries{store: store}
}

func (q *Queries) GetCachedStories() ([]*domain.Story, bool) {
	return q.store.GetStories()
}

func (q *Queries) GetCachedMedia(kind domain.MediaType) ([]*domain.MediaItem, bool) {
	return q.store.GetMedia(kind)
}

func (q *Queries) GetCachedBiography() (*domain.Biography, bool) {
	return q.store.GetBiography()
}

// GetCachedItems returns the list for a content type as list items
func (q *Queries) GetCachedItems(kind domain.MediaType) ([]domain.ListItem, bool) {
	if kind == domain.MediaTypeStory {
		stories, ok := q.store.GetStories()
		if !ok {
			return nil, false
		}
		items := make([]domain.ListItem, len(stories))
		for i, s := range stories {
			items[i] = s
		}
		return items, true
	}

	media, ok := q.store.GetMedia(kind)
	if !ok {
		return nil, false
	}
	items := make([]domain.ListItem, len(media))
	for i, m := range media {
		items[i] = m
	}
	return items, true
}

func (q *Queries) GetPosition(storyID string) (domain.ReadingPosition, bool) {
	return q.store.GetPosition(storyID)
}
