package domain

import "context"

// CatalogRepository provides the archive rows (implemented by catalog sources)
type CatalogRepository interface {
	// Stories returns all narrated stories
	Stories(ctx context.Context) ([]*Story, error)

	// Recordings returns the audio recordings collection
	Recordings(ctx context.Context) ([]*MediaItem, error)

	// Videos returns the video collection
	Videos(ctx context.Context) ([]*MediaItem, error)

	// Biography returns the biography page
	Biography(ctx context.Context) (*Biography, error)
}

// Store handles the local cache (BoltDB + memory).
type Store interface {
	// === Catalog ===
	GetStories() ([]*Story, bool)
	SaveStories(stories []*Story) error

	GetMedia(kind MediaType) ([]*MediaItem, bool)
	SaveMedia(kind MediaType, items []*MediaItem) error

	GetBiography() (*Biography, bool)
	SaveBiography(bio *Biography) error

	// === Reading positions ===
	GetPosition(storyID string) (ReadingPosition, bool)
	SavePosition(pos ReadingPosition) error

	// === Invalidation ===
	InvalidateCatalog() error
	InvalidateAll() error

	Close() error
}
