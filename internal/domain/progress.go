package domain

// SyncProgress reports progress while the catalog is refreshed.
type SyncProgress struct {
	Collection string // "stories", "recordings", "videos", "biography"
	Count      int    // rows received
	Done       bool
	FromCache  bool
	Error      error
}

// SyncObserver receives progress updates during catalog sync.
type SyncObserver interface {
	OnProgress(progress SyncProgress)
}

// NoOpObserver discards progress updates (for testing/batch operations).
type NoOpObserver struct{}

func (NoOpObserver) OnProgress(SyncProgress) {}

// SyncResult summarizes a catalog sync.
type SyncResult struct {
	Stories    int
	Recordings int
	Videos     int
	Biography  bool
}
