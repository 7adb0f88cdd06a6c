package components

// CollectionStatus represents the sync status of a catalog collection
type CollectionStatus int

const (
	StatusIdle CollectionStatus = iota
	StatusSyncing
	StatusSynced
	StatusError
)

// CollectionSyncState tracks sync progress for a single collection
type CollectionSyncState struct {
	Status    CollectionStatus
	Count     int   // rows loaded
	FromCache bool  // whether loaded from the local cache
	Error     error // error if any
}
